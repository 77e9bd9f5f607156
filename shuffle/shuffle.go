// Package shuffle deals one role per player for a round while steering the
// investigator and evader roles away from whoever held them last round.
package shuffle

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/wfunc/thiefhunt/models"
)

const (
	MinPlayers = 2
	MaxPlayers = 12

	// MaxAttempts is how many pairings are drawn before a repeat is accepted.
	MaxAttempts = 5
)

var ErrPlayerCount = errors.New("player count out of range")

// AssignmentError means the catalog cannot produce a legal deal.
type AssignmentError struct {
	Reason string
}

func (e *AssignmentError) Error() string {
	return "role assignment failed: " + e.Reason
}

// Previous identifies who held the special roles in the last finished
// round. Zero IDs mean nobody.
type Previous struct {
	InvestigatorID uint
	EvaderID       uint
}

func (p *Previous) empty() bool {
	return p == nil || (p.InvestigatorID == 0 && p.EvaderID == 0)
}

type Assignment struct {
	Player models.Player
	Role   models.Role
}

type Result struct {
	Assignments []Assignment
	Attempts    int
}

// Investigator returns the assignment holding the investigator role.
func (r *Result) Investigator() Assignment {
	return r.bySide(models.SideInvestigator)
}

// Evader returns the assignment holding the evader role.
func (r *Result) Evader() Assignment {
	return r.bySide(models.SideEvader)
}

func (r *Result) bySide(side models.Side) Assignment {
	for _, a := range r.Assignments {
		if a.Role.Side() == side {
			return a
		}
	}
	return Assignment{}
}

// Candidates builds the n roles dealt in a round: the first investigator
// role, the first distinct evader role and n-2 shuffled neutral roles,
// padded by repeating the first neutral role once the catalog runs out.
func Candidates(n int, roles []models.Role, rng *rand.Rand) ([]models.Role, error) {
	var investigator, evader *models.Role
	var neutral []models.Role
	for i := range roles {
		role := roles[i]
		switch {
		case role.IsInvestigator:
			if investigator == nil {
				investigator = &roles[i]
			}
		case role.IsEvader:
			if evader == nil {
				evader = &roles[i]
			}
		default:
			neutral = append(neutral, role)
		}
	}
	if investigator == nil {
		return nil, &AssignmentError{Reason: "catalog has no investigator role"}
	}
	if evader == nil {
		return nil, &AssignmentError{Reason: "catalog has no evader role"}
	}

	need := n - 2
	if need > 0 && len(neutral) == 0 {
		return nil, &AssignmentError{Reason: fmt.Sprintf("catalog has no neutral role for %d players", n)}
	}
	rng.Shuffle(len(neutral), func(i, j int) { neutral[i], neutral[j] = neutral[j], neutral[i] })
	for len(neutral) < need {
		neutral = append(neutral, neutral[0])
	}

	candidates := make([]models.Role, 0, n)
	candidates = append(candidates, *investigator, *evader)
	candidates = append(candidates, neutral[:need]...)
	return candidates, nil
}

// Assign pairs every player with one role. It draws up to MaxAttempts
// random pairings and takes the first in which neither special role goes
// back to its previous holder; the last pairing is taken regardless.
func Assign(players []models.Player, roles []models.Role, prev *Previous, rng *rand.Rand) (*Result, error) {
	n := len(players)
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("%w: %d", ErrPlayerCount, n)
	}

	candidates, err := Candidates(n, roles, rng)
	if err != nil {
		return nil, err
	}

	order := make([]models.Player, n)
	copy(order, players)

	attempts := 0
	for attempts < MaxAttempts {
		attempts++
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

		if prev.empty() || !repeats(order, candidates, prev) {
			break
		}
	}

	result := &Result{Assignments: make([]Assignment, n), Attempts: attempts}
	for i := range order {
		result.Assignments[i] = Assignment{Player: order[i], Role: candidates[i]}
	}
	return result, nil
}

func repeats(players []models.Player, roles []models.Role, prev *Previous) bool {
	for i, role := range roles {
		switch role.Side() {
		case models.SideInvestigator:
			if prev.InvestigatorID != 0 && players[i].ID == prev.InvestigatorID {
				return true
			}
		case models.SideEvader:
			if prev.EvaderID != 0 && players[i].ID == prev.EvaderID {
				return true
			}
		}
	}
	return false
}
