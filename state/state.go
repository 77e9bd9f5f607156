package state

import (
	"errors"

	"github.com/wfunc/thiefhunt/models"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// ASSIGNING -> ACTIVE -> RESOLVED, with ACTIVE -> ABANDONED when a round is
// superseded or becomes unplayable.
var transitions = map[models.RoundStatus]map[models.RoundStatus]bool{
	models.RoundAssigning: {models.RoundActive: true},
	models.RoundActive:    {models.RoundResolved: true, models.RoundAbandoned: true},
}

// CanTransition reports whether a round may move from one status to another.
func CanTransition(from, to models.RoundStatus) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no further transition leaves status.
func IsTerminal(status models.RoundStatus) bool {
	return len(transitions[status]) == 0
}
