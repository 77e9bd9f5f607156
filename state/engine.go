package state

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/services"
	"github.com/wfunc/thiefhunt/shuffle"
)

var (
	ErrRoundLimit      = errors.New("round limit reached")
	ErrNoActiveRound   = errors.New("no active round")
	ErrRoundNotActive  = errors.New("round is no longer active")
	ErrNotInvestigator = errors.New("caller is not the investigator")
)

// PlayerCountError is returned by StartRound when the roster size is out
// of range. It matches shuffle.ErrPlayerCount.
type PlayerCountError struct {
	Count int
}

func (e *PlayerCountError) Error() string {
	if e.Count < shuffle.MinPlayers {
		return fmt.Sprintf("need at least %d players to start, currently have %d", shuffle.MinPlayers, e.Count)
	}
	return fmt.Sprintf("maximum %d players allowed, currently have %d", shuffle.MaxPlayers, e.Count)
}

func (e *PlayerCountError) Unwrap() error {
	return shuffle.ErrPlayerCount
}

// PlayerRole is the private payload dealt to one player.
type PlayerRole struct {
	PlayerID    uint
	SessionID   string
	Name        string
	Role        string
	Description string
	WinPoints   int
	Side        models.Side
}

func (p PlayerRole) IsInvestigator() bool { return p.Side == models.SideInvestigator }
func (p PlayerRole) IsEvader() bool       { return p.Side == models.SideEvader }

// StartResult is what a new round deals out. Roster is public but only
// sent to the investigator.
type StartResult struct {
	Round     models.Round
	Roles     []PlayerRole
	Roster    []models.Player
	Abandoned int64
}

type ScoreEntry struct {
	Name   string
	Avatar string
	Score  int
}

type RoleReveal struct {
	Name             string
	Role             string
	Side             models.Side
	FinalScore       int
	IsImplicated     bool
	IsWronglyAccused bool
}

// Result is produced exactly once per round, by accusation or timeout.
type Result struct {
	RoomID      uint
	RoundID     uint
	RoundNumber int
	Winner      models.Winner
	EvaderName  string
	Scores      []ScoreEntry
	Roles       []RoleReveal
}

// Engine drives the round lifecycle of every room over the shared store.
type Engine struct {
	db      persistence.Store
	catalog *services.CatalogService
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Engine)

// WithRand makes dealing reproducible.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db persistence.Store, catalog *services.CatalogService, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		catalog: catalog,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) deal(players []models.Player, roles []models.Role, prev *shuffle.Previous) (*shuffle.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return shuffle.Assign(players, roles, prev, e.rng)
}

// transition moves a round between statuses with a compare-and-swap. It
// returns ErrRoundNotActive when another writer got there first.
func (e *Engine) transition(ctx context.Context, tx persistence.Store, roundID uint, from, to models.RoundStatus, fields map[string]interface{}) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	won, err := tx.TransitionRound(ctx, roundID, from, to, fields)
	if err != nil {
		return err
	}
	if !won {
		return ErrRoundNotActive
	}
	return nil
}

// StartRound abandons any round still ACTIVE in the room, deals roles and
// opens a new ACTIVE round.
func (e *Engine) StartRound(ctx context.Context, roomID uint) (*StartResult, error) {
	if _, err := e.catalog.EnsureMinimumCatalog(ctx); err != nil {
		return nil, err
	}

	var result *StartResult
	err := e.db.Transaction(ctx, func(tx persistence.Store) error {
		room, err := tx.GetRoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		players, err := tx.ListPlayers(ctx, roomID)
		if err != nil {
			return err
		}
		if len(players) < shuffle.MinPlayers || len(players) > shuffle.MaxPlayers {
			return &PlayerCountError{Count: len(players)}
		}
		resolved, err := tx.CountRounds(ctx, roomID, models.RoundResolved)
		if err != nil {
			return err
		}
		if resolved >= int64(room.MaxRounds) {
			return ErrRoundLimit
		}

		abandoned, err := tx.AbandonActiveRounds(ctx, roomID)
		if err != nil {
			return err
		}
		if abandoned > 0 {
			logger.Log.Warnf("Room %s: abandoned %d active round(s) before starting a new one", room.Code, abandoned)
		}
		if err := tx.SetRoomStatus(ctx, roomID, models.RoomInProgress); err != nil {
			return err
		}

		roles, err := tx.ListRoles(ctx)
		if err != nil {
			return err
		}
		prev, err := previousHolders(ctx, tx, roomID)
		if err != nil {
			return err
		}
		dealt, err := e.deal(players, roles, prev)
		if err != nil {
			return err
		}

		total, err := tx.CountRounds(ctx, roomID)
		if err != nil {
			return err
		}
		round := &models.Round{
			RoomID:           roomID,
			RoundNumber:      int(total) + 1,
			Status:           models.RoundAssigning,
			RemainingSeconds: room.TimerSeconds,
			StartedAt:        e.now(),
		}
		if err := tx.CreateRound(ctx, round); err != nil {
			return err
		}

		participations := make([]models.Participation, 0, len(dealt.Assignments))
		roleList := make([]PlayerRole, 0, len(dealt.Assignments))
		for _, a := range dealt.Assignments {
			participations = append(participations, models.Participation{
				RoundID:         round.ID,
				PlayerID:        a.Player.ID,
				PlayerName:      a.Player.Name,
				RoleName:        a.Role.Name,
				RoleDescription: a.Role.Description,
				WinPoints:       a.Role.WinPoints,
				LosePoints:      a.Role.LosePoints,
				Side:            a.Role.Side(),
			})
			roleList = append(roleList, PlayerRole{
				PlayerID:    a.Player.ID,
				SessionID:   a.Player.SessionID,
				Name:        a.Player.Name,
				Role:        a.Role.Name,
				Description: a.Role.Description,
				WinPoints:   a.Role.WinPoints,
				Side:        a.Role.Side(),
			})
		}
		if err := tx.CreateParticipations(ctx, participations); err != nil {
			return err
		}

		investigatorID := dealt.Investigator().Player.ID
		evaderID := dealt.Evader().Player.ID
		if err := e.transition(ctx, tx, round.ID, models.RoundAssigning, models.RoundActive, map[string]interface{}{
			"investigator_player_id": investigatorID,
			"evader_player_id":       evaderID,
		}); err != nil {
			return err
		}
		round.Status = models.RoundActive
		round.InvestigatorPlayerID = &investigatorID
		round.EvaderPlayerID = &evaderID

		result = &StartResult{Round: *round, Roles: roleList, Roster: players, Abandoned: abandoned}
		logger.Log.Infof("Room %s: round %d started with %d players (shuffle attempts %d)",
			room.Code, round.RoundNumber, len(players), dealt.Attempts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func previousHolders(ctx context.Context, tx persistence.Store, roomID uint) (*shuffle.Previous, error) {
	last, err := tx.LastFinishedRound(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prev := &shuffle.Previous{}
	if last.InvestigatorPlayerID != nil {
		prev.InvestigatorID = *last.InvestigatorPlayerID
	}
	if last.EvaderPlayerID != nil {
		prev.EvaderID = *last.EvaderPlayerID
	}
	return prev, nil
}

// ResolveByAccusation resolves the room's ACTIVE round with the
// investigator's accusation. The caller is checked against the round's
// recorded investigator; anyone else gets ErrNotInvestigator and nothing
// changes. An accused name that matches no player counts as a wrong
// accusation.
func (e *Engine) ResolveByAccusation(ctx context.Context, roomID uint, callerSessionID, accusedName string) (*Result, error) {
	var result *Result
	err := e.db.Transaction(ctx, func(tx persistence.Store) error {
		round, err := tx.GetActiveRound(ctx, roomID)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrNoActiveRound
		}
		if err != nil {
			return err
		}
		if round.InvestigatorPlayerID == nil || callerSessionID == "" {
			return ErrNotInvestigator
		}
		caller, err := tx.GetPlayerBySession(ctx, roomID, callerSessionID)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrNotInvestigator
		}
		if err != nil {
			return err
		}
		if caller.ID != *round.InvestigatorPlayerID {
			return ErrNotInvestigator
		}

		var accusedID *uint
		accused, err := tx.GetPlayerByName(ctx, roomID, accusedName)
		switch {
		case err == nil:
			accusedID = &accused.ID
		case !errors.Is(err, persistence.ErrRecordNotFound):
			return err
		}

		winner := models.EvaderSide
		if accusedID != nil && round.EvaderPlayerID != nil && *accusedID == *round.EvaderPlayerID {
			winner = models.InvestigatorSide
		}
		result, err = e.resolve(ctx, tx, round, winner, accusedID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("Room %d: round %d resolved by accusation of %q, winner %s",
		roomID, result.RoundNumber, accusedName, result.Winner)
	return result, nil
}

// ResolveByTimeout resolves roundID in favour of the evader. It returns
// ErrRoundNotActive if the round was already resolved or abandoned.
func (e *Engine) ResolveByTimeout(ctx context.Context, roundID uint) (*Result, error) {
	var result *Result
	err := e.db.Transaction(ctx, func(tx persistence.Store) error {
		round, err := tx.GetRound(ctx, roundID)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrRoundNotActive
		}
		if err != nil {
			return err
		}
		result, err = e.resolve(ctx, tx, round, models.EvaderSide, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("Room %d: round %d timed out, winner %s", result.RoomID, result.RoundNumber, result.Winner)
	return result, nil
}

// resolve is the single gate for both resolution paths: only the writer
// that wins the ACTIVE -> RESOLVED swap scores the round.
func (e *Engine) resolve(ctx context.Context, tx persistence.Store, round *models.Round, winner models.Winner, accusedID *uint) (*Result, error) {
	now := e.now()
	if err := e.transition(ctx, tx, round.ID, models.RoundActive, models.RoundResolved, map[string]interface{}{
		"winner":      winner,
		"resolved_at": now,
	}); err != nil {
		return nil, err
	}

	participations, err := tx.ListParticipations(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RoomID:      round.RoomID,
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		Winner:      winner,
		EvaderName:  "Unknown",
	}
	for i := range participations {
		p := &participations[i]
		p.FinalScore = Score(*p, winner)
		if accusedID != nil && p.PlayerID == *accusedID {
			p.IsImplicated = true
			p.IsWronglyAccused = winner == models.EvaderSide
		}
		if err := tx.SaveParticipation(ctx, p); err != nil {
			return nil, err
		}
		if p.FinalScore != 0 {
			if err := tx.AddPlayerScore(ctx, p.PlayerID, p.FinalScore); err != nil {
				return nil, err
			}
		}
		if p.Side == models.SideEvader {
			result.EvaderName = p.PlayerName
		}
		result.Roles = append(result.Roles, RoleReveal{
			Name:             p.PlayerName,
			Role:             p.RoleName,
			Side:             p.Side,
			FinalScore:       p.FinalScore,
			IsImplicated:     p.IsImplicated,
			IsWronglyAccused: p.IsWronglyAccused,
		})
	}

	result.Scores, err = scoreboard(ctx, tx, round.RoomID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scoreboard(ctx context.Context, tx persistence.Store, roomID uint) ([]ScoreEntry, error) {
	players, err := tx.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	scores := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		scores = append(scores, ScoreEntry{Name: p.Name, Avatar: p.Avatar, Score: p.TotalScore})
	}
	return scores, nil
}

// Tick records the countdown on an ACTIVE round and reports whether the
// round is still ACTIVE.
func (e *Engine) Tick(ctx context.Context, roundID uint, remaining int) (bool, error) {
	return e.db.UpdateRemainingSeconds(ctx, roundID, remaining)
}

// ActiveRound returns the room's ACTIVE round or ErrNoActiveRound.
func (e *Engine) ActiveRound(ctx context.Context, roomID uint) (*models.Round, error) {
	round, err := e.db.GetActiveRound(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrNoActiveRound
	}
	return round, err
}

// DealtRole returns the role a player holds in the room's ACTIVE round.
// It returns ErrNoActiveRound when no round is in play, and
// persistence.ErrRecordNotFound when the player joined after the deal.
func (e *Engine) DealtRole(ctx context.Context, roomID uint, player *models.Player) (*models.Round, *PlayerRole, error) {
	round, err := e.ActiveRound(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.db.GetParticipation(ctx, round.ID, player.ID)
	if err != nil {
		return nil, nil, err
	}
	return round, &PlayerRole{
		PlayerID:    player.ID,
		SessionID:   player.SessionID,
		Name:        p.PlayerName,
		Role:        p.RoleName,
		Description: p.RoleDescription,
		WinPoints:   p.WinPoints,
		Side:        p.Side,
	}, nil
}

// AbandonActive moves the room's ACTIVE round to ABANDONED. It returns
// ErrNoActiveRound when there is nothing to abandon.
func (e *Engine) AbandonActive(ctx context.Context, roomID uint) (*models.Round, error) {
	var abandoned *models.Round
	err := e.db.Transaction(ctx, func(tx persistence.Store) error {
		round, err := tx.GetActiveRound(ctx, roomID)
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrNoActiveRound
		}
		if err != nil {
			return err
		}
		if err := e.transition(ctx, tx, round.ID, models.RoundActive, models.RoundAbandoned, nil); err != nil {
			return err
		}
		round.Status = models.RoundAbandoned
		abandoned = round
		return nil
	})
	return abandoned, err
}

// RoundLimitReached reports whether the room has resolved maxRounds rounds.
func (e *Engine) RoundLimitReached(ctx context.Context, roomID uint) (bool, error) {
	room, err := e.db.GetRoomByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	resolved, err := e.db.CountRounds(ctx, roomID, models.RoundResolved)
	if err != nil {
		return false, err
	}
	return resolved >= int64(room.MaxRounds), nil
}

// FinishGame marks the room FINISHED and returns the final standings,
// highest score first.
func (e *Engine) FinishGame(ctx context.Context, roomID uint) ([]ScoreEntry, error) {
	var scores []ScoreEntry
	err := e.db.Transaction(ctx, func(tx persistence.Store) error {
		if err := tx.SetRoomStatus(ctx, roomID, models.RoomFinished); err != nil {
			return err
		}
		var err error
		scores, err = scoreboard(ctx, tx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}
