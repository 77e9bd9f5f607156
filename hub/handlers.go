package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/network"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/room"
	"github.com/wfunc/thiefhunt/services"
	"github.com/wfunc/thiefhunt/session"
	"github.com/wfunc/thiefhunt/shuffle"
	"github.com/wfunc/thiefhunt/state"
	"github.com/wfunc/thiefhunt/timer"
)

func (h *Hub) dispatch(ctx context.Context, live *room.Room, sess *session.Session, action network.Action) {
	switch a := action.(type) {
	case network.GetSettings:
		h.handleGetSettings(ctx, live, sess)
	case network.UpdateSettings:
		h.handleUpdateSettings(ctx, live, sess, a)
	case network.Join:
		h.broadcastRoster(ctx, live)
	case network.StartGame:
		h.handleStartGame(ctx, live, sess)
	case network.NextRound:
		h.handleNextRound(ctx, live, sess)
	case network.Arrest:
		h.handleArrest(ctx, live, sess, a)
	}
}

func (h *Hub) broadcastRoster(ctx context.Context, live *room.Room) {
	players, err := h.rooms.Roster(ctx, live.RoomID)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to load roster: %v", live.Code, err)
		return
	}
	live.Broadcast(network.PlayerJoinedEvent{Action: network.EventPlayerJoined, Players: playerInfos(players)})
}

func (h *Hub) handleGetSettings(ctx context.Context, live *room.Room, sess *session.Session) {
	settings, err := h.settings(ctx, live.RoomID)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to load settings: %v", live.Code, err)
		sess.Send(network.NewError("failed to load settings"))
		return
	}
	sess.Send(network.SettingsDataEvent{Action: network.EventSettingsData, Settings: *settings})
}

func (h *Hub) settings(ctx context.Context, roomID uint) (*network.Settings, error) {
	dbRoom, err := h.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	roles, err := h.catalog.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	settings := &network.Settings{
		MaxRounds:    dbRoom.MaxRounds,
		TimerSeconds: dbRoom.TimerSeconds,
		Roles:        make([]network.RoleSettings, 0, len(roles)),
	}
	for _, r := range roles {
		settings.Roles = append(settings.Roles, network.RoleSettings{ID: r.ID, Name: r.Name, WinPoints: r.WinPoints})
	}
	return settings, nil
}

// handleUpdateSettings validates every field before writing any of them,
// then saves the round limit and role edits together.
func (h *Hub) handleUpdateSettings(ctx context.Context, live *room.Room, sess *session.Session, a network.UpdateSettings) {
	if a.MaxRounds < 1 {
		sess.Send(network.NewError("max_rounds must be at least 1"))
		return
	}
	for _, r := range a.Roles {
		if r.ID == 0 {
			sess.Send(network.NewError("role id is required"))
			return
		}
		if r.WinPoints <= 0 {
			sess.Send(network.NewError(fmt.Sprintf("win_points for role %d must be positive", r.ID)))
			return
		}
	}

	edits := make([]services.RoleEdit, 0, len(a.Roles))
	for _, r := range a.Roles {
		update := services.RoleUpdate{WinPoints: &r.WinPoints}
		if r.Name != "" {
			name := r.Name
			update.Name = &name
		}
		edits = append(edits, services.RoleEdit{ID: r.ID, Update: update})
	}
	if err := h.rooms.UpdateSettings(ctx, live.RoomID, a.MaxRounds, edits); err != nil {
		h.replySettingsError(live, sess, err)
		return
	}
	logger.Log.Infof("Room %s: settings updated by %s", live.Code, sess.SessionID)
	sess.Send(network.MessageEvent{Action: network.EventSettingsSaved})
}

func (h *Hub) replySettingsError(live *room.Room, sess *session.Session, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSettings), errors.Is(err, services.ErrInvalidRole):
		sess.Send(network.NewError(err.Error()))
	case errors.Is(err, persistence.ErrRecordNotFound):
		sess.Send(network.NewError("role not found"))
	default:
		logger.Log.Errorf("Room %s: failed to save settings: %v", live.Code, err)
		sess.Send(network.NewError("failed to save settings"))
	}
}

func (h *Hub) handleStartGame(ctx context.Context, live *room.Room, sess *session.Session) {
	live.Lock()
	defer live.Unlock()

	started, err := h.engine.StartRound(ctx, live.RoomID)
	var countErr *state.PlayerCountError
	var assignErr *shuffle.AssignmentError
	switch {
	case errors.As(err, &countErr):
		sess.Send(network.NewError(countErr.Error()))
		return
	case errors.Is(err, state.ErrRoundLimit):
		h.finishGame(ctx, live)
		return
	case errors.As(err, &assignErr):
		logger.Log.Errorf("Room %s: %v", live.Code, assignErr)
		sess.Send(network.NewError(assignErr.Error()))
		return
	case err != nil:
		logger.Log.Errorf("Room %s: failed to start round: %v", live.Code, err)
		sess.Send(network.NewError("failed to start round"))
		return
	}
	h.monitor.IncRoundsStarted()

	live.Broadcast(network.PlayerJoinedEvent{Action: network.EventPlayerJoined, Players: playerInfos(started.Roster)})
	for _, pr := range started.Roles {
		live.SendToSession(pr.SessionID, roleAssigned(started.Round, pr, started.Roster))
	}

	h.startCountdown(live, started.Round)
}

// startCountdown runs the round timer. Both hooks take the room lock and
// give up if the countdown was cancelled while they waited for it.
func (h *Hub) startCountdown(live *room.Room, round models.Round) {
	roundID := round.ID
	h.timers.Start(timer.Task{
		RoomCode: live.Code,
		RoundID:  roundID,
		Seconds:  round.RemainingSeconds,
		Tick: func(ctx context.Context, remaining int) bool {
			live.Lock()
			defer live.Unlock()
			if ctx.Err() != nil {
				return false
			}
			active, err := h.engine.Tick(ctx, roundID, remaining)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				logger.Log.Errorf("Room %s: failed to record countdown: %v", live.Code, err)
			} else if !active {
				return false
			}
			live.Broadcast(network.TimerTickEvent{Action: network.EventTimerTick, Seconds: remaining})
			return true
		},
		Expire: func(ctx context.Context) {
			live.Lock()
			defer live.Unlock()
			if ctx.Err() != nil {
				return
			}
			result, err := h.engine.ResolveByTimeout(ctx, roundID)
			if errors.Is(err, state.ErrRoundNotActive) {
				return
			}
			if err != nil {
				logger.Log.Errorf("Room %s: failed to resolve round %d on timeout: %v", live.Code, roundID, err)
				return
			}
			h.monitor.IncRoundsResolved(string(result.Winner), "timeout")
			live.Broadcast(roundEnded(result))
		},
	})
}

// handleArrest resolves the round by accusation. Callers that are not the
// investigator, or arrests with no round in play, are dropped silently.
func (h *Hub) handleArrest(ctx context.Context, live *room.Room, sess *session.Session, a network.Arrest) {
	live.Lock()
	defer live.Unlock()

	result, err := h.engine.ResolveByAccusation(ctx, live.RoomID, sess.SessionID, a.AccusedName)
	switch {
	case errors.Is(err, state.ErrNotInvestigator),
		errors.Is(err, state.ErrNoActiveRound),
		errors.Is(err, state.ErrRoundNotActive):
		logger.Log.Warnf("Room %s: arrest from %s ignored: %v", live.Code, sess.SessionID, err)
		return
	case err != nil:
		logger.Log.Errorf("Room %s: failed to resolve arrest: %v", live.Code, err)
		sess.Send(network.NewError("failed to resolve arrest"))
		return
	}

	h.timers.Stop(live.Code, result.RoundID)
	h.monitor.IncRoundsResolved(string(result.Winner), "accusation")
	live.Broadcast(roundEnded(result))
}

func (h *Hub) handleNextRound(ctx context.Context, live *room.Room, sess *session.Session) {
	live.Lock()
	defer live.Unlock()

	reached, err := h.engine.RoundLimitReached(ctx, live.RoomID)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to check round limit: %v", live.Code, err)
		sess.Send(network.NewError("failed to advance round"))
		return
	}
	if reached {
		h.finishGame(ctx, live)
		return
	}
	live.Broadcast(network.MessageEvent{Action: network.EventResetRound})
}

func (h *Hub) finishGame(ctx context.Context, live *room.Room) {
	scores, err := h.engine.FinishGame(ctx, live.RoomID)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to finish game: %v", live.Code, err)
		return
	}
	logger.Log.Infof("Room %s: game over", live.Code)
	live.Broadcast(network.GameOverEvent{Action: network.EventGameOver, Scores: scoreInfos(scores)})
}

// removePlayer is called under the room lock.
func (h *Hub) removePlayer(ctx context.Context, live *room.Room, sessionID string) {
	removed, newHost, err := h.rooms.RemovePlayer(ctx, live.RoomID, sessionID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return
	}
	if err != nil {
		logger.Log.Errorf("Room %s: failed to remove %s: %v", live.Code, sessionID, err)
		return
	}
	if newHost != nil {
		live.Broadcast(network.HostChangeEvent{
			Action:      network.EventHostChange,
			NewHostID:   newHost.ID,
			NewHostName: newHost.Name,
		})
	}

	if round, err := h.engine.ActiveRound(ctx, live.RoomID); err == nil {
		h.abortIfUnplayable(ctx, live, round, removed)
	} else if !errors.Is(err, state.ErrNoActiveRound) {
		logger.Log.Errorf("Room %s: failed to load active round: %v", live.Code, err)
	}
	h.broadcastRoster(ctx, live)
}

func (h *Hub) abortIfUnplayable(ctx context.Context, live *room.Room, round *models.Round, removed *models.Player) {
	heldSpecialRole := (round.InvestigatorPlayerID != nil && *round.InvestigatorPlayerID == removed.ID) ||
		(round.EvaderPlayerID != nil && *round.EvaderPlayerID == removed.ID)

	count, err := h.rooms.CountPlayers(ctx, live.RoomID)
	if err != nil {
		logger.Log.Errorf("Room %s: failed to count players: %v", live.Code, err)
		return
	}
	if count >= shuffle.MinPlayers && !heldSpecialRole {
		return
	}

	aborted, err := h.engine.AbandonActive(ctx, live.RoomID)
	if err != nil {
		if !errors.Is(err, state.ErrNoActiveRound) && !errors.Is(err, state.ErrRoundNotActive) {
			logger.Log.Errorf("Room %s: failed to abort round: %v", live.Code, err)
		}
		return
	}
	h.timers.Stop(live.Code, aborted.ID)
	h.monitor.IncRoundsAborted()
	logger.Log.Infof("Room %s: round %d aborted after %s left", live.Code, aborted.RoundNumber, removed.Name)

	live.Broadcast(network.RoundAbortedEvent{
		Action: network.EventRoundAborted,
		Reason: fmt.Sprintf("%s left the game", removed.Name),
	})
	live.Broadcast(network.MessageEvent{Action: network.EventResetRound})
}
