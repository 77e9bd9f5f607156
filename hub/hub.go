// Package hub binds live connections to rooms and turns client actions
// into round lifecycle operations.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/monitor"
	"github.com/wfunc/thiefhunt/network"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/room"
	"github.com/wfunc/thiefhunt/services"
	"github.com/wfunc/thiefhunt/session"
	"github.com/wfunc/thiefhunt/state"
	"github.com/wfunc/thiefhunt/timer"
)

var ErrUnknownSession = errors.New("unknown session")

// Config tunes per-connection behaviour.
type Config struct {
	MessagesPerSecond     float64
	MessageBurst          int
	HeartbeatInterval     time.Duration
	MaxConnectionsPerRoom int
}

type Hub struct {
	rooms       *services.RoomService
	catalog     *services.CatalogService
	engine      *state.Engine
	timers      *timer.Manager
	roomManager *room.Manager
	sessions    *session.Manager
	broadcaster room.Broadcaster
	monitor     *monitor.Monitor
	cfg         Config
}

func New(
	rooms *services.RoomService,
	catalog *services.CatalogService,
	engine *state.Engine,
	timers *timer.Manager,
	roomManager *room.Manager,
	sessions *session.Manager,
	broadcaster room.Broadcaster,
	mon *monitor.Monitor,
	cfg Config,
) *Hub {
	return &Hub{
		rooms:       rooms,
		catalog:     catalog,
		engine:      engine,
		timers:      timers,
		roomManager: roomManager,
		sessions:    sessions,
		broadcaster: broadcaster,
		monitor:     mon,
		cfg:         cfg,
	}
}

// IsLive reports whether a room has live connections. The janitor uses it
// to leave rooms in play alone.
func (h *Hub) IsLive(roomCode string) bool {
	return h.roomManager.IsLive(roomCode)
}

// Serve runs one connection until it closes or ctx is cancelled. The
// connection is closed on return.
func (h *Hub) Serve(ctx context.Context, conn network.Connection, roomCode, sessionID string) error {
	dbRoom, err := h.rooms.GetRoom(ctx, roomCode)
	if err != nil {
		reject(conn, "room not found")
		return err
	}
	player, err := h.rooms.Player(ctx, dbRoom.ID, sessionID)
	if err != nil {
		reject(conn, "join the room before connecting")
		if errors.Is(err, services.ErrPlayerNotFound) {
			return ErrUnknownSession
		}
		return err
	}

	sess := session.NewSession(uuid.New().String(), sessionID, dbRoom.Code, conn)
	sess.SetRateLimit(h.cfg.MessagesPerSecond, h.cfg.MessageBurst)
	live, err := h.roomManager.Join(dbRoom.Code, dbRoom.ID, h.cfg.MaxConnectionsPerRoom, h.broadcaster, sess)
	if err != nil {
		reject(conn, "room is full")
		return err
	}
	h.sessions.Add(sess)
	h.monitor.IncConnectedSessions()
	h.monitor.SetActiveRooms(h.roomManager.Count())
	conn.SetHeartbeat(h.cfg.HeartbeatInterval)

	logger.Log.Infof("Session %s connected to room %s from %s", sessionID, dbRoom.Code, conn.RemoteAddr())
	defer h.disconnect(context.WithoutCancel(ctx), live, sess)

	h.broadcastRoster(ctx, live)
	h.resendRole(ctx, live, sess, player)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sess.Allow() {
			h.monitor.IncMessagesDropped()
			sess.Send(network.NewError("too many messages"))
			continue
		}

		start := time.Now()
		action, err := network.DecodeAction(data)
		if err != nil {
			logger.Log.Warnf("Session %s sent a bad message: %v", sessionID, err)
			sess.Send(network.NewError("invalid message"))
			continue
		}
		h.monitor.IncMessagesReceived(action.Name())
		h.dispatch(ctx, live, sess, action)
		h.monitor.ObserveMessageLatency(time.Since(start))
	}
}

// resendRole gives a connection opened mid-round the role its player was
// dealt. Players who joined after the deal have none.
func (h *Hub) resendRole(ctx context.Context, live *room.Room, sess *session.Session, player *models.Player) {
	live.Lock()
	defer live.Unlock()

	round, role, err := h.engine.DealtRole(ctx, live.RoomID, player)
	switch {
	case errors.Is(err, state.ErrNoActiveRound), errors.Is(err, persistence.ErrRecordNotFound):
		return
	case err != nil:
		logger.Log.Errorf("Room %s: failed to load role of %s: %v", live.Code, player.Name, err)
		return
	}
	var roster []models.Player
	if role.IsInvestigator() {
		if roster, err = h.rooms.Roster(ctx, live.RoomID); err != nil {
			logger.Log.Errorf("Room %s: failed to load roster: %v", live.Code, err)
			return
		}
	}
	sess.Send(roleAssigned(*round, *role, roster))
}

func reject(conn network.Connection, message string) {
	if data, err := network.Encode(network.NewError(message)); err == nil {
		conn.Send(data)
	}
	conn.Close()
}

// disconnect removes the connection. When it was the player's last
// connection the player leaves the room, which can hand over the host and
// abort a round that can no longer finish.
func (h *Hub) disconnect(ctx context.Context, live *room.Room, sess *session.Session) {
	defer sess.Close()

	h.sessions.Remove(sess.ID)
	remaining := live.RemoveMember(sess.ID)
	h.monitor.DecConnectedSessions()
	logger.Log.Infof("Session %s disconnected from room %s", sess.SessionID, live.Code)

	live.Lock()
	defer live.Unlock()

	if !live.HasSession(sess.SessionID) {
		h.removePlayer(ctx, live, sess.SessionID)
	}
	if remaining == 0 {
		h.timers.StopRoom(live.Code)
		h.roomManager.RemoveIfEmpty(live.Code)
	}
	h.monitor.SetActiveRooms(h.roomManager.Count())
}

// Shutdown stops every countdown and closes every connection.
func (h *Hub) Shutdown() {
	h.timers.StopAll()
	for _, s := range h.sessions.All() {
		s.Close()
	}
}
