// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/network"
	"github.com/wfunc/thiefhunt/room"
	"github.com/wfunc/thiefhunt/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomCode string, event interface{}) error
	SendToSession(roomCode, sessionID string, event interface{}) error
	BroadcastToAll(event interface{}) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom encodes event once and writes it to every member.
// A failed write is logged; the reader side of that connection will
// notice and run the disconnect path.
func (b *RoomBroadcaster) BroadcastToRoom(roomCode string, event interface{}) error {
	r, exists := b.roomManager.GetRoom(roomCode)
	if !exists {
		return ErrRoomNotFound
	}
	data, err := network.Encode(event)
	if err != nil {
		return err
	}

	for _, s := range r.GetSessions() {
		if err := s.Conn.Send(data); err != nil {
			logger.Log.Warnf("Broadcast to %s in room %s failed: %v", s.GetID(), roomCode, err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToSession(roomCode, sessionID string, event interface{}) error {
	r, exists := b.roomManager.GetRoom(roomCode)
	if !exists {
		return ErrRoomNotFound
	}
	data, err := network.Encode(event)
	if err != nil {
		return err
	}

	for _, s := range r.GetSessions() {
		if s.SessionID != sessionID {
			continue
		}
		if err := s.Conn.Send(data); err != nil {
			logger.Log.Warnf("Send to %s in room %s failed: %v", s.GetID(), roomCode, err)
		}
	}
	return nil
}

// BroadcastToAll reaches every live connection regardless of room.
func (b *RoomBroadcaster) BroadcastToAll(event interface{}) error {
	data, err := network.Encode(event)
	if err != nil {
		return err
	}
	for _, s := range b.sessionManager.All() {
		if err := s.Conn.Send(data); err != nil {
			continue
		}
	}
	return nil
}
