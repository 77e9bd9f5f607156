// room/room.go
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/thiefhunt/session"
)

var ErrRoomFull = errors.New("room connection limit reached")

// Room 是房间在内存中的广播组，持久状态保存在数据库中
type Room struct {
	Code        string
	RoomID      uint
	MaxMembers  int
	Members     map[string]*session.Session // connection ID -> session
	CreatedAt   time.Time
	broadcaster Broadcaster
	memberMutex sync.RWMutex

	// writer serialises every state-changing operation of the room:
	// start_game, arrest, disconnect handling and timer hooks.
	writer sync.Mutex
}

// NewRoom 创建一个新房间
func NewRoom(code string, roomID uint, maxMembers int, broadcaster Broadcaster) *Room {
	return &Room{
		Code:        code,
		RoomID:      roomID,
		MaxMembers:  maxMembers,
		Members:     make(map[string]*session.Session),
		CreatedAt:   time.Now(),
		broadcaster: broadcaster,
	}
}

// Lock 获取房间写锁
func (r *Room) Lock()   { r.writer.Lock() }
func (r *Room) Unlock() { r.writer.Unlock() }

// Broadcast sends an event to every member of the room.
func (r *Room) Broadcast(event interface{}) error {
	return r.broadcaster.BroadcastToRoom(r.Code, event)
}

// SendToSession sends an event to every connection of one player.
func (r *Room) SendToSession(sessionID string, event interface{}) error {
	return r.broadcaster.SendToSession(r.Code, sessionID, event)
}

// AddMember 添加一个连接到房间
func (r *Room) AddMember(s *session.Session) error {
	r.memberMutex.Lock()
	defer r.memberMutex.Unlock()

	if r.MaxMembers > 0 && len(r.Members) >= r.MaxMembers {
		return ErrRoomFull
	}
	r.Members[s.ID] = s
	s.RoomCode = r.Code
	return nil
}

// RemoveMember removes a connection and returns how many remain.
func (r *Room) RemoveMember(id string) int {
	r.memberMutex.Lock()
	defer r.memberMutex.Unlock()

	delete(r.Members, id)
	return len(r.Members)
}

// HasSession reports whether the player still has a live connection.
func (r *Room) HasSession(sessionID string) bool {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()

	for _, s := range r.Members {
		if s.SessionID == sessionID {
			return true
		}
	}
	return false
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.Members))
	for _, s := range r.Members {
		sessions = append(sessions, s)
	}
	return sessions
}

func (r *Room) MemberCount() int {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()
	return len(r.Members)
}

// --- 房间管理器 ---

// Manager 管理所有在线房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the live room for code, creating it on first use.
func (m *Manager) GetOrCreate(code string, roomID uint, maxMembers int, broadcaster Broadcaster) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[code]; exists {
		return room
	}
	room := NewRoom(code, roomID, maxMembers, broadcaster)
	m.rooms[code] = room
	return room
}

// Join adds s to the live room for code, creating the room on first use.
// Holding the manager lock keeps a concurrent RemoveIfEmpty from dropping
// the room between lookup and insert.
func (m *Manager) Join(code string, roomID uint, maxMembers int, broadcaster Broadcaster, s *session.Session) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[code]
	if !exists {
		room = NewRoom(code, roomID, maxMembers, broadcaster)
		m.rooms[code] = room
	}
	if err := room.AddMember(s); err != nil {
		if !exists {
			delete(m.rooms, code)
		}
		return nil, err
	}
	return room, nil
}

// RemoveIfEmpty drops the room once its last connection is gone.
func (m *Manager) RemoveIfEmpty(code string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[code]
	if !exists || room.MemberCount() > 0 {
		return false
	}
	delete(m.rooms, code)
	return true
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[code]
	return room, exists
}

// IsLive reports whether the room has at least one connection.
func (m *Manager) IsLive(code string) bool {
	room, exists := m.GetRoom(code)
	return exists && room.MemberCount() > 0
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
