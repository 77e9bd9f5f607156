// session/session.go
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wfunc/thiefhunt/network"
)

// Session is one live connection. ID identifies the connection, SessionID
// identifies the player it speaks for; a player may reconnect under a new
// connection with the same SessionID.
type Session struct {
	ID         string
	Conn       network.Connection
	SessionID  string
	RoomCode   string
	CreatedAt  time.Time
	LastActive time.Time
	limiter    *rate.Limiter
	mutex      sync.RWMutex
}

func NewSession(id, sessionID, roomCode string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		SessionID:  sessionID,
		RoomCode:   roomCode,
		CreatedAt:  now,
		LastActive: now,
	}
}

// SetRateLimit caps inbound messages. Without a limit Allow always passes.
func (s *Session) SetRateLimit(perSecond float64, burst int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Allow 记录一次入站消息，超过速率限制时返回 false
func (s *Session) Allow() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActive = time.Now()
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Send encodes event as a JSON frame.
func (s *Session) Send(event interface{}) error {
	data, err := network.Encode(event)
	if err != nil {
		return err
	}
	return s.Conn.Send(data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Idle() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.LastActive)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[id]
	return session, exists
}

// GetBySessionID returns every live connection of one player.
func (m *Manager) GetBySessionID(sessionID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.SessionID == sessionID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every live connection.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
