package room

import (
	"net"
	"testing"
	"time"

	"github.com/wfunc/thiefhunt/session"
)

// MockBroadcaster is a test double for the Broadcaster interface.
type MockBroadcaster struct {
	roomEvents    []interface{}
	sessionEvents map[string][]interface{}
}

func (m *MockBroadcaster) BroadcastToRoom(roomCode string, event interface{}) error {
	m.roomEvents = append(m.roomEvents, event)
	return nil
}

func (m *MockBroadcaster) SendToSession(roomCode, sessionID string, event interface{}) error {
	if m.sessionEvents == nil {
		m.sessionEvents = make(map[string][]interface{})
	}
	m.sessionEvents[sessionID] = append(m.sessionEvents[sessionID], event)
	return nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(data []byte) error              { return nil }
func (m *MockConnection) ReadMessage() ([]byte, error)        { return nil, net.ErrClosed }
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

// newTestSession creates a dummy session for testing purposes.
func newTestSession(id, sessionID string) *session.Session {
	return session.NewSession(id, sessionID, "", &MockConnection{})
}

func TestRoomManager_GetOrCreate(t *testing.T) {
	manager := NewRoomManager()
	b := &MockBroadcaster{}

	room := manager.GetOrCreate("ABC123", 7, 4, b)
	if room == nil {
		t.Fatal("GetOrCreate should not return nil")
	}
	if room.Code != "ABC123" || room.RoomID != 7 {
		t.Errorf("Unexpected room identity %s/%d", room.Code, room.RoomID)
	}

	again := manager.GetOrCreate("ABC123", 7, 4, b)
	if again != room {
		t.Error("GetOrCreate should return the existing room instance")
	}

	retrieved, exists := manager.GetRoom("ABC123")
	if !exists || retrieved != room {
		t.Fatal("GetRoom should find the created room")
	}
}

func TestRoom_AddMember(t *testing.T) {
	room := NewRoom("ROOM01", 1, 2, &MockBroadcaster{})
	s := newTestSession("c1", "alice")

	if err := room.AddMember(s); err != nil {
		t.Fatalf("Failed to add first member: %v", err)
	}
	if room.MemberCount() != 1 {
		t.Errorf("Expected member count to be 1, got %d", room.MemberCount())
	}
	if s.RoomCode != "ROOM01" {
		t.Errorf("AddMember should bind the session to the room, got %q", s.RoomCode)
	}
	if !room.HasSession("alice") {
		t.Error("HasSession should find alice")
	}
}

func TestRoom_AddMember_Full(t *testing.T) {
	room := NewRoom("ROOM02", 2, 1, &MockBroadcaster{})

	if err := room.AddMember(newTestSession("c1", "alice")); err != nil {
		t.Fatal("Failed to add the first member")
	}
	if err := room.AddMember(newTestSession("c2", "bob")); err != ErrRoomFull {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}
	if room.MemberCount() != 1 {
		t.Errorf("Expected member count to be 1 after trying to add to a full room, got %d", room.MemberCount())
	}
}

func TestRoom_RemoveMember(t *testing.T) {
	manager := NewRoomManager()
	room := manager.GetOrCreate("ROOM03", 3, 0, &MockBroadcaster{})

	room.AddMember(newTestSession("c1", "alice"))
	room.AddMember(newTestSession("c2", "alice"))

	if left := room.RemoveMember("c1"); left != 1 {
		t.Fatalf("Expected 1 remaining member, got %d", left)
	}
	if !room.HasSession("alice") {
		t.Error("alice still has a second connection")
	}
	if manager.RemoveIfEmpty("ROOM03") {
		t.Error("RemoveIfEmpty should keep a room with members")
	}
	if !manager.IsLive("ROOM03") {
		t.Error("room with a member should be live")
	}

	room.RemoveMember("c2")
	if !manager.RemoveIfEmpty("ROOM03") {
		t.Error("RemoveIfEmpty should drop an empty room")
	}
	if manager.IsLive("ROOM03") || manager.Count() != 0 {
		t.Error("room should be gone")
	}
}

func TestRoom_BroadcastDelegates(t *testing.T) {
	b := &MockBroadcaster{}
	room := NewRoom("ROOM04", 4, 0, b)

	room.Broadcast("hello")
	room.SendToSession("bob", "secret")

	if len(b.roomEvents) != 1 {
		t.Errorf("Expected 1 room event, got %d", len(b.roomEvents))
	}
	if len(b.sessionEvents["bob"]) != 1 {
		t.Errorf("Expected 1 event for bob, got %d", len(b.sessionEvents["bob"]))
	}
}

func TestRoomManager_Join(t *testing.T) {
	manager := NewRoomManager()
	b := &MockBroadcaster{}

	room, err := manager.Join("ROOM05", 5, 1, b, newTestSession("c1", "alice"))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if !manager.IsLive("ROOM05") {
		t.Fatal("room should be live after a join")
	}

	if _, err := manager.Join("ROOM05", 5, 1, b, newTestSession("c2", "bob")); err != ErrRoomFull {
		t.Fatalf("Expected ErrRoomFull, got %v", err)
	}
	if room.MemberCount() != 1 {
		t.Errorf("Expected 1 member, got %d", room.MemberCount())
	}
}
