package room

// Broadcaster delivers events to the live members of a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomCode string, event interface{}) error
	SendToSession(roomCode, sessionID string, event interface{}) error
}
