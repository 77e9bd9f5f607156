// services/room_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/wfunc/thiefhunt/logger"
	"github.com/wfunc/thiefhunt/models"
	"github.com/wfunc/thiefhunt/persistence"
	"github.com/wfunc/thiefhunt/shuffle"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxNameLength    = 50
	maxAvatarLength  = 100
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room full")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrInvalidName     = errors.New("invalid player name")
	ErrInvalidAvatar   = errors.New("invalid avatar")
	ErrInvalidSettings = errors.New("invalid settings")
)

// RoomDefaults are applied to every new room.
type RoomDefaults struct {
	MaxRounds    int
	TimerSeconds int
}

// RoomService is the registry of persisted rooms and their rosters.
type RoomService struct {
	db       persistence.Store
	defaults RoomDefaults
}

func NewRoomService(db persistence.Store, defaults RoomDefaults) *RoomService {
	if defaults.MaxRounds < 1 {
		defaults.MaxRounds = 5
	}
	if defaults.TimerSeconds < 1 {
		defaults.TimerSeconds = 60
	}
	return &RoomService{db: db, defaults: defaults}
}

func generateRoomCode() string {
	var b strings.Builder
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))])
	}
	return b.String()
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

// CreateRoom opens a room with hostName as its first player and host.
func (s *RoomService) CreateRoom(ctx context.Context, hostName string) (*models.Room, *models.Player, error) {
	name, err := normalizeName(hostName)
	if err != nil {
		return nil, nil, err
	}
	sessionID := uuid.New().String()

	var room *models.Room
	var host *models.Player
	for attempt := 0; attempt < 5; attempt++ {
		err = s.db.Transaction(ctx, func(tx persistence.Store) error {
			room = &models.Room{
				Code:          generateRoomCode(),
				HostSessionID: sessionID,
				Status:        models.RoomWaiting,
				MaxRounds:     s.defaults.MaxRounds,
				TimerSeconds:  s.defaults.TimerSeconds,
			}
			if err := tx.CreateRoom(ctx, room); err != nil {
				return err
			}
			host = &models.Player{RoomID: room.ID, SessionID: sessionID, Name: name, Avatar: models.DefaultAvatar, IsHost: true}
			return tx.CreatePlayer(ctx, host)
		})
		if !errors.Is(err, persistence.ErrDuplicateName) {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}
	logger.Log.Infof("Room %s created by %s", room.Code, host.Name)
	return room, host, nil
}

func (s *RoomService) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.db.GetRoomByCode(ctx, strings.ToUpper(code))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (s *RoomService) GetRoomByID(ctx context.Context, roomID uint) (*models.Room, error) {
	room, err := s.db.GetRoomByID(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// JoinRoom returns the player bound to sessionID, creating it on first
// join. A display name already taken in the room gets a " #NNNN" suffix.
// An empty sessionID is issued a new one.
func (s *RoomService) JoinRoom(ctx context.Context, code, displayName, sessionID string) (*models.Player, error) {
	name, err := normalizeName(displayName)
	if err != nil {
		return nil, err
	}
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	existing, err := s.db.GetPlayerBySession(ctx, room.ID, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, err
	}

	count, err := s.db.CountPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if count >= shuffle.MaxPlayers {
		return nil, ErrRoomFull
	}

	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		player := &models.Player{RoomID: room.ID, SessionID: sessionID, Name: candidate, Avatar: models.DefaultAvatar}
		err = s.db.CreatePlayer(ctx, player)
		if err == nil {
			logger.Log.Infof("Player %s joined room %s", player.Name, room.Code)
			return player, nil
		}
		if !errors.Is(err, persistence.ErrDuplicateName) {
			return nil, err
		}
		candidate = fmt.Sprintf("%s #%d", name, 1000+rand.IntN(9000))
	}
	return nil, err
}

// Player returns the player bound to sessionID in the room.
func (s *RoomService) Player(ctx context.Context, roomID uint, sessionID string) (*models.Player, error) {
	player, err := s.db.GetPlayerBySession(ctx, roomID, sessionID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	return player, err
}

// Roster lists the players of a room in join order.
func (s *RoomService) Roster(ctx context.Context, roomID uint) ([]models.Player, error) {
	return s.db.ListPlayers(ctx, roomID)
}

func (s *RoomService) CountPlayers(ctx context.Context, roomID uint) (int64, error) {
	return s.db.CountPlayers(ctx, roomID)
}

// NormalizeAvatar trims an avatar reference and checks its length.
func NormalizeAvatar(avatar string) (string, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" || len(avatar) > maxAvatarLength {
		return "", ErrInvalidAvatar
	}
	return avatar, nil
}

// SetAvatar changes the picture shown next to a player's name.
func (s *RoomService) SetAvatar(ctx context.Context, playerID uint, avatar string) error {
	avatar, err := NormalizeAvatar(avatar)
	if err != nil {
		return err
	}
	err = s.db.UpdatePlayerAvatar(ctx, playerID, avatar)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return ErrPlayerNotFound
	}
	return err
}

// RemovePlayer deletes the player bound to sessionID. When the host leaves,
// the earliest remaining player becomes host and is returned as newHost.
func (s *RoomService) RemovePlayer(ctx context.Context, roomID uint, sessionID string) (removed, newHost *models.Player, err error) {
	err = s.db.Transaction(ctx, func(tx persistence.Store) error {
		player, err := tx.GetPlayerBySession(ctx, roomID, sessionID)
		if err != nil {
			return err
		}
		if err := tx.DeletePlayer(ctx, player.ID); err != nil {
			return err
		}
		removed = player
		if !player.IsHost {
			return nil
		}
		remaining, err := tx.ListPlayers(ctx, roomID)
		if err != nil || len(remaining) == 0 {
			return err
		}
		newHost = &remaining[0]
		newHost.IsHost = true
		return tx.SetRoomHost(ctx, roomID, newHost.SessionID)
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Log.Infof("Player %s removed from room %d", removed.Name, roomID)
	return removed, newHost, nil
}

// RoleEdit is one catalog change requested through the room settings.
type RoleEdit struct {
	ID     uint
	Update RoleUpdate
}

// UpdateSettings applies a room's round limit and its catalog edits in one
// transaction: either every change is saved or none is.
func (s *RoomService) UpdateSettings(ctx context.Context, roomID uint, maxRounds int, edits []RoleEdit) error {
	if maxRounds < 1 {
		return fmt.Errorf("%w: max rounds must be at least 1", ErrInvalidSettings)
	}
	for _, edit := range edits {
		if err := edit.Update.validate(); err != nil {
			return err
		}
	}
	return s.db.Transaction(ctx, func(tx persistence.Store) error {
		if err := tx.UpdateRoomSettings(ctx, roomID, maxRounds); err != nil {
			return err
		}
		for _, edit := range edits {
			if _, err := applyRoleUpdate(ctx, tx, edit.ID, edit.Update); err != nil {
				return err
			}
		}
		return nil
	})
}
