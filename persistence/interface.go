// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/thiefhunt/models"
)

// Store is the persisted state shared by every connection and countdown.
// A Store obtained inside Transaction is bound to that transaction.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	GetRoomByID(ctx context.Context, id uint) (*models.Room, error)
	UpdateRoomSettings(ctx context.Context, roomID uint, maxRounds int) error
	SetRoomStatus(ctx context.Context, roomID uint, status models.RoomStatus) error
	SetRoomHost(ctx context.Context, roomID uint, sessionID string) error
	DeleteRoom(ctx context.Context, roomID uint) error
	ListRoomsUpdatedBefore(ctx context.Context, before time.Time, statuses ...models.RoomStatus) ([]models.Room, error)

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayerBySession(ctx context.Context, roomID uint, sessionID string) (*models.Player, error)
	GetPlayerByName(ctx context.Context, roomID uint, name string) (*models.Player, error)
	ListPlayers(ctx context.Context, roomID uint) ([]models.Player, error)
	CountPlayers(ctx context.Context, roomID uint) (int64, error)
	UpdatePlayerAvatar(ctx context.Context, playerID uint, avatar string) error
	DeletePlayer(ctx context.Context, playerID uint) error
	AddPlayerScore(ctx context.Context, playerID uint, delta int) error

	ListRoles(ctx context.Context) ([]models.Role, error)
	GetRole(ctx context.Context, id uint) (*models.Role, error)
	CountRoles(ctx context.Context) (int64, error)
	CreateRoles(ctx context.Context, roles []models.Role) error
	SaveRole(ctx context.Context, role *models.Role) error
	DeleteAllRoles(ctx context.Context) error

	CreateRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, id uint) (*models.Round, error)
	GetActiveRound(ctx context.Context, roomID uint) (*models.Round, error)
	CountRounds(ctx context.Context, roomID uint, statuses ...models.RoundStatus) (int64, error)
	LastFinishedRound(ctx context.Context, roomID uint) (*models.Round, error)
	AbandonActiveRounds(ctx context.Context, roomID uint) (int64, error)
	TransitionRound(ctx context.Context, roundID uint, from, to models.RoundStatus, fields map[string]interface{}) (bool, error)
	UpdateRemainingSeconds(ctx context.Context, roundID uint, remaining int) (bool, error)

	CreateParticipations(ctx context.Context, participations []models.Participation) error
	ListParticipations(ctx context.Context, roundID uint) ([]models.Participation, error)
	GetParticipation(ctx context.Context, roundID, playerID uint) (*models.Participation, error)
	SaveParticipation(ctx context.Context, participation *models.Participation) error

	Transaction(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateName  = errors.New("name already taken")
)
