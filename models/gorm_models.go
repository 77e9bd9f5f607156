// models/gorm_models.go
package models

import (
	"time"
)

type RoomStatus string

const (
	RoomWaiting    RoomStatus = "WAITING"
	RoomInProgress RoomStatus = "IN_PROGRESS"
	RoomFinished   RoomStatus = "FINISHED"
)

type RoundStatus string

const (
	RoundAssigning RoundStatus = "ASSIGNING"
	RoundActive    RoundStatus = "ACTIVE"
	RoundResolved  RoundStatus = "RESOLVED"
	RoundAbandoned RoundStatus = "ABANDONED"
)

type Winner string

const (
	InvestigatorSide Winner = "INVESTIGATOR_SIDE"
	EvaderSide       Winner = "EVADER_SIDE"
)

// Side is the team a participation was dealt into for one round.
type Side string

const (
	SideInvestigator Side = "investigator"
	SideEvader       Side = "evader"
	SideNeutral      Side = "neutral"
)

// Room 房间
type Room struct {
	ID            uint       `gorm:"primaryKey"`
	Code          string     `gorm:"size:10;uniqueIndex;not null"`
	HostSessionID string     `gorm:"size:255"`
	Status        RoomStatus `gorm:"size:20;not null;default:WAITING"`
	MaxRounds     int        `gorm:"not null;default:5"`
	TimerSeconds  int        `gorm:"not null;default:60"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultAvatar is shown for players that never picked one.
const DefaultAvatar = "default_avatar.png"

// Player belongs to exactly one room; display names are unique per room.
type Player struct {
	ID         uint   `gorm:"primaryKey"`
	RoomID     uint   `gorm:"not null;index;uniqueIndex:idx_players_room_name;uniqueIndex:idx_players_room_session"`
	SessionID  string `gorm:"size:255;not null;uniqueIndex:idx_players_room_session"`
	Name       string `gorm:"size:50;not null;uniqueIndex:idx_players_room_name"`
	Avatar     string `gorm:"size:100;not null;default:default_avatar.png"`
	TotalScore int    `gorm:"not null;default:0"`
	IsHost     bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Role 角色定义
type Role struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:50;not null"`
	Description    string `gorm:"type:text"`
	WinPoints      int    `gorm:"not null"`
	LosePoints     int    `gorm:"not null;default:0"`
	IsInvestigator bool   `gorm:"not null;default:false"`
	IsEvader       bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Side reports which team a role plays for.
func (r Role) Side() Side {
	switch {
	case r.IsInvestigator:
		return SideInvestigator
	case r.IsEvader:
		return SideEvader
	default:
		return SideNeutral
	}
}

// Round 回合
type Round struct {
	ID                   uint        `gorm:"primaryKey"`
	RoomID               uint        `gorm:"not null;index;uniqueIndex:idx_rounds_room_number"`
	RoundNumber          int         `gorm:"not null;uniqueIndex:idx_rounds_room_number"`
	Status               RoundStatus `gorm:"size:20;not null;index"`
	InvestigatorPlayerID *uint
	EvaderPlayerID       *uint
	Winner               *Winner `gorm:"size:20"`
	RemainingSeconds     int     `gorm:"not null;default:60"`
	StartedAt            time.Time
	ResolvedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Participation is a player's role snapshot and outcome for one round.
type Participation struct {
	ID               uint   `gorm:"primaryKey"`
	RoundID          uint   `gorm:"not null;index;uniqueIndex:idx_participations_round_player"`
	PlayerID         uint   `gorm:"not null;uniqueIndex:idx_participations_round_player"`
	PlayerName       string `gorm:"size:50;not null"`
	RoleName         string `gorm:"size:50;not null"`
	RoleDescription  string `gorm:"type:text"`
	WinPoints        int    `gorm:"not null;default:0"`
	LosePoints       int    `gorm:"not null;default:0"`
	Side             Side   `gorm:"size:20;not null"`
	IsImplicated     bool   `gorm:"not null;default:false"`
	IsWronglyAccused bool   `gorm:"not null;default:false"`
	FinalScore       int    `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Room{},
		&Player{},
		&Role{},
		&Round{},
		&Participation{},
	}
}
