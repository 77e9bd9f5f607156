package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client action names.
const (
	ActionGetSettings    = "get_settings"
	ActionUpdateSettings = "update_settings"
	ActionJoin           = "join"
	ActionStartGame      = "start_game"
	ActionNextRound      = "next_round"
	ActionArrest         = "arrest"
)

// Server event names.
const (
	EventPlayerJoined  = "player_joined"
	EventRoleAssigned  = "role_assigned"
	EventTimerTick     = "timer_tick"
	EventRoundEnded    = "round_ended"
	EventResetRound    = "reset_round"
	EventGameOver      = "game_over"
	EventHostChange    = "host_change"
	EventRoundAborted  = "round_aborted"
	EventSettingsData  = "settings_data"
	EventSettingsSaved = "settings_saved"
	EventError         = "error"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownAction    = errors.New("unknown action")
)

// Action is one decoded client message. The set of implementations is
// closed: only the types in this file satisfy it.
type Action interface {
	Name() string
	action()
}

type GetSettings struct{}

type UpdateSettings struct {
	MaxRounds int            `json:"max_rounds"`
	Roles     []RoleSettings `json:"roles"`
}

type RoleSettings struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	WinPoints int    `json:"win_points"`
}

type Join struct{}

type StartGame struct{}

type NextRound struct{}

type Arrest struct {
	AccusedName string `json:"arrested_player"`
}

func (GetSettings) Name() string    { return ActionGetSettings }
func (UpdateSettings) Name() string { return ActionUpdateSettings }
func (Join) Name() string           { return ActionJoin }
func (StartGame) Name() string      { return ActionStartGame }
func (NextRound) Name() string      { return ActionNextRound }
func (Arrest) Name() string         { return ActionArrest }

func (GetSettings) action()    {}
func (UpdateSettings) action() {}
func (Join) action()           {}
func (StartGame) action()      {}
func (NextRound) action()      {}
func (Arrest) action()         {}

type envelope struct {
	Action string `json:"action"`
}

// DecodeAction parses a client frame of the form {"action": "...", ...}.
// Any session_id field a client sends is ignored: the caller's identity is
// the one bound to its connection.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Action {
	case ActionGetSettings:
		return GetSettings{}, nil
	case ActionJoin:
		return Join{}, nil
	case ActionStartGame:
		return StartGame{}, nil
	case ActionNextRound:
		return NextRound{}, nil
	case ActionUpdateSettings:
		var a UpdateSettings
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return a, nil
	case ActionArrest:
		var a Arrest
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return a, nil
	case "":
		return nil, fmt.Errorf("%w: missing action", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

// --- server events ---

// PlayerInfo is the public view of a player. A session id is the only
// credential a player holds, so it never appears here.
type PlayerInfo struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
	IsHost bool   `json:"is_host"`
}

type PlayerJoinedEvent struct {
	Action  string       `json:"action"`
	Players []PlayerInfo `json:"players"`
}

type RoleAssignedEvent struct {
	Action      string       `json:"action"`
	PlayerID    uint         `json:"player_id"`
	RoundNumber int          `json:"round_number"`
	Role        string       `json:"role"`
	Description string       `json:"description"`
	Points      int          `json:"points"`
	IsPolice    bool         `json:"is_police"`
	IsThief     bool         `json:"is_thief"`
	AllPlayers  []PlayerInfo `json:"all_players,omitempty"`
}

type TimerTickEvent struct {
	Action  string `json:"action"`
	Seconds int    `json:"seconds"`
}

type ScoreInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Score  int    `json:"score"`
}

type RoleInfo struct {
	Name             string `json:"name"`
	Role             string `json:"role"`
	Points           int    `json:"points"`
	IsWronglyAccused bool   `json:"is_wrongly_accused,omitempty"`
}

type RoundEndedEvent struct {
	Action      string      `json:"action"`
	RoundNumber int         `json:"round_number"`
	Winner      string      `json:"winner"`
	ThiefName   string      `json:"thief_name"`
	Scores      []ScoreInfo `json:"scores"`
	AllRoles    []RoleInfo  `json:"all_roles"`
}

type GameOverEvent struct {
	Action string      `json:"action"`
	Scores []ScoreInfo `json:"scores"`
}

type HostChangeEvent struct {
	Action      string `json:"action"`
	NewHostID   uint   `json:"new_host_id"`
	NewHostName string `json:"new_host_name"`
}

type RoundAbortedEvent struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type Settings struct {
	MaxRounds    int            `json:"max_rounds"`
	TimerSeconds int            `json:"timer_seconds"`
	Roles        []RoleSettings `json:"roles"`
}

type SettingsDataEvent struct {
	Action   string   `json:"action"`
	Settings Settings `json:"settings"`
}

// MessageEvent is used for bare notifications: reset_round,
// settings_saved and error.
type MessageEvent struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

func NewError(message string) MessageEvent {
	return MessageEvent{Action: EventError, Message: message}
}

func Encode(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}
