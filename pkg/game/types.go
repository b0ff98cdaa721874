package game

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mpgame/mp-server/pkg/store"
)

// MaxPlayerNameLength is the longest accepted player name, in characters.
const MaxPlayerNameLength = 32

// =========================================================================
// system.* methods
// =========================================================================

// VersionOutput is the result of system.getVersion.
type VersionOutput struct {
	Version string `json:"version"`
}

// HealthOutput is the result of system.health.
type HealthOutput struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks holds the status of each dependency.
type HealthChecks struct {
	Store bool `json:"store"`
}

// ListMethodsOutput is the result of system.listMethods.
type ListMethodsOutput struct {
	Methods []string `json:"methods"`
}

// CheckVersionInput is the input for system.checkVersion.
type CheckVersionInput struct {
	ClientVersion string `json:"client_version"`
}

func (in *CheckVersionInput) Validate() error {
	in.ClientVersion = strings.TrimSpace(in.ClientVersion)
	if in.ClientVersion == "" {
		return errors.New("client_version is required")
	}
	return nil
}

// CheckVersionOutput is the result of system.checkVersion.
type CheckVersionOutput struct {
	Compatible    bool   `json:"compatible"`
	ServerVersion string `json:"server_version"`
	Constraint    string `json:"constraint"`
}

// =========================================================================
// game.* methods
// =========================================================================

// JoinInput is the input for game.join.
type JoinInput struct {
	PlayerName string `json:"player_name"`
}

// Validate trims the name and enforces its length.
func (in *JoinInput) Validate() error {
	in.PlayerName = strings.TrimSpace(in.PlayerName)
	if in.PlayerName == "" {
		return errors.New("player_name is required")
	}
	if utf8.RuneCountInString(in.PlayerName) > MaxPlayerNameLength {
		return errors.New("player_name must be at most 32 characters")
	}
	return nil
}

// JoinOutput is the result of game.join.
type JoinOutput struct {
	PlayerID string `json:"player_id"`
}

// MoveInput is the input for game.movePlayer.
type MoveInput struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

func (in *MoveInput) Validate() error {
	return requirePlayerID(in.PlayerID)
}

// PlayerInput identifies one player; used by game.getPlayer and game.leave.
type PlayerInput struct {
	PlayerID string `json:"player_id"`
}

func (in *PlayerInput) Validate() error {
	return requirePlayerID(in.PlayerID)
}

// SuccessOutput is the result of game.movePlayer and game.leave.
type SuccessOutput struct {
	Success bool `json:"success"`
}

// ListPlayersOutput is the result of game.listPlayers.
type ListPlayersOutput struct {
	Players []*store.Player `json:"players"`
}

func requirePlayerID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("player_id is required")
	}
	return nil
}
