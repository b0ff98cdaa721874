package game

import "fmt"

// Error codes carried by GameError.
const (
	CodePlayerNotFound = "PLAYER_NOT_FOUND"
	CodeInvalidVersion = "INVALID_VERSION"
	CodeInternal       = "INTERNAL"
)

// GameError is a domain failure reported to the caller. Its Error text is the
// message clients see; Code is for callers inspecting the error in-process.
type GameError struct {
	Code    string
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// NewGameError creates a new GameError.
func NewGameError(code, message string) *GameError {
	return &GameError{Code: code, Message: message}
}

func playerNotFound(id string) *GameError {
	return NewGameError(CodePlayerNotFound, fmt.Sprintf("player '%s' not found", id))
}

var errInternal = NewGameError(CodeInternal, "internal error")
