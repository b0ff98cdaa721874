// Package store defines player persistence and its in-process backends.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrPlayerNotFound is returned when no player has the requested id.
var ErrPlayerNotFound = errors.New("player not found")

// Player is the persisted state of a joined player.
type Player struct {
	ID        string    `json:"player_id"`
	Name      string    `json:"player_name"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerStore persists players. Implementations must be safe for concurrent use.
type PlayerStore interface {
	Create(ctx context.Context, p *Player) error
	Get(ctx context.Context, id string) (*Player, error)
	// UpdatePosition moves the player and returns the updated record.
	UpdatePosition(ctx context.Context, id string, x, y float64) (*Player, error)
	// Delete removes the player and returns the record as it was.
	Delete(ctx context.Context, id string) (*Player, error)
	// List returns every player ordered by join time.
	List(ctx context.Context) ([]*Player, error)
	Ping(ctx context.Context) error
}
