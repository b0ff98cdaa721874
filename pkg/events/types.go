// Package events defines game events and the publishers that fan them out.
package events

import "time"

// EventType names what happened to a player.
type EventType string

const (
	PlayerJoined EventType = "joined"
	PlayerMoved  EventType = "moved"
	PlayerLeft   EventType = "left"
)

// PlayerEvent is emitted when a player joins, moves or leaves.
type PlayerEvent struct {
	Type      EventType `json:"type"`
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"player_name,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}
