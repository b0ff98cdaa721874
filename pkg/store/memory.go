package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const memoryLogPrefix = "store:memory"

// MemoryStore keeps players in a map. State is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]*Player
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]*Player),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores p. JoinedAt and UpdatedAt are stamped when zero.
func (s *MemoryStore) Create(_ context.Context, p *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.players[p.ID]; exists {
		return fmt.Errorf("%s - player %s already exists", memoryLogPrefix, p.ID)
	}
	now := s.now()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.JoinedAt
	}
	cp := *p
	s.players[p.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdatePosition(_ context.Context, id string, x, y float64) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	p.X, p.Y = x, y
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	delete(s.players, id)
	return p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Player, error) {
	s.mu.RLock()
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		cp := *p
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sortPlayers(out)
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// sortPlayers orders by join time, then id for a stable listing.
func sortPlayers(players []*Player) {
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}
