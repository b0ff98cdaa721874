package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

const storeTestPrefix = "store:store_test"

// runPlayerStoreTests exercises the PlayerStore contract against any backend.
func runPlayerStoreTests(t *testing.T, s PlayerStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		p := &Player{ID: uuid.NewString(), Name: "alice", X: 1.5, Y: -2}
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("%s - Create: %v", storeTestPrefix, err)
		}
		if p.JoinedAt.IsZero() {
			t.Errorf("%s - Create did not stamp JoinedAt", storeTestPrefix)
		}

		got, err := s.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("%s - Get: %v", storeTestPrefix, err)
		}
		if got.Name != "alice" || got.X != 1.5 || got.Y != -2 {
			t.Errorf("%s - Get = %+v, want alice at (1.5,-2)", storeTestPrefix, got)
		}
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		p := &Player{ID: uuid.NewString(), Name: "bob"}
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("%s - Create: %v", storeTestPrefix, err)
		}
		if err := s.Create(ctx, &Player{ID: p.ID, Name: "bob2"}); err == nil {
			t.Errorf("%s - expected error creating duplicate id", storeTestPrefix)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := s.Get(ctx, uuid.NewString())
		if !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("%s - Get unknown err = %v, want ErrPlayerNotFound", storeTestPrefix, err)
		}
	})

	t.Run("update position", func(t *testing.T) {
		p := &Player{ID: uuid.NewString(), Name: "carol"}
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("%s - Create: %v", storeTestPrefix, err)
		}
		updated, err := s.UpdatePosition(ctx, p.ID, 10, 20.25)
		if err != nil {
			t.Fatalf("%s - UpdatePosition: %v", storeTestPrefix, err)
		}
		if updated.X != 10 || updated.Y != 20.25 || updated.Name != "carol" {
			t.Errorf("%s - UpdatePosition = %+v", storeTestPrefix, updated)
		}
		got, _ := s.Get(ctx, p.ID)
		if got.X != 10 || got.Y != 20.25 {
			t.Errorf("%s - position not persisted: %+v", storeTestPrefix, got)
		}
		if got.UpdatedAt.Before(got.JoinedAt) {
			t.Errorf("%s - UpdatedAt %v before JoinedAt %v", storeTestPrefix, got.UpdatedAt, got.JoinedAt)
		}

		if _, err := s.UpdatePosition(ctx, uuid.NewString(), 1, 1); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("%s - UpdatePosition unknown err = %v", storeTestPrefix, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		p := &Player{ID: uuid.NewString(), Name: "dave"}
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("%s - Create: %v", storeTestPrefix, err)
		}
		removed, err := s.Delete(ctx, p.ID)
		if err != nil {
			t.Fatalf("%s - Delete: %v", storeTestPrefix, err)
		}
		if removed.Name != "dave" {
			t.Errorf("%s - Delete returned %+v", storeTestPrefix, removed)
		}
		if _, err := s.Get(ctx, p.ID); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("%s - player still present after Delete", storeTestPrefix)
		}
		if _, err := s.Delete(ctx, p.ID); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("%s - second Delete err = %v", storeTestPrefix, err)
		}
	})

	t.Run("list contains created players", func(t *testing.T) {
		first := &Player{ID: uuid.NewString(), Name: "first", JoinedAt: time.Now().UTC().Add(-time.Minute)}
		second := &Player{ID: uuid.NewString(), Name: "second", JoinedAt: time.Now().UTC()}
		for _, p := range []*Player{second, first} {
			if err := s.Create(ctx, p); err != nil {
				t.Fatalf("%s - Create: %v", storeTestPrefix, err)
			}
		}

		players, err := s.List(ctx)
		if err != nil {
			t.Fatalf("%s - List: %v", storeTestPrefix, err)
		}
		pos := map[string]int{}
		for i, p := range players {
			pos[p.ID] = i
		}
		i, ok1 := pos[first.ID]
		j, ok2 := pos[second.ID]
		if !ok1 || !ok2 {
			t.Fatalf("%s - List missing created players", storeTestPrefix)
		}
		if i > j {
			t.Errorf("%s - List not ordered by join time", storeTestPrefix)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("%s - Ping: %v", storeTestPrefix, err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runPlayerStoreTests(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, &Player{ID: "p1", Name: "alice"}); err != nil {
		t.Fatalf("%s - Create: %v", storeTestPrefix, err)
	}

	got, _ := s.Get(ctx, "p1")
	got.Name = "mallory"

	again, _ := s.Get(ctx, "p1")
	if again.Name != "alice" {
		t.Errorf("%s - mutation of returned player leaked into store", storeTestPrefix)
	}
}

func TestMemoryStore_ConcurrentMoves(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Create(ctx, &Player{ID: "p1", Name: "alice"}); err != nil {
		t.Fatalf("%s - Create: %v", storeTestPrefix, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.UpdatePosition(ctx, "p1", float64(i), float64(i)); err != nil {
				t.Errorf("%s - UpdatePosition: %v", storeTestPrefix, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.Get(ctx, "p1")
	if got.X != got.Y {
		t.Errorf("%s - torn position write: %+v", storeTestPrefix, got)
	}
}

func TestMemoryStore_ListEmpty(t *testing.T) {
	players, err := NewMemoryStore().List(context.Background())
	if err != nil {
		t.Fatalf("%s - List: %v", storeTestPrefix, err)
	}
	if players == nil || len(players) != 0 {
		t.Errorf("%s - List on empty store = %v, want empty non-nil slice", storeTestPrefix, players)
	}
}
