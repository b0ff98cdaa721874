//go:build integration

package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpgame/mp-server/pkg/store"
)

const dbIntegrationPrefix = "db:integration_test"

// setupIntegrationPool connects to DATABASE_URL and applies the repository migrations.
func setupIntegrationPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("db:integration_test - DATABASE_URL not set, skipping")
	}
	ctx := context.Background()

	if _, err := EnsureDatabase(ctx, url); err != nil {
		t.Fatalf("%s - EnsureDatabase failed: %v", dbIntegrationPrefix, err)
	}
	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", dbIntegrationPrefix, err)
	}
	t.Cleanup(pool.Close)

	migrations, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - LoadMigrationFiles failed: %v", dbIntegrationPrefix, err)
	}
	if err := RunMigrations(ctx, pool, migrations); err != nil {
		t.Fatalf("%s - RunMigrations failed: %v", dbIntegrationPrefix, err)
	}
	// second run must be a no-op
	if err := RunMigrations(ctx, pool, migrations); err != nil {
		t.Fatalf("%s - RunMigrations rerun failed: %v", dbIntegrationPrefix, err)
	}
	return ctx, pool
}

func TestIntegration_RepositoryLifecycle(t *testing.T) {
	ctx, pool := setupIntegrationPool(t)
	repo := NewRepository(pool)

	p := &store.Player{ID: uuid.NewString(), Name: "alice"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("%s - Create: %v", dbIntegrationPrefix, err)
	}

	moved, err := repo.UpdatePosition(ctx, p.ID, 3, 4.5)
	if err != nil {
		t.Fatalf("%s - UpdatePosition: %v", dbIntegrationPrefix, err)
	}
	if moved.X != 3 || moved.Y != 4.5 {
		t.Errorf("%s - UpdatePosition = %+v", dbIntegrationPrefix, moved)
	}

	players, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("%s - List: %v", dbIntegrationPrefix, err)
	}
	found := false
	for _, lp := range players {
		found = found || lp.ID == p.ID
	}
	if !found {
		t.Errorf("%s - List missing %s", dbIntegrationPrefix, p.ID)
	}

	if _, err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("%s - Delete: %v", dbIntegrationPrefix, err)
	}
	if _, err := repo.Get(ctx, p.ID); !errors.Is(err, store.ErrPlayerNotFound) {
		t.Errorf("%s - Get after Delete err = %v, want ErrPlayerNotFound", dbIntegrationPrefix, err)
	}
	if _, err := repo.UpdatePosition(ctx, p.ID, 0, 0); !errors.Is(err, store.ErrPlayerNotFound) {
		t.Errorf("%s - UpdatePosition after Delete err = %v", dbIntegrationPrefix, err)
	}
}

func TestIntegration_ClearPlayers(t *testing.T) {
	ctx, pool := setupIntegrationPool(t)
	repo := NewRepository(pool)

	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &store.Player{ID: uuid.NewString(), Name: "p"}); err != nil {
			t.Fatalf("%s - Create: %v", dbIntegrationPrefix, err)
		}
	}
	n, err := ClearPlayers(ctx, pool)
	if err != nil {
		t.Fatalf("%s - ClearPlayers: %v", dbIntegrationPrefix, err)
	}
	if n < 3 {
		t.Errorf("%s - ClearPlayers removed %d, want >= 3", dbIntegrationPrefix, n)
	}
	players, _ := repo.List(ctx)
	if len(players) != 0 {
		t.Errorf("%s - %d players left after ClearPlayers", dbIntegrationPrefix, len(players))
	}
}
