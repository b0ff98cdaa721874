// Package main is the entrypoint for mp-server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpgame/mp-server/internal/config"
	"github.com/mpgame/mp-server/internal/server"
	"github.com/mpgame/mp-server/pkg/db"
)

const defaultEnsureDBName = "mp_game_test"

const usage = `Usage: mp-server [command]
       mp-server serve              Start the game server (NATS, HTTP, WebSocket).
       mp-server migrate up         Run database migrations.
       mp-server migrate down       Not supported; migrations are forward-only.
       mp-server migrate status     Show migration status.
       mp-server ensure-db [name]   Create database if missing (default name: mp_game_test). Uses DATABASE_URL host/user.
       mp-server clear              Delete all players; schema is preserved.

Commands:
  serve            (default) Start the game server.
  migrate up       Run database migrations only.
  migrate status   Show applied and pending migrations.
  ensure-db [name] Create a database on the same host as DATABASE_URL.
  clear            Remove every player row.

Environment: STORE_BACKEND (memory, postgres, redis), DATABASE_URL, REDIS_URL, NATS_URL,
NATS_ENABLED, HTTP_PORT, MIGRATION_PATH, LOG_LEVEL. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("mp-server migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("mp-server migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("mp-server migrate status: %v", err)
			}
		case "down":
			if err := db.MigrationDown(os.Stdout); err != nil {
				log.Fatalf("mp-server migrate down: %v", err)
			}
		default:
			log.Fatalf("mp-server migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("mp-server clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := defaultEnsureDBName
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("mp-server ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("mp-server: %v", err)
	}
}

// withPool loads config, opens a pool and hands it to fn.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func runMigrateUp() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runMigrateStatus() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath, os.Stdout)
	})
}

func runClear() error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		n, err := db.ClearPlayers(ctx, pool)
		if err != nil {
			return fmt.Errorf("clear players: %w", err)
		}
		fmt.Printf("Removed %d players.\n", n)
		return nil
	})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := db.WithDatabaseName(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	created, err := db.EnsureDatabase(context.Background(), targetURL)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Database %q created.\n", dbName)
	} else {
		fmt.Printf("Database %q is ready.\n", dbName)
	}
	return nil
}
