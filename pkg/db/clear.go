package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearPlayers removes every player row. The schema and migration history are kept.
func ClearPlayers(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	slog.Info(fmt.Sprintf("%s - Clearing players", clearLogPrefix))

	tag, err := pool.Exec(ctx, `DELETE FROM players`)
	if err != nil {
		return 0, fmt.Errorf("%s - delete failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Removed %d players", clearLogPrefix, tag.RowsAffected()))
	return tag.RowsAffected(), nil
}
