// Package db provides Postgres-backed player persistence via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// applicationName tags server sessions in pg_stat_activity.
const applicationName = "mp-server"

// NewPool opens a pgx pool for databaseURL. Pool limits given in the URL
// (pool_max_conns and friends) win over the defaults set here. The pool is
// pinged before it is returned.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("%s - Connecting to %s/%s (max %d conns)",
		logPrefix, poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Database, poolCfg.MaxConns))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - database unreachable: %w", logPrefix, err)
	}
	return pool, nil
}

func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid database URL: %w", logPrefix, err)
	}

	if !strings.Contains(databaseURL, "pool_max_conns") {
		poolCfg.MaxConns = 20
	}
	if !strings.Contains(databaseURL, "pool_min_conns") {
		poolCfg.MinConns = 2
	}
	poolCfg.HealthCheckPeriod = 30 * time.Second
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}
