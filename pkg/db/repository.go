package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpgame/mp-server/pkg/store"
)

const repoLogPrefix = "db:repository"

const playerColumns = `id, name, x, y, joined_at, updated_at`

// Repository stores players in the players table. It implements store.PlayerStore.
type Repository struct {
	pool *pgxpool.Pool
}

var _ store.PlayerStore = (*Repository)(nil)

// NewRepository creates a Repository on pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, p *store.Player) error {
	slog.Debug(fmt.Sprintf("%s - Create id=%s name=%s", repoLogPrefix, p.ID, p.Name))

	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.JoinedAt
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO players (`+playerColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.X, p.Y, p.JoinedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s - insert player %s: %w", repoLogPrefix, p.ID, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*store.Player, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (r *Repository) UpdatePosition(ctx context.Context, id string, x, y float64) (*store.Player, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE players SET x = $2, y = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING `+playerColumns,
		id, x, y, time.Now().UTC())
	return scanPlayer(row)
}

func (r *Repository) Delete(ctx context.Context, id string) (*store.Player, error) {
	slog.Debug(fmt.Sprintf("%s - Delete id=%s", repoLogPrefix, id))

	row := r.pool.QueryRow(ctx, `DELETE FROM players WHERE id = $1 RETURNING `+playerColumns, id)
	return scanPlayer(row)
}

func (r *Repository) List(ctx context.Context) ([]*store.Player, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY joined_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s - list players: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	players := []*store.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list players: %w", repoLogPrefix, err)
	}
	return players, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanPlayer(row pgx.Row) (*store.Player, error) {
	var p store.Player
	err := row.Scan(&p.ID, &p.Name, &p.X, &p.Y, &p.JoinedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan player failed: %w", repoLogPrefix, err)
	}
	p.JoinedAt = p.JoinedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
