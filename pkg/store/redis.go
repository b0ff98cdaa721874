package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLogPrefix = "store:redis"

const (
	playerKeyPrefix = "mp:player:"
	playerSetKey    = "mp:players"
)

// PlayerKey returns the hash key holding one player.
func PlayerKey(id string) string {
	return playerKeyPrefix + id
}

// NewRedisClient parses redisURL, applies pool defaults and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to redis", redisLogPrefix))

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse redis URL: %w", redisLogPrefix, err)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 50
	}
	opts.MinIdleConns = 5
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s - failed to ping redis: %w", redisLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Redis connection established", redisLogPrefix))
	return client, nil
}

// RedisStore keeps each player in a hash and their ids in a set, so state is
// shared between server instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, p *Player) error {
	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.JoinedAt
	}
	key := PlayerKey(p.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s - player %s already exists", redisLogPrefix, p.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodePlayer(p))
			pipe.SAdd(ctx, playerSetKey, p.ID)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("%s - create %s: %w", redisLogPrefix, p.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Player, error) {
	fields, err := s.client.HGetAll(ctx, PlayerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s - get %s: %w", redisLogPrefix, id, err)
	}
	if len(fields) == 0 {
		return nil, ErrPlayerNotFound
	}
	return decodePlayer(fields)
}

func (s *RedisStore) UpdatePosition(ctx context.Context, id string, x, y float64) (*Player, error) {
	key := PlayerKey(id)
	var updated *Player

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrPlayerNotFound
		}
		p, err := decodePlayer(fields)
		if err != nil {
			return err
		}
		p.X, p.Y = x, y
		p.UpdatedAt = time.Now().UTC()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"x", formatFloat(p.X),
				"y", formatFloat(p.Y),
				"updated_at", p.UpdatedAt.Format(time.RFC3339Nano))
			return nil
		})
		updated = p
		return err
	}, key)
	if errors.Is(err, ErrPlayerNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - update position %s: %w", redisLogPrefix, id, err)
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) (*Player, error) {
	key := PlayerKey(id)
	var removed *Player

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrPlayerNotFound
		}
		if removed, err = decodePlayer(fields); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, playerSetKey, id)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, ErrPlayerNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - delete %s: %w", redisLogPrefix, id, err)
	}
	return removed, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Player, error) {
	ids, err := s.client.SMembers(ctx, playerSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%s - list ids: %w", redisLogPrefix, err)
	}
	if len(ids) == 0 {
		return []*Player{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, PlayerKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s - list players: %w", redisLogPrefix, err)
	}

	out := make([]*Player, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// set entry outlived its hash
			slog.Warn(fmt.Sprintf("%s - stale player id %s in %s", redisLogPrefix, ids[i], playerSetKey))
			continue
		}
		p, err := decodePlayer(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sortPlayers(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func encodePlayer(p *Player) map[string]interface{} {
	return map[string]interface{}{
		"id":         p.ID,
		"name":       p.Name,
		"x":          formatFloat(p.X),
		"y":          formatFloat(p.Y),
		"joined_at":  p.JoinedAt.Format(time.RFC3339Nano),
		"updated_at": p.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodePlayer(fields map[string]string) (*Player, error) {
	p := &Player{ID: fields["id"], Name: fields["name"]}
	var err error
	if p.X, err = strconv.ParseFloat(fields["x"], 64); err != nil {
		return nil, fmt.Errorf("%s - decode x for %s: %w", redisLogPrefix, p.ID, err)
	}
	if p.Y, err = strconv.ParseFloat(fields["y"], 64); err != nil {
		return nil, fmt.Errorf("%s - decode y for %s: %w", redisLogPrefix, p.ID, err)
	}
	if p.JoinedAt, err = time.Parse(time.RFC3339Nano, fields["joined_at"]); err != nil {
		return nil, fmt.Errorf("%s - decode joined_at for %s: %w", redisLogPrefix, p.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("%s - decode updated_at for %s: %w", redisLogPrefix, p.ID, err)
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
