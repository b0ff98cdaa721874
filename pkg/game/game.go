// Package game implements the multiplayer game methods served over RPC.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mpgame/mp-server/pkg/events"
	"github.com/mpgame/mp-server/pkg/semver"
	"github.com/mpgame/mp-server/pkg/store"
)

const logPrefix = "game:game"

const (
	defaultVersion    = "0.1.0"
	defaultConstraint = ">=0.1.0, <1.0.0"
)

// NewGameParams holds parameters for NewGame. Zero values use defaults.
type NewGameParams struct {
	Store     store.PlayerStore
	Publisher events.EventPublisher
	// Version is the server version reported by system.getVersion.
	Version string
	// Constraint is the range of client versions system.checkVersion accepts.
	Constraint string
}

// Game holds the players and the services the game methods use.
type Game struct {
	store     store.PlayerStore
	publisher events.EventPublisher
	compat    *semver.Compatibility
	version   string
	now       func() time.Time
}

// NewGame creates a Game. It fails only on an unparseable version or constraint.
func NewGame(params NewGameParams) (*Game, error) {
	version := params.Version
	if version == "" {
		version = defaultVersion
	}
	constraint := params.Constraint
	if constraint == "" {
		constraint = defaultConstraint
	}
	compat, err := semver.NewCompatibility(version, constraint)
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	st := params.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}

	return &Game{
		store:     st,
		publisher: pub,
		compat:    compat,
		version:   version,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Version returns the server version as configured.
func (g *Game) Version() string {
	return g.version
}

// Join creates a player with a fresh id.
func (g *Game) Join(ctx context.Context, in JoinInput) (JoinOutput, error) {
	p := &store.Player{ID: uuid.NewString(), Name: in.PlayerName, JoinedAt: g.now()}
	if err := g.store.Create(ctx, p); err != nil {
		return JoinOutput{}, g.internal("join", err)
	}
	slog.Info(fmt.Sprintf("%s - Player %s joined as %q", logPrefix, p.ID, p.Name))

	g.publish(ctx, &events.PlayerEvent{Type: events.PlayerJoined, PlayerID: p.ID, Name: p.Name})
	return JoinOutput{PlayerID: p.ID}, nil
}

// MovePlayer sets the position of an existing player.
func (g *Game) MovePlayer(ctx context.Context, in MoveInput) (SuccessOutput, error) {
	p, err := g.store.UpdatePosition(ctx, in.PlayerID, in.X, in.Y)
	if err != nil {
		return SuccessOutput{}, g.storeError("move", in.PlayerID, err)
	}
	slog.Debug(fmt.Sprintf("%s - Player %s moved to (%g, %g)", logPrefix, p.ID, p.X, p.Y))

	g.publish(ctx, &events.PlayerEvent{Type: events.PlayerMoved, PlayerID: p.ID, Name: p.Name, X: p.X, Y: p.Y})
	return SuccessOutput{Success: true}, nil
}

// GetPlayer returns one player.
func (g *Game) GetPlayer(ctx context.Context, in PlayerInput) (*store.Player, error) {
	p, err := g.store.Get(ctx, in.PlayerID)
	if err != nil {
		return nil, g.storeError("get", in.PlayerID, err)
	}
	return p, nil
}

// ListPlayers returns every player in join order.
func (g *Game) ListPlayers(ctx context.Context, _ struct{}) (ListPlayersOutput, error) {
	players, err := g.store.List(ctx)
	if err != nil {
		return ListPlayersOutput{}, g.internal("list", err)
	}
	return ListPlayersOutput{Players: players}, nil
}

// Leave removes a player.
func (g *Game) Leave(ctx context.Context, in PlayerInput) (SuccessOutput, error) {
	p, err := g.store.Delete(ctx, in.PlayerID)
	if err != nil {
		return SuccessOutput{}, g.storeError("leave", in.PlayerID, err)
	}
	slog.Info(fmt.Sprintf("%s - Player %s left", logPrefix, p.ID))

	g.publish(ctx, &events.PlayerEvent{Type: events.PlayerLeft, PlayerID: p.ID, Name: p.Name, X: p.X, Y: p.Y})
	return SuccessOutput{Success: true}, nil
}

// CheckVersion reports whether a client version is accepted.
func (g *Game) CheckVersion(in CheckVersionInput) (CheckVersionOutput, error) {
	ok, err := g.compat.Check(in.ClientVersion)
	if err != nil {
		return CheckVersionOutput{}, NewGameError(CodeInvalidVersion, err.Error())
	}
	return CheckVersionOutput{
		Compatible:    ok,
		ServerVersion: g.compat.ServerVersion(),
		Constraint:    g.compat.Constraint(),
	}, nil
}

// publish stamps and sends event. Failures are logged and never reach the caller.
func (g *Game) publish(ctx context.Context, event *events.PlayerEvent) {
	event.Timestamp = g.now()
	if err := g.publisher.Publish(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event for %s: %v", logPrefix, event.Type, event.PlayerID, err))
	}
}

func (g *Game) storeError(op, id string, err error) error {
	if errors.Is(err, store.ErrPlayerNotFound) {
		return playerNotFound(id)
	}
	return g.internal(op, err)
}

func (g *Game) internal(op string, err error) error {
	slog.Error(fmt.Sprintf("%s - %s failed: %v", logPrefix, op, err))
	return errInternal
}
