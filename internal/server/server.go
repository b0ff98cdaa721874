// Package server wires the game router to its transports: NATS request/reply,
// HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/mpgame/mp-server/internal/config"
	"github.com/mpgame/mp-server/pkg/commsutil"
	"github.com/mpgame/mp-server/pkg/db"
	"github.com/mpgame/mp-server/pkg/events"
	"github.com/mpgame/mp-server/pkg/game"
	"github.com/mpgame/mp-server/pkg/rpc"
	"github.com/mpgame/mp-server/pkg/store"
)

const logPrefix = "server:server"

// Version is the server version reported by system.getVersion. Set at build
// time with -ldflags "-X github.com/mpgame/mp-server/internal/server.Version=...".
var Version = "0.1.0"

// Server owns every long-lived component of a running mp-server.
type Server struct {
	cfg     *config.Config
	router  *rpc.Router
	game    *game.Game
	hub     *Hub
	metrics *Metrics
	limiter *rateLimiter

	nc    *comms.Conn
	sub   *comms.Subscription
	pool  *pgxpool.Pool
	redis *redis.Client

	httpServer *http.Server
	listener   net.Listener

	// baseCtx bounds every dispatch; cancelled at the end of Shutdown.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	inflight   inflight
	draining   atomic.Bool
}

// Run loads configuration, starts the server, blocks until SIGINT or SIGTERM,
// then shuts down gracefully.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg.LogLevel)

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting mp-server %s", logPrefix, Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		s.Shutdown(ctx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	s.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// New builds a Server: it opens the player store, connects to NATS when
// enabled and registers the game methods. Nothing is served until Start.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		hub:     NewHub(),
		metrics: NewMetrics(),
		limiter: newRateLimiter(cfg),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	st, err := s.openStore(ctx)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	publishers := []events.EventPublisher{s.hub}
	if cfg.NATSEnabled {
		nc, err := commsutil.Connect(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc = nc
		publishers = append(publishers, events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
			SubjectPrefix: cfg.EventSubjectPrefix,
		}))
	}

	g, err := game.NewGame(game.NewGameParams{
		Store:      st,
		Publisher:  events.NewMultiPublisher(publishers...),
		Version:    Version,
		Constraint: cfg.ProtocolConstraint,
	})
	if err != nil {
		s.closeResources()
		return nil, err
	}
	s.game = g

	s.router = rpc.NewRouter(rpc.WithMiddleware(s.metrics.Middleware))
	game.Register(s.router, g)
	slog.Info(fmt.Sprintf("%s - Registered %d methods", logPrefix, len(s.router.Methods())))

	return s, nil
}

// openStore returns the PlayerStore selected by STORE_BACKEND.
func (s *Server) openStore(ctx context.Context) (store.PlayerStore, error) {
	switch s.cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool
		if s.cfg.RunMigrations {
			migrations, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
			if err != nil {
				return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		return db.NewRepository(pool), nil

	case config.StoreRedis:
		client, err := store.NewRedisClient(ctx, s.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to redis: %w", logPrefix, err)
		}
		s.redis = client
		return store.NewRedisStore(client), nil

	default:
		slog.Info(fmt.Sprintf("%s - Using in-memory player store", logPrefix))
		return store.NewMemoryStore(), nil
	}
}

// Router returns the method router.
func (s *Server) Router() *rpc.Router {
	return s.router
}

// Start subscribes to the RPC subject (when NATS is enabled) and starts
// serving HTTP on the configured address.
func (s *Server) Start() error {
	if s.nc != nil {
		if err := s.subscribe(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - mp-server is ready", logPrefix))
	return nil
}

// Addr returns the HTTP listen address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, waits for in-flight dispatches until ctx
// expires, then releases every connection.
func (s *Server) Shutdown(ctx context.Context) {
	s.draining.Store(true)

	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe: %v", logPrefix, err))
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	s.hub.CloseAll()

	if !s.inflight.closeAndWait(ctx) {
		slog.Warn(fmt.Sprintf("%s - shutdown deadline reached with requests in flight", logPrefix))
	}

	s.closeResources()
}

func (s *Server) closeResources() {
	s.cancelBase()
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			s.nc.Close()
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// dispatch runs req with the per-request timeout. Callers hold an inflight slot.
func (s *Server) dispatch(parent context.Context, req *rpc.Request) *rpc.Response {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RequestTimeout)
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	return s.router.Dispatch(ctx, req)
}

// unavailable is the reply to requests that arrive after Shutdown began.
func unavailable(id string) *rpc.Response {
	return rpc.NewErrorResponse(id, rpc.CodeUnavailable, "server is shutting down")
}
