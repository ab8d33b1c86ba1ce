package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/iamasit07/4-in-a-row/server/internal/config"
	"github.com/iamasit07/4-in-a-row/server/internal/repository/postgres"
	"github.com/iamasit07/4-in-a-row/server/internal/repository/redis"
	"github.com/iamasit07/4-in-a-row/server/internal/service/account"
	"github.com/iamasit07/4-in-a-row/server/internal/service/bot"
	"github.com/iamasit07/4-in-a-row/server/internal/service/cleanup"
	"github.com/iamasit07/4-in-a-row/server/internal/service/game"
	"github.com/iamasit07/4-in-a-row/server/internal/service/matchmaking"
	"github.com/iamasit07/4-in-a-row/server/internal/service/registry"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/handler"
	transportHttp "github.com/iamasit07/4-in-a-row/server/internal/transport/http"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/tcp"
	"github.com/iamasit07/4-in-a-row/server/internal/transport/websocket"
	"github.com/iamasit07/4-in-a-row/server/pkg/auth"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	cfg := config.MustLoad(".env", "../.env")
	logger := initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited gracefully")
}

func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// storage holds the optional backends. Either field may be nil; the game
// runs without them.
type storage struct {
	db    *sql.DB
	redis *goredis.Client
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) *storage {
	st := &storage{}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if cfg.Postgres.URL == "" {
		logger.Warn("DATABASE_URL not set, accounts and match history disabled")
	} else {
		db, err := postgres.Open(connectCtx, cfg.Postgres.URL, postgres.PoolOptions{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime(),
		})
		if err != nil {
			logger.Error("postgres unavailable, accounts and match history disabled", "error", err)
		} else {
			logger.Info("database ready")
			st.db = db
		}
	}

	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, presence mirroring disabled")
	} else {
		client, err := redis.NewClient(connectCtx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			logger.Warn("redis unavailable, presence mirroring disabled", "error", err)
		} else {
			logger.Info("redis connected")
			st.redis = client
		}
	}

	return st
}

func (st *storage) Close() {
	if st.db != nil {
		st.db.Close()
	}
	if st.redis != nil {
		st.redis.Close()
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st := openStorage(ctx, cfg, logger)
	defer st.Close()

	var recorder game.ResultRecorder
	var games *postgres.GameRepo
	var users *postgres.UserRepo
	if st.db != nil {
		games = postgres.NewGameRepo(st.db)
		users = postgres.NewUserRepo(st.db)
		recorder = games
	}

	var presence *redis.PresenceStore
	var regPresence registry.Presence
	if st.redis != nil {
		presence = redis.NewPresenceStore(st.redis, cfg.Redis.PresenceTTL)
		regPresence = presence
	}

	sessions := game.NewSessionManager(logger, recorder, game.Options{
		TurnTimeout:    cfg.Game.TurnTimeout,
		PostGameWindow: cfg.Game.PostGameWindow,
	})
	reg := registry.New(logger, regPresence)
	queue := matchmaking.NewQueue(logger, sessions, cfg.Game.MatchmakingTimeout)

	routes := transportHttp.RouterConfig{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.Auth.SecureCookies,
		TokenTTL:       cfg.Auth.TokenTTL,
		Sessions:       sessions,
		Online:         reg,
	}

	var verifier handler.TokenVerifier
	if users != nil {
		accounts := account.New(logger, users, reg, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), cfg.Auth.BcryptCost)
		verifier = accounts
		routes.Accounts = accounts
		routes.Verifier = accounts
		routes.History = games
		routes.Leaderboard = users
	} else if cfg.Auth.RequireAuth {
		return errors.New("REQUIRE_AUTH is set but no database is available to issue tokens")
	}

	conns := handler.New(logger, reg, queue, verifier, handler.Options{
		RequireAuth:    cfg.Auth.RequireAuth,
		OutboundBuffer: cfg.Game.OutboundBuffer,
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.Game.BotFallback {
		matcher := bot.NewMatcher(workerCtx, logger, sessions, bot.ParseDifficulty(cfg.Game.BotDifficulty), cfg.Game.BotMoveDelay)
		queue.SetFallback(matcher.Match)
		defer matcher.Wait()
	}
	go queue.Run(workerCtx, cfg.Game.PairInterval)

	var refresher cleanup.PresenceRefresher
	if presence != nil {
		refresher = presence
	}
	worker := cleanup.NewWorker(logger, sessions, reg, refresher, cfg.Game.MaxSessionAge)
	go worker.Run(workerCtx, cfg.Game.CleanupInterval)

	wsHandler := websocket.NewHandler(workerCtx, conns, cfg.AllowedOrigins, logger)
	routes.WebSocket = wsHandler.HandleWebSocket

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transportHttp.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tcpServer := tcp.New(cfg.TCPAddr, conns, logger)
	if err := tcpServer.Listen(); err != nil {
		return err
	}

	errs := make(chan error, 2)
	go func() {
		if err := tcpServer.Serve(); err != nil {
			errs <- fmt.Errorf("tcp server: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("server is shutting down")
	case runErr = <-errs:
	}

	// Connections on both ports end when workerCtx is cancelled.
	cancelWorkers()
	tcpServer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}

	sessions.Wait()
	return runErr
}
