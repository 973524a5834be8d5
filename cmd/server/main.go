package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streamrelay/internal/adapter/auth"
	"github.com/pscheid92/streamrelay/internal/adapter/eventpublisher"
	"github.com/pscheid92/streamrelay/internal/adapter/httpserver"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/adapter/postgres"
	"github.com/pscheid92/streamrelay/internal/adapter/redis"
	"github.com/pscheid92/streamrelay/internal/adapter/websocket"
	"github.com/pscheid92/streamrelay/internal/app"
	"github.com/pscheid92/streamrelay/internal/platform/config"
	"github.com/pscheid92/streamrelay/internal/platform/logging"
	"github.com/pscheid92/streamrelay/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

// instanceStaleFactor scales the presence heartbeat into the age after
// which another instance's counts are ignored.
const instanceStaleFactor = 3

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, reg prometheus.Registerer) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, metrics.NewDBMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := metrics.NewRedisMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewMetricsHook(m), redis.NewCircuitBreakerHook(m))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, sockets *websocket.Handler, registry *websocket.Registry, stopPresence func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := sockets.Shutdown(shutdownCtx); err != nil {
			slog.Error("Stream socket shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		registry.Stop()
		stopPresence()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	reg := metrics.NewRegistry()

	pool := setupDB(cfg, reg)
	defer pool.Close()

	rdb := setupRedis(cfg, reg)
	defer func() { _ = rdb.Close() }()

	// Presence: this instance reports its local viewer counts under its own
	// id; totals sum every instance that heartbeated recently.
	instanceID := uuid.NewString()
	presenceMetrics := metrics.NewPresenceMetrics(reg)
	instances := redis.NewInstanceRegistry(rdb, instanceID, info.Version, instanceStaleFactor*cfg.PresenceHeartbeat, clock)
	presence := redis.NewPresenceStore(rdb, instances, presenceMetrics, clock)

	presenceCtx, cancelPresence := context.WithCancel(context.Background())
	presenceDone := make(chan struct{})
	go func() {
		defer close(presenceDone)
		presence.Run(presenceCtx, cfg.PresenceHeartbeat)
	}()
	stopPresence := func() {
		cancelPresence()
		<-presenceDone
	}

	reporter := app.NewViewerReporter(presence)
	registry := websocket.NewRegistry(clock, presenceMetrics, reporter.Report)
	bus := redis.NewBus(rdb, metrics.NewBusMetrics(reg))

	users := postgres.NewUserRepo(pool)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, clock)
	verifier := auth.NewVerifier(tokens, users)

	appSvc := app.NewService(
		app.Repositories{
			Users:     users,
			Streams:   postgres.NewStreamRepo(pool),
			Donations: postgres.NewDonationRepo(pool),
			Comments:  postgres.NewCommentRepo(pool),
		},
		app.Credentials{
			Passwords: auth.NewBcryptHasher(0),
			Tokens:    tokens,
			Blacklist: redis.NewTokenBlacklist(rdb, clock),
		},
		eventpublisher.New(bus, clock),
		registry,
		presence,
	)

	wsMetrics := metrics.NewWebSocketMetrics(reg)
	sockets := websocket.NewHandler(verifier, bus, registry, wsMetrics, clock, websocket.Config{
		AuthTimeout: cfg.AuthTimeout,
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.Origins(), !cfg.IsProduction()),
	})

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		App:              appSvc,
		Verifier:         verifier,
		Streams:          sockets,
		Registry:         reg,
		HTTPMetrics:      metrics.NewHTTPMetrics(reg),
		WebSocketMetrics: wsMetrics,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "database", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		Clock: clock,
	})

	done := runGracefulShutdown(srv, sockets, registry, stopPresence)

	slog.Info("Server starting", "port", cfg.Port, "instance_id", instanceID)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
