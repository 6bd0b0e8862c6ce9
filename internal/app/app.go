package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/numquiz/internal/config"
	"github.com/gokatarajesh/numquiz/internal/db/repository"
	"github.com/gokatarajesh/numquiz/internal/db/store"
	"github.com/gokatarajesh/numquiz/internal/game"
	"github.com/gokatarajesh/numquiz/internal/game/scoring"
	"github.com/gokatarajesh/numquiz/internal/logging"
	"github.com/gokatarajesh/numquiz/internal/metrics"
	"github.com/gokatarajesh/numquiz/internal/results"
	"github.com/gokatarajesh/numquiz/internal/server"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	hub     *ws.Hub
	handler *game.Handler
	worker  *results.Worker
}

// New bootstraps logger, metrics, the optional result stores and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collectorSet := metrics.New(reg)

	a := &Application{cfg: cfg, logger: logger}

	var (
		sinks   []results.Sink
		recent  results.RecentReader
		history results.HistoryReader
		pingers []server.Pinger
	)

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		resultStore := results.NewStore(a.redis, logger, results.StoreOptions{
			TTL:            cfg.Results.TTL,
			RecentLimit:    cfg.Results.RecentLimit,
			RedisKeyPrefix: cfg.Results.KeyPrefix,
		})
		sinks = append(sinks, resultStore)
		recent = resultStore
		pingers = append(pingers, redisPinger{client: a.redis})
	} else {
		logger.Warn().Msg("REDIS_ADDR not configured; recent results disabled")
	}

	if cfg.Postgres.Enabled() {
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse postgres config: %w", err)
		}
		poolCfg.MaxConns = cfg.Postgres.MaxConns

		a.pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		gameRepo := repository.NewGameRepository(store.New(a.pool))
		sinks = append(sinks, gameRepo)
		history = gameRepo
		pingers = append(pingers, poolPinger{pool: a.pool})
	} else {
		logger.Warn().Msg("PG_HOST not configured; game history disabled")
	}

	var recorder game.ResultRecorder
	if len(sinks) > 0 {
		a.worker = results.NewWorker(sinks, results.WorkerOptions{
			QueueSize:   cfg.Results.QueueSize,
			SaveTimeout: cfg.Results.SaveTimeout,
		}, collectorSet, logger)
		recorder = a.worker
	}

	registry := game.NewRegistry(logger, game.RegistryOptions{
		RoomCodeLength:    cfg.Game.RoomCodeLength,
		MinPlayersToStart: cfg.Game.MinPlayersToStart,
	})
	engine := scoring.NewEngine(scoring.ScoringConfig{PointsPerWin: cfg.Game.PointsPerWin})

	a.hub = ws.NewHub(logger)
	a.handler = game.NewHandler(registry, a.hub, engine, recorder, collectorSet, game.HandlerOptions{
		InboxSize:     cfg.Game.CommandBuffer,
		PublicBaseURL: cfg.PublicBaseURL,
		Upgrader:      server.NewWSUpgrader(cfg.CORS.AllowedOrigins),
		Connection: ws.ConnectionOptions{
			SendQueueSize: cfg.WS.SendQueueSize,
			PingInterval:  cfg.WS.PingInterval,
			PongWait:      cfg.WS.PongWait,
			WriteWait:     cfg.WS.WriteWait,
			ReadLimit:     cfg.WS.ReadLimit,
		},
	}, logger)

	roomHTTP := game.NewHTTPHandlers(registry, cfg.PublicBaseURL, logger)
	resultsHTTP := results.NewHTTPHandler(recent, history, logger)

	a.http = server.NewHTTPServer(cfg, logger, reg, server.Routes{
		WebSocket:     a.handler.HandleWebSocket,
		RoomQRCode:    roomHTTP.HandleQRCode,
		ResultByRoom:  resultsHTTP.HandleGet,
		RecentResults: resultsHTTP.HandleRecent,
		GameHistory:   resultsHTTP.HandleHistory,
	}, pingers...)

	return a, nil
}

// Run starts the HTTP server, the game command loop and the archive worker,
// and waits for a termination signal.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.handler.Run(gctx)
	})

	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gctx)
		})
	}

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
		defer cancel()

		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		// Hijacked websocket connections are not closed by Shutdown.
		a.hub.CloseAll()
		return nil
	})

	err := g.Wait()
	a.close()

	if err != nil {
		return err
	}
	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Name() string { return "redis" }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

type poolPinger struct {
	pool *pgxpool.Pool
}

func (p poolPinger) Name() string { return "postgres" }

func (p poolPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }
