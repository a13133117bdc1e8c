// Slumberhouse: multi-tenant team collaboration API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/api"
	"github.com/danblackadder/slumberhouse-api/internal/api/handler"
	"github.com/danblackadder/slumberhouse-api/internal/auth"
	"github.com/danblackadder/slumberhouse-api/internal/authz"
	"github.com/danblackadder/slumberhouse-api/internal/config"
	"github.com/danblackadder/slumberhouse-api/internal/db"
	"github.com/danblackadder/slumberhouse-api/internal/health"
	"github.com/danblackadder/slumberhouse-api/internal/live"
	"github.com/danblackadder/slumberhouse-api/internal/observability"
	"github.com/danblackadder/slumberhouse-api/internal/query"
	"github.com/danblackadder/slumberhouse-api/internal/seed"
	"github.com/danblackadder/slumberhouse-api/internal/store"
	"github.com/danblackadder/slumberhouse-api/internal/upload"
	"github.com/danblackadder/slumberhouse-api/internal/version"
	"github.com/danblackadder/slumberhouse-api/internal/worker"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability -------------------------------------------------------
	obs, log, err := observability.New(ctx, &observability.Config{
		ServiceName:    "slumberhouse",
		ServiceVersion: version.Version,
		LogLevel:       cfg.Log.Level,
		LogFormat:      cfg.Log.Format,
		OTLPEndpoint:   cfg.OTel.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer obs.Shutdown(context.Background())
	log.Info("starting slumberhouse", "version", version.Version, "commit", version.Commit, "db_driver", cfg.DB.Driver)

	// --- Database ------------------------------------------------------------
	// db.New opens the connection, runs migrations (AutoMigrate for SQLite,
	// golang-migrate for Postgres), and returns the GORM handle plus an
	// optional pgxpool (non-nil only for postgres, used by River).
	gormDB, pool, err := db.New(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	log.Info("database ready", "driver", cfg.DB.Driver)
	st := store.New(gormDB)

	// --- Seed ----------------------------------------------------------------
	if err := seed.EnsureWidgets(ctx, gormDB, log); err != nil {
		return fmt.Errorf("seed widgets: %w", err)
	}
	if err := seed.EnsureOwner(ctx, gormDB, seed.OwnerOptions{
		Email:        cfg.App.SeedOwnerEmail,
		Password:     cfg.App.SeedOwnerPassword,
		Organization: cfg.App.SeedOrganization,
	}, log); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}

	// --- Worker queue --------------------------------------------------------
	// River migrations only run when Postgres is available.
	if pool != nil {
		if err := worker.MigrateRiver(ctx, pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
		log.Info("river migrations applied")
	}

	wq, err := worker.New(pool, st, worker.Options{
		Driver:            cfg.DB.Driver,
		Concurrency:       cfg.Worker.Concurrency,
		ReconcileInterval: cfg.Worker.ReconcileInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	if err := wq.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wq.Stop(stopCtx); err != nil {
			log.Error("worker stop error", "err", err)
		}
	}()

	// --- Live updates --------------------------------------------------------
	taskLive := live.New("tasks", func(ctx context.Context, groupID string) (any, error) {
		return query.LoadTasks(ctx, gormDB, groupID)
	}, live.WithLogger(log))
	latest := query.Spec{Page: query.Paging{Limit: cfg.Live.MessageLimit, Page: 1}}
	messageLive := live.New("messages", func(ctx context.Context, groupID string) (any, error) {
		return query.GroupMessages(groupID).Find(ctx, gormDB, latest)
	}, live.WithLogger(log))

	if cfg.Live.RedisURL != "" {
		rdb, err := newRedis(ctx, cfg.Live.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close() //nolint:errcheck
		notifier := live.NewRedisNotifier(rdb, "slumberhouse:live", log)
		notifier.Attach(taskLive, messageLive)
		go func() {
			if err := notifier.Run(ctx); err != nil {
				log.Error("live notifier stopped", "err", err)
			}
		}()
		log.Info("live fan-out over redis enabled")
	}
	go taskLive.Run(ctx, cfg.Live.Heartbeat, cfg.Live.MaxSilence)
	go messageLive.Run(ctx, cfg.Live.Heartbeat, cfg.Live.MaxSilence)

	// --- HTTP routes ---------------------------------------------------------
	uploads, err := upload.New(cfg.Upload.Dir)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Routes{
		Health:      health.New(db.NewPinger(gormDB)),
		Auth:        handler.NewAuthHandler(st, auth.NewRefreshStore(gormDB, cfg.JWT.RefreshTTL), cfg.JWT.Secret, cfg.JWT.AccessTTL, log),
		Profile:     handler.NewProfileHandler(st, uploads, cfg.Upload.MaxBytes, log),
		Settings:    handler.NewSettingsHandler(st, uploads, cfg.Upload.MaxBytes, taskLive, messageLive, log),
		Groups:      handler.NewGroupHandler(st, taskLive, log),
		Tasks:       handler.NewTaskHandler(st, taskLive, log),
		Messages:    handler.NewMessageHandler(st, messageLive, log),
		Streamer:    handler.NewStreamer(cfg.HTTP.CORSOrigins, cfg.Live.MaxSilence, log),
		TaskLive:    taskLive,
		MessageLive: messageLive,
		Uploads:     uploads,
		Gate:        authz.New(st),
		Users:       st,
		JWTSecret:   cfg.JWT.Secret,
		Log:         log,
	})

	// Streams clear their own write deadline.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewHandler(mux, cfg.HTTP.CORSOrigins, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start server --------------------------------------------------------
	log.Info("http server listening", "addr", srv.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Open streams only end when their sinks close.
	taskLive.CloseAll()
	messageLive.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Default().Debug("redis connected", "addr", opts.Addr)
	return rdb, nil
}
