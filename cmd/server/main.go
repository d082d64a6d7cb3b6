package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/progress-service/internal/auth"
	"github.com/actuallystonmai/progress-service/internal/cache"
	"github.com/actuallystonmai/progress-service/internal/config"
	"github.com/actuallystonmai/progress-service/internal/handler"
	"github.com/actuallystonmai/progress-service/internal/memstore"
	"github.com/actuallystonmai/progress-service/internal/progress"
	"github.com/actuallystonmai/progress-service/internal/repository"
	"github.com/actuallystonmai/progress-service/internal/router"
	"github.com/actuallystonmai/progress-service/internal/service"
	"github.com/actuallystonmai/progress-service/seeds"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ------------ Storage ---------------
	var store service.Store
	switch cfg.StorageBackend {
	case config.StorageMemory:
		mem := memstore.New()
		if cfg.SeedDemoData {
			if err := seeds.Load(ctx, mem, logger); err != nil {
				logger.Fatal("failed to seed memory store", zap.Error(err))
			}
		}
		store = mem
		logger.Info("using in-memory store")

	default:
		pool, err := newPool(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		// for migrate-down using CLI command
		if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
			if err := repository.MigrateDown(ctx, pool); err != nil {
				logger.Fatal("failed to migrate down", zap.Error(err))
			}
			logger.Info("migrations dropped")
			return
		}
		if err := repository.MigrateUp(ctx, pool); err != nil {
			logger.Fatal("failed to migrate up", zap.Error(err))
		}
		logger.Info("migrations applied")

		repo := repository.New(pool)
		if cfg.SeedDemoData {
			if err := checkSeed(ctx, repo, pool, logger); err != nil {
				logger.Fatal("failed to check seed", zap.Error(err))
			}
		}
		store = repo
	}

	// ------------ Redis ---------------
	var progressCache service.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse redis url", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without cache", zap.Error(err))
		} else {
			progressCache = cache.NewCache(rdb, cfg.CacheTTL)
			logger.Info("connected to Redis")
		}
	}

	// ------------ Tracker ---------------
	svc := service.NewService(store, progressCache, cfg.ContinueWatchingLimit, logger)
	tracker := progress.NewTracker(svc.GetProgress, svc.SaveProgress, progress.Policy{
		CompletionThreshold: cfg.CompletionThreshold,
		FlushInterval:       cfg.FlushInterval,
		WriteTimeout:        cfg.WriteTimeout,
	}, logger)
	sessions := progress.NewRegistry(tracker, cfg.SessionIdleTimeout, logger)

	// ---------------- Server --------------------
	jwt := auth.NewJWTService(cfg.JWTSecret, 24*time.Hour)
	h := handler.NewHandler(svc, tracker, sessions, logger)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(h, jwt, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sessions.RunReaper(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}

		// Final flush of every open session once no new requests can arrive.
		// Separate budget: a slow HTTP drain must not eat into it.
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), sessionFlushTimeout(cfg))
		defer cancelFlush()
		if err := sessions.Shutdown(flushCtx); err != nil {
			logger.Error("session shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

// sessionFlushTimeout is the shutdown budget for final session writes.
func sessionFlushTimeout(cfg *config.Config) time.Duration {
	return 3*cfg.WriteTimeout + 5*time.Second
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}

func newPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := waitForDB(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to PostgreSQL")
	return pool, nil
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1), zap.Int("max_attempts", 30))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func checkSeed(ctx context.Context, repo *repository.Repository, pool *pgxpool.Pool, logger *zap.Logger) error {
	count, err := repo.CountTitles(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("database already seeded, skipping", zap.Int("titles", count))
		return nil
	}
	return seeds.Setup(ctx, pool, logger)
}
