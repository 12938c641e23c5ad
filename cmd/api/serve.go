package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tasktrack/tasktrack-go/internal/cache"
	"github.com/tasktrack/tasktrack-go/internal/config"
	"github.com/tasktrack/tasktrack-go/internal/crypto"
	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/handler"
	"github.com/tasktrack/tasktrack-go/internal/httpserver"
	"github.com/tasktrack/tasktrack-go/internal/logger"
	"github.com/tasktrack/tasktrack-go/internal/middleware"
	"github.com/tasktrack/tasktrack-go/internal/service"
)

func openDatabase(ctx context.Context, cfg config.Config) (*database.DB, error) {
	return database.Open(ctx, database.Options{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DSN(),
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		AcquireTimeout:  cfg.AcquireTimeout(),
	})
}

func migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer log.Sync()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema up to date", zap.String("driver", cfg.DBDriver))
	return nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rl, err := cfg.RateLimit()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	defer log.Sync()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	tokens, err := crypto.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenTTL())
	if err != nil {
		return err
	}

	var (
		store   cache.Cache
		limiter middleware.Limiter
	)
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		store = cache.NewRedis(client, "tasktrack")
		limiter = middleware.NewRedisLimiter(client, "tasktrack:rl:", rl.Requests, rl.Window)
		log.Info("using redis for cache and rate limiting")
	} else {
		store = cache.NewMemory(cfg.CacheTTL())
		memLimiter := middleware.NewMemoryLimiter(rl.Requests, rl.Window)
		defer memLimiter.Close()
		limiter = memLimiter
		log.Info("REDIS_URL not set, using in-process cache and rate limiting")
	}
	loader := cache.NewLoader(store, cfg.CacheTTL(), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.SQL(), cfg.DBDriver),
	)
	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return err
	}

	users := service.NewUserService(db, crypto.NewHasher(cfg.BcryptCost))
	tasks := service.NewTaskService(db)

	router := httpserver.NewRouter(httpserver.Deps{
		Log:      log,
		DB:       db,
		Tokens:   tokens,
		Auth:     handler.NewAuthHandler(users, tokens, loader, cfg.CookieSecure, log),
		Tasks:    handler.NewTaskHandler(tasks, loader, log),
		Limiter:  limiter,
		Metrics:  metrics,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
