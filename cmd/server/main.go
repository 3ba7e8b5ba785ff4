package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/config"
	"github.com/taskmesh/taskmesh-api/internal/db"
	"github.com/taskmesh/taskmesh-api/internal/httpapi"
	"github.com/taskmesh/taskmesh-api/internal/jobs"
	"github.com/taskmesh/taskmesh-api/internal/service/syncservice"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "taskmesh-api").Logger()

	cfg, err := config.Load(os.Getenv("TASKMESH_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Pretty logging for local dev.
	if cfg.Dev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	var limiter httpapi.Limiter = httpapi.NewLocalLimiter()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, using in-process rate limiter")
		} else {
			limiter = &httpapi.RedisLimiter{Client: client}
			log.Info().Msg("redis rate limiter enabled")
		}
	}

	srv := &httpapi.Server{
		DB:   pool,
		Sync: &syncservice.Service{DB: pool},
		Issuer: &auth.Issuer{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
		Limiter: limiter,
		Cfg:     cfg,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	runner := &jobs.Runner{
		DB:               pool,
		SyncLogRetention: time.Duration(cfg.SyncLogRetentionDays) * 24 * time.Hour,
	}
	go runner.Run(ctx, cfg.CleanupInterval)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
