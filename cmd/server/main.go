package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"querydeck/internal/aiclient"
	"querydeck/internal/api"
	"querydeck/internal/auth"
	"querydeck/internal/chat"
	"querydeck/internal/config"
	"querydeck/internal/crypto"
	"querydeck/internal/metrics"
	"querydeck/internal/project"
	"querydeck/internal/queue"
	"querydeck/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("listen_addr", cfg.HTTP.ListenAddr).
		Str("db_driver", cfg.DB.Driver).
		Str("ai_backend", cfg.AIBackend.BaseURL).
		Msg("starting querydeck")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	cipher, err := crypto.NewCipher(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cipher")
	}

	m := metrics.Global()
	ai := aiclient.New(aiclient.Config{
		BaseURL:        cfg.AIBackend.BaseURL,
		ProbeTimeout:   cfg.AIBackend.ProbeTimeout,
		SQLGenTimeout:  cfg.AIBackend.SQLGenTimeout,
		ExecuteTimeout: cfg.AIBackend.ExecuteTimeout,
		Metrics:        m,
	})

	projects := project.NewService(project.Config{
		Store:   store,
		AI:      ai,
		Cipher:  cipher,
		Logger:  log.Logger,
		Metrics: m,
	})
	orchestrator := chat.NewOrchestrator(chat.Config{
		Projects: projects,
		AI:       ai,
		Logger:   log.Logger,
		Metrics:  m,
	})

	router := api.SetupRouter(api.Deps{
		Config:   cfg,
		Identity: auth.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout),
		Verifier: auth.NewVerifier(cfg.Identity.JWTSecret),
		Denylist: auth.NewDenylist(rdb, time.Hour),
		Projects: projects,
		Chat:     orchestrator,
		Limiter:  queue.NewRateLimiter(rdb, cfg.Rate.TurnsPerHour),
		Logger:   log.Logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
