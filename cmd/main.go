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
	"github.com/rs/zerolog"

	"amora/server/internal/config"
	"amora/server/internal/engine"
	"amora/server/internal/entitlement"
	"amora/server/internal/storage"
	"amora/server/internal/web"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MySQL")
	}
	defer mysqlStore.Close()
	log.Info().Msg("MySQL connected")

	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisStore.Close()
	log.Info().Msg("Redis connected")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := mysqlStore.SeedCharacters(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed characters")
	}
	cancel()

	if cfg.AI.OpenAI.APIKey == "" {
		log.Warn().Msg("no OpenAI API key configured, generation will fail")
	}
	if cfg.Server.JWTSecret == "" {
		log.Fatal().Msg("JWT secret is required")
	}

	oracle := engine.NewOpenAIOracle(cfg.AI.OpenAI)
	gate := entitlement.NewGate(entitlement.Limits{
		MessagesPerDay: cfg.Limits.FreeMessagesPerDay,
		ScenesPerDay:   cfg.Limits.FreeScenesPerDay,
		MaxCharacters:  cfg.Limits.FreeCharacters,
		PayloadChars:   cfg.Limits.FreePayloadChars,
	})
	tracker := engine.NewTracker(gate, oracle)

	hub := web.NewEventHub(log)
	go hub.Run()

	usage := storage.NewUsageService(redisStore, mysqlStore)
	orch := engine.NewOrchestrator(
		gate, oracle, tracker,
		usage, mysqlStore, mysqlStore, mysqlStore, hub,
		log,
	)

	router := web.NewRouter(cfg, orch, mysqlStore, hub, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
