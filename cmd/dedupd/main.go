package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/events"
	"github.com/user/video-dedup-go/internal/index"
	"github.com/user/video-dedup-go/internal/ingest"
	"github.com/user/video-dedup-go/internal/matcher"
	"github.com/user/video-dedup-go/internal/server"
	"github.com/user/video-dedup-go/internal/store"
	"github.com/user/video-dedup-go/internal/sweeper"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// MetricsInterval is how often the fingerprint count gauge refreshes
	MetricsInterval = 1 * time.Minute
)

func main() {
	// Initialize structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	// Create root context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL store
	mysqlStore, err := store.NewMySQLStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	// Build candidate index and repopulate it from storage
	candidateIndex, err := index.New(cfg.Matcher.MaxHamming)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create candidate index")
	}
	if err := candidateIndex.Rebuild(ctx, mysqlStore); err != nil {
		log.Fatal().Err(err).Msg("Failed to rebuild candidate index")
	}

	// Initialize matcher and ingestion service
	m := matcher.NewMatcher(candidateIndex, mysqlStore, &cfg.Matcher)
	ingestService := ingest.NewService(mysqlStore, candidateIndex, m)
	log.Info().Msg("Ingestion service initialized")

	// Media-deletion event sink: Kafka when brokers are configured,
	// structured log otherwise
	var sink events.Sink
	if len(cfg.Events.Brokers) > 0 {
		sink = events.NewKafkaSink(cfg.Events.Brokers, cfg.Events.Topic)
		log.Info().Strs("brokers", cfg.Events.Brokers).Str("topic", cfg.Events.Topic).Msg("Kafka deletion sink initialized")
	} else {
		sink = events.NewLogSink()
		log.Info().Msg("No event brokers configured, logging deletion events")
	}

	// Initialize retention sweeper
	sweep := sweeper.NewSweeper(mysqlStore, candidateIndex, sink, &cfg.Sweeper)

	// Initialize HTTP server
	httpServer := server.NewServer(mysqlStore, ingestService, sweep, &cfg.Server)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	go func() {
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Start periodic sweeping
	sweep.Start(ctx)
	log.Info().Msg("Sweeper started")

	// Refresh the fingerprint count gauge periodically
	go func() {
		ticker := time.NewTicker(MetricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count, err := mysqlStore.CountFingerprints(ctx); err == nil {
					server.UpdateFingerprintCount(count)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Msg("Video dedup engine started successfully")

	// Wait for shutdown signal
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop the sweeper from starting new passes
	sweep.Stop()

	// 2. Stop the HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 3. Flush and close the event sink
	if err := sink.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event sink")
	} else {
		log.Info().Msg("Event sink closed")
	}

	// 4. Close database connection pool
	if err := mysqlStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
