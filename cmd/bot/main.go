package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitness-debt-bot/internal/bot"
	"github.com/fitness-debt-bot/internal/config"
	"github.com/fitness-debt-bot/internal/ledger"
	"github.com/fitness-debt-bot/internal/models"
	"github.com/fitness-debt-bot/internal/motivation"
	"github.com/fitness-debt-bot/internal/report"
	"github.com/fitness-debt-bot/internal/scheduler"
	"github.com/fitness-debt-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// counterStore is a ledger store with connection lifecycle
type counterStore interface {
	ledger.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.Environment)
	logger.Info().
		Str("environment", cfg.Environment).
		Str("timezone", cfg.Timezone).
		Str("storage_backend", cfg.StorageBackend).
		Str("report_schedule", cfg.ReportSchedule).
		Strs("motivation_schedules", cfg.MotivationSchedules).
		Msg("Starting fitness debt bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	if err := store.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to storage")
	}
	logger.Info().Msg("Storage connection successful")

	l, err := ledger.New(store, cfg.Timezone, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create ledger")
	}

	// Initialize motivator
	motivator := motivation.NewMotivator(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, logger)
	defer func() {
		if err := motivator.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close motivator")
		}
	}()

	// Initialize bot
	logger.Info().Msg("Initializing Telegram bot...")
	telegramBot, err := bot.New(cfg, l, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bot")
	}

	logger.Info().
		Str("username", telegramBot.GetUsername()).
		Interface("allowed_chat_ids", cfg.AllowedChatIDs).
		Msg("Bot initialized successfully")

	// Initialize scheduler
	reports := report.NewBuilder(l, telegramBot, logger)
	sched, err := scheduler.NewScheduler(l, reports, motivator, telegramBot, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("Scheduler stopped with error")
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	botErrChan := make(chan error, 1)
	go func() {
		if err := telegramBot.Start(ctx); err != nil {
			botErrChan <- err
		}
	}()

	logger.Info().Msg("Bot is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
	case err := <-botErrChan:
		logger.Error().Err(err).Msg("Bot stopped with error")
	}

	// Graceful shutdown
	logger.Info().Msg("Initiating graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		telegramBot.Stop()
		<-schedDone
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, some requests may be lost")
	case <-done:
		logger.Info().Msg("Graceful shutdown completed")
	}

	logger.Info().Msg("Bot stopped")
}

// openStore creates the configured counter store
func openStore(cfg *models.BotConfig, logger zerolog.Logger) (counterStore, error) {
	if cfg.StorageBackend == config.BackendSupabase {
		logger.Info().Msg("Initializing Supabase client...")
		return storage.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTimeout, logger)
	}

	logger.Info().Str("path", cfg.SQLitePath).Msg("Opening SQLite database...")
	return storage.NewSQLite(cfg.SQLitePath, logger)
}

// setupLogger configures and returns a zerolog logger
func setupLogger(level, environment string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	var logger zerolog.Logger
	if environment == "development" {
		// Pretty console output for development
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
