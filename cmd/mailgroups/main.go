package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/mixelka/mailgroups/internal/classifier"
	"github.com/mixelka/mailgroups/internal/config"
	"github.com/mixelka/mailgroups/internal/crypto"
	"github.com/mixelka/mailgroups/internal/database"
	"github.com/mixelka/mailgroups/internal/email"
	"github.com/mixelka/mailgroups/internal/formatter"
	"github.com/mixelka/mailgroups/internal/groups"
	"github.com/mixelka/mailgroups/internal/summary"
	"github.com/mixelka/mailgroups/internal/telegram"
	"github.com/mixelka/mailgroups/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailgroups")

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
	logger.Info("mailgroups stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return err
	}

	dialer := email.NewIMAPDialer(cfg, sealer, logger)
	generator := summary.NewClient(summary.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if !generator.IsConfigured() {
		logger.Warn("GEMINI_API_KEY not set, summaries are disabled")
	}

	launcher := groups.NewAsyncLauncher(ctx)
	defer launcher.Wait()

	service := groups.NewService(groups.ServiceDeps{
		DB:              db,
		Syncer:          email.NewSyncer(dialer, db, cfg.SyncLookback, logger),
		Tester:          dialer,
		Sealer:          sealer,
		Classifier:      classifier.New(db, logger),
		Generator:       generator,
		Launcher:        launcher,
		SummaryLanguage: cfg.SummaryLanguage,
		Logger:          logger,
	})

	if cfg.BootstrapAccountEnabled() {
		if _, err := service.EnsureBootstrapAccount(ctx, groups.BootstrapAccount{
			Email:    cfg.IMAPUser,
			Password: cfg.IMAPPassword,
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			TLS:      cfg.IMAPTLS,
		}); err != nil {
			return err
		}
	}

	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(telegram.BotDeps{
			Token:     cfg.TelegramToken,
			ChatID:    cfg.TelegramChatID,
			Service:   service,
			Formatter: formatter.NewTelegramFormatter(),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		service.OnSyncFailure(bot.NotifySyncFailure)

		// runs before launcher.Wait, so no handler starts a sync during it
		botDone := make(chan struct{})
		go func() {
			defer close(botDone)
			bot.Start(ctx)
		}()
		defer func() { <-botDone }()
	}

	poll(ctx, service, cfg.PollInterval, logger)
	logger.Info("shutting down, waiting for running syncs")
	return nil
}

// poll refreshes every interval until ctx is done
func poll(ctx context.Context, service *groups.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refresh(ctx, service, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refresh(ctx context.Context, service *groups.Service, logger *slog.Logger) {
	results, err := service.Refresh(ctx)
	if err != nil {
		logger.Error("refresh failed", "error", err)
		return
	}
	for _, r := range results {
		logRefresh(logger, r)
	}
}

func logRefresh(logger *slog.Logger, r models.AccountResult) {
	attrs := []any{"account_id", r.Account.ID, "email", r.Account.Email, "groups", len(r.Groups())}
	if reason, failed := r.Failure(); failed {
		logger.Warn("account groups served with sync failure", append(attrs, "error", reason)...)
		return
	}
	logger.Debug("account groups served", attrs...)
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
