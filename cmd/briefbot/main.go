package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xaenox/daily-brief/internal/bot"
	"github.com/xaenox/daily-brief/internal/briefing"
	"github.com/xaenox/daily-brief/internal/job"
	"github.com/xaenox/daily-brief/internal/mailer"
	"github.com/xaenox/daily-brief/internal/render"
	"github.com/xaenox/daily-brief/internal/sheets"
	"github.com/xaenox/daily-brief/internal/storage"
	"github.com/xaenox/daily-brief/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const configPath = "config.yaml"

func main() {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Briefing service error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func newSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.ProfileSource, error) {
	switch cfg.Directory.Source {
	case config.SourcePostgres:
		logger.Info("Using PostgreSQL directory source")
		return storage.NewPostgresSource(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	default:
		logger.Info("Using Google Sheets directory source", zap.String("sheet", cfg.Sheets.Name))
		return sheets.NewSource(ctx, cfg.Sheets.CredentialsPath, cfg.Sheets.Name,
			cfg.Sheets.SpreadsheetID, cfg.Sheets.Timeout, logger)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize directory source: %w", err)
	}
	defer source.Close()

	directory := storage.NewDirectory(source, logger)
	requests := storage.NewPendingRequests()

	// Initial load so the webhook can recognize users before the first run.
	if err := directory.Refresh(ctx); err != nil {
		logger.Error("Failed to load users", zap.Error(err))
	}

	generator := briefing.NewGenerator(briefing.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	notifier, err := mailer.New(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	daily := job.NewDailyJob(job.Config{OutputDir: cfg.OutputDir},
		directory, requests, generator, render.NewRenderer(), notifier, logger)

	if cfg.Telegram.Token != "" {
		alerter, err := bot.NewTelegramAlerter(cfg.Telegram.Token, cfg.Telegram.AlertChatID, logger)
		if err != nil {
			logger.Error("Telegram alerts disabled", zap.Error(err))
		} else {
			daily.WithAlerter(alerter)
		}
	}

	scheduler, err := job.NewScheduler(ctx, cfg.Schedule.Cron, cfg.Schedule.Timezone, daily, logger)
	if err != nil {
		return err
	}

	webhook := bot.NewWebhookHandler(directory, requests, logger)
	if cfg.Twilio.ValidateSignature {
		webhook.WithSignatureValidation(cfg.Twilio.AuthToken, cfg.Twilio.WebhookURL)
	}
	if cfg.Twilio.AccountSID != "" {
		webhook.WithAccountSID(cfg.Twilio.AccountSID)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	webhook.Register(e)

	scheduler.Start()
	if cfg.Schedule.RunOnStart {
		go scheduler.RunNow()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("Webhook server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
