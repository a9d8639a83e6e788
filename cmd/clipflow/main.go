package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/app"
	"github.com/clipflow/clipflow/internal/platform/config"
	db "github.com/clipflow/clipflow/internal/storage"
)

func main() {
	mode := flag.String("mode", "", "Service mode (api, gateway, worker)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var database *db.DB

	if cfg.PostgresDSN != "" {
		database, err = db.New(ctx, cfg.PostgresDSN, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	application := app.New(cfg, database, &logger)

	// Health and metrics run beside every mode.
	go func() {
		if err := application.StartHealthServer(ctx); err != nil {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	if err := runMode(ctx, application, *mode); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string) error {
	switch mode {
	case "api":
		return application.RunAPI(ctx)
	case "gateway":
		return application.RunGateway(ctx)
	case "worker":
		return application.RunWorker(ctx)
	default:
		log.Fatalf("Usage: %s --mode=[api|gateway|worker]", os.Args[0])

		return nil
	}
}
