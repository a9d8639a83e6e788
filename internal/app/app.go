// Package app wires the process modes together.
//
// The App type holds the shared dependencies and exposes one Run method per
// operational mode:
//
//   - API mode: HTTP surface running classify → extract → post-process
//   - Gateway mode: chat-platform bot, webhook server and delivery callback
//   - Worker mode: task process for downloads, PDF export and transcription
//
// Each mode runs as its own process; they share the database and talk to
// each other over authenticated HTTP.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/api"
	"github.com/clipflow/clipflow/internal/extract"
	"github.com/clipflow/clipflow/internal/feeds"
	"github.com/clipflow/clipflow/internal/gateway"
	"github.com/clipflow/clipflow/internal/objectstore"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/observability"
	"github.com/clipflow/clipflow/internal/postprocess"
	"github.com/clipflow/clipflow/internal/queue"
	"github.com/clipflow/clipflow/internal/shaper"
	"github.com/clipflow/clipflow/internal/storage"
	"github.com/clipflow/clipflow/internal/telegraph"
	"github.com/clipflow/clipflow/internal/worker"
)

// App holds the shared dependencies. The database is nil when no DSN is
// configured; modes that can run without it degrade their features instead
// of failing.
type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger
}

func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{cfg: cfg, database: database, logger: logger}
}

// StartHealthServer serves liveness, readiness and metrics for the current
// process.
func (a *App) StartHealthServer(ctx context.Context) error {
	var pinger observability.Pinger
	if a.database != nil {
		pinger = a.database
	}

	return observability.NewServer(pinger, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunAPI starts the HTTP API process.
func (a *App) RunAPI(ctx context.Context) error {
	fetcher := extract.NewFetcher(a.cfg.HTTPRequestTimeout)

	var q *queue.Queue
	if a.database != nil && a.cfg.FileExporterOn {
		q = queue.New(a.database, a.logger)
	}

	registry := extract.NewRegistry(a.cfg, fetcher, q, a.logger)

	publisher := telegraph.NewClient(a.cfg.TelegraphTokens, a.cfg.TelegraphAuthor, a.cfg.HTTPRequestTimeout, a.logger)

	stages := []postprocess.Stage{postprocess.NewTelegraphStage(publisher)}

	if q != nil {
		stages = append(stages, postprocess.NewDocumentStage(q, a.cfg.JobTimeout))

		if a.cfg.LLMConfigured() {
			stages = append(stages, postprocess.NewTranscribeStage(q, a.cfg.JobTimeout))
		}
	}

	if a.database != nil {
		stages = append(stages, postprocess.NewPersistStage(a.database, a.cfg.DatabaseOn))
	}

	pipeline := postprocess.NewPipeline(a.logger, stages...)
	svc := api.NewService(a.cfg, registry, pipeline, a.logger)

	deliverer := gateway.NewSendClient(a.cfg.GatewayBaseURL, a.cfg.APIKey, a.cfg.APIKeyName, a.cfg.HTTPRequestTimeout)
	ingester := feeds.NewIngester(a.cfg, svc, deliverer, a.logger)

	server := api.NewServer(a.cfg, svc, deliverer, ingester, a.logger)

	go func() {
		<-ctx.Done()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort
		_ = server.Shutdown(context.Background())
	}()

	return server.Start()
}

// RunGateway starts the chat-platform process. The webhook server runs in
// both bot modes: polling still needs /send_message for API callbacks.
func (a *App) RunGateway(ctx context.Context) error {
	sh := shaper.New(a.cfg)
	fetcher := extract.NewFetcher(a.cfg.HTTPRequestTimeout)
	sender := gateway.NewSender(a.cfg, sh, fetcher, a.logger)

	client := api.NewClient(a.cfg.BaseURL, a.cfg.APIKey, a.cfg.APIKeyName, a.cfg.JobTimeout)

	var chatLog gateway.ChatLogger
	if a.database != nil && a.cfg.DatabaseOn {
		chatLog = a.database
	}

	bot, err := gateway.NewBot(a.cfg, client, sender, chatLog, a.logger)
	if err != nil {
		return fmt.Errorf("gateway init: %w", err)
	}

	switch a.cfg.BotMode {
	case "webhook":
		if err := bot.RegisterWebhook(a.cfg.WebhookURL); err != nil {
			return err
		}
	default:
		go bot.RunPolling(ctx)
	}

	server := gateway.NewWebhookServer(a.cfg, bot, sender, a.logger)

	go func() {
		<-ctx.Done()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort
		_ = server.Shutdown(context.Background())
	}()

	return server.Start()
}

// RunWorker starts the task process.
func (a *App) RunWorker(ctx context.Context) error {
	if a.database == nil {
		return fmt.Errorf("worker mode needs a database")
	}

	var store *objectstore.Store

	if a.cfg.AWSStorageOn {
		var err error

		store, err = objectstore.New(ctx, a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("object store init: %w", err)
		}
	}

	w := worker.New(a.cfg, a.database, a.logger)
	w.Register(queue.JobVideoDownload, worker.NewVideoJob(a.cfg, a.logger).Handle)
	w.Register(queue.JobPDFExport, worker.NewPDFJob(a.cfg, store, a.logger).Handle)

	if a.cfg.LLMConfigured() {
		w.Register(queue.JobTranscribe, worker.NewTranscribeJob(a.cfg, a.logger).Handle)
	}

	return w.Run(ctx)
}
