// Package gateway is the chat-platform process: it receives updates by
// polling or webhook, drives the inline menu flow, and delivers finished
// items with the platform's chunking and discussion-group rules.
package gateway

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/classify"
	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/observability"
	"github.com/clipflow/clipflow/internal/storage"
)

// Pipeline is the API surface the gateway calls over HTTP; *api.Client
// satisfies it.
type Pipeline interface {
	Metadata(ctx context.Context, url string) (*classify.Classification, error)
	GetItem(ctx context.Context, url string, opts domain.Options, route *domain.ChatRoute) (*domain.ExtractedItem, error)
}

// ChatLogger persists non-URL chat traffic; *storage.DB satisfies it. Nil
// disables persistence.
type ChatLogger interface {
	SaveChatMessage(ctx context.Context, msg storage.ChatMessage) error
}

// Bot wires the platform client to the menu flow and the sender.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	pipeline Pipeline
	sender   *Sender
	intents  *IntentStore
	chatLog  ChatLogger
	logger   *zerolog.Logger
}

func NewBot(cfg *config.Config, pipeline Pipeline, sender *Sender, chatLog ChatLogger, logger *zerolog.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting bot: %w", err)
	}

	sender.bot = botAPI

	logger.Info().Str("username", botAPI.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:      botAPI,
		cfg:      cfg,
		pipeline: pipeline,
		sender:   sender,
		intents:  NewIntentStore(),
		chatLog:  chatLog,
		logger:   logger,
	}, nil
}

// RunPolling consumes updates over long polling until ctx is canceled.
func (b *Bot) RunPolling(ctx context.Context) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30

	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.ProcessUpdate(ctx, update)
		}
	}
}

// ProcessUpdate dispatches one update. Panics and unexpected errors are
// contained here so a poisoned update cannot take the loop down.
func (b *Bot) ProcessUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("update handler panicked")
			b.reportToDebugChannel(fmt.Sprintf("update handler panicked: %v", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		observability.WebhookUpdates.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		observability.WebhookUpdates.WithLabelValues("message").Inc()
		b.handleMessage(ctx, update.Message)
	case update.ChannelPost != nil:
		observability.WebhookUpdates.WithLabelValues("channel_post").Inc()
	default:
		observability.WebhookUpdates.WithLabelValues("other").Inc()
	}
}

// RegisterWebhook points the platform at the gateway's /webhook endpoint.
// The raw call carries the secret token the webhook handler verifies.
func (b *Bot) RegisterWebhook(publicURL string) error {
	params := tgbotapi.Params{
		"url": publicURL + "/webhook",
	}

	if b.cfg.BotSecretToken != "" {
		params["secret_token"] = b.cfg.BotSecretToken
	}

	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}

	b.logger.Info().Str("url", publicURL+"/webhook").Msg("webhook registered")

	return nil
}

// reportToDebugChannel forwards an error out-of-band. Best effort: an
// undeliverable report is only logged.
func (b *Bot) reportToDebugChannel(text string) {
	if b.cfg.DebugChannel == 0 {
		return
	}

	msg := tgbotapi.NewMessage(b.cfg.DebugChannel, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Msg("debug channel report failed")
	}
}
