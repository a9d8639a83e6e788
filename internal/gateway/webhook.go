package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
)

// secretTokenHeader is the header the platform echoes the configured secret
// back in on every webhook call.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// sendMessageRequest is the API→gateway delivery payload.
type sendMessageRequest struct {
	Data      *domain.ExtractedItem `json:"data"`
	ChatID    int64                 `json:"chat_id"`
	ReplyTo   int                   `json:"reply_to,omitempty"`
	ToChannel bool                  `json:"to_channel,omitempty"`
}

// UpdateHandler consumes one platform update; *Bot satisfies it.
type UpdateHandler interface {
	ProcessUpdate(ctx context.Context, update tgbotapi.Update)
}

// ItemDeliverer executes a delivery; *Sender satisfies it.
type ItemDeliverer interface {
	DeliverItem(ctx context.Context, item *domain.ExtractedItem, route domain.ChatRoute, toChannel bool) error
}

// WebhookServer is the gateway's HTTP surface: the platform webhook, the
// API's delivery callback, and a liveness probe.
type WebhookServer struct {
	cfg       *config.Config
	updates   UpdateHandler
	deliverer ItemDeliverer
	httpSrv   *http.Server
	logger    *zerolog.Logger
}

func NewWebhookServer(cfg *config.Config, updates UpdateHandler, deliverer ItemDeliverer, logger *zerolog.Logger) *WebhookServer {
	s := &WebhookServer{cfg: cfg, updates: updates, deliverer: deliverer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", s.handleWebhook)
	r.Post("/send_message", s.handleSendMessage)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GatewayPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *WebhookServer) Start() error {
	s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("gateway server listening")

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}

	return nil
}

func (s *WebhookServer) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router; used by tests.
func (s *WebhookServer) Handler() http.Handler {
	return s.httpSrv.Handler
}

// handleWebhook authenticates the platform callback, acknowledges
// immediately, and processes the update detached so slow pipelines never
// stall the platform's delivery loop.
func (s *WebhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(secretTokenHeader) != s.cfg.BotSecretToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed update"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		s.updates.ProcessUpdate(ctx, update)
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSendMessage is the API's delivery callback, authenticated with the
// same shared secret as the API surface.
func (s *WebhookServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(s.cfg.APIKeyName) != s.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == nil || req.ChatID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed delivery request"})
		return
	}

	route := domain.ChatRoute{TargetChat: req.ChatID, ReplyTo: req.ReplyTo}
	if err := s.deliverer.DeliverItem(r.Context(), req.Data, route, req.ToChannel); err != nil {
		s.logger.Error().Err(err).Int64("chat", req.ChatID).Msg("delivery failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
