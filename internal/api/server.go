package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
)

// Deliverer forwards a finished item to the gateway for chat delivery. The
// gateway client implements it; the server never imports the gateway.
type Deliverer interface {
	Deliver(ctx context.Context, item *domain.ExtractedItem, route domain.ChatRoute) error
}

// FeedIngester is the feed-reader surface the trigger endpoints call.
type FeedIngester interface {
	TriggerFetch(ctx context.Context, streamType, tag, feed string, channelID int64, useFeedContent bool) error
	HandleWebhook(ctx context.Context, body []byte, channelID int64) error
}

// Server is the HTTP API process.
type Server struct {
	cfg       *config.Config
	svc       *Service
	deliverer Deliverer
	feeds     FeedIngester
	httpSrv   *http.Server
	logger    *zerolog.Logger
}

func NewServer(cfg *config.Config, svc *Service, deliverer Deliverer, feeds FeedIngester, logger *zerolog.Logger) *Server {
	s := &Server{cfg: cfg, svc: svc, deliverer: deliverer, feeds: feeds, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.DownloadVideoTimeout + 30*time.Second))

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/scraper/getUrlMetadata", s.handleGetURLMetadata)
		r.Post("/scraper/getItem", s.handleGetItem)
		r.Post("/inoreader/triggerAsync", s.handleInoreaderTrigger)
		r.Post("/inoreader/webhook", s.handleInoreaderWebhook)
	})

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("api server listening")

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router; used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// requireAPIKey checks the shared-secret query parameter before any handler
// runs, so a rejected request has no side effects.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(s.cfg.APIKeyName) != s.cfg.APIKey {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetURLMetadata(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Metadata(rawURL, banListParam(r)))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	rawURL := query.Get("url")
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	opts := domain.OptionsFromQuery(query, s.cfg.APIKeyName)

	item, err := s.svc.Process(r.Context(), rawURL, banListParam(r), opts)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrBannedURL) || errors.Is(err, ErrUnsupportedURL) {
			status = http.StatusUnprocessableEntity
		}

		s.logger.Warn().Err(err).Str("url", rawURL).Msg("extraction failed")
		writeJSONError(w, status, err.Error())

		return
	}

	if chatID, err := strconv.ParseInt(query.Get("chat_id"), 10, 64); err == nil && s.deliverer != nil {
		replyTo, _ := strconv.Atoi(query.Get("reply_to"))

		route := domain.ChatRoute{TargetChat: chatID, ReplyTo: replyTo}
		if err := s.deliverer.Deliver(r.Context(), item, route); err != nil {
			s.logger.Error().Err(err).Int64("chat", chatID).Msg("delivery failed")
		}
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleInoreaderTrigger(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed ingestion is not configured")
		return
	}

	query := r.URL.Query()
	channelID, _ := strconv.ParseInt(query.Get("channelId"), 10, 64)
	useFeedContent, _ := strconv.ParseBool(query.Get("useInoreaderContent"))

	// Fetch and fan-out run detached; the trigger returns immediately.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		if err := s.feeds.TriggerFetch(ctx, query.Get("streamType"), query.Get("tag"), query.Get("feed"), channelID, useFeedContent); err != nil {
			s.logger.Error().Err(err).Msg("feed fetch failed")
		}
	}()

	writeJSON(w, http.StatusOK, "ok")
}

func (s *Server) handleInoreaderWebhook(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed ingestion is not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	channelID, _ := strconv.ParseInt(r.URL.Query().Get("channel_id"), 10, 64)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		if err := s.feeds.HandleWebhook(ctx, payload, channelID); err != nil {
			s.logger.Error().Err(err).Msg("feed webhook failed")
		}
	}()

	writeJSON(w, http.StatusOK, "ok")
}

func banListParam(r *http.Request) []string {
	raw := r.URL.Query().Get("ban_list")
	if raw == "" {
		return nil
	}

	return strings.Split(raw, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
