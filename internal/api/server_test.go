package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/extract"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/postprocess"
)

type fakeDeliverer struct {
	routes []domain.ChatRoute
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ *domain.ExtractedItem, route domain.ChatRoute) error {
	d.routes = append(d.routes, route)
	return nil
}

func testServer(t *testing.T, cfg *config.Config) (*Server, *fakeDeliverer) {
	t.Helper()

	logger := zerolog.Nop()
	registry := extract.NewRegistry(cfg, extract.NewFetcher(0), nil, &logger)
	svc := NewService(cfg, registry, postprocess.NewPipeline(&logger), &logger)
	deliverer := &fakeDeliverer{}

	return NewServer(cfg, svc, deliverer, nil, &logger), deliverer
}

func testConfig() *config.Config {
	return &config.Config{
		APIKey:     "secret",
		APIKeyName: "api_key",
		APIPort:    0,
	}
}

func TestAuthRejectsWithoutSideEffects(t *testing.T) {
	server, deliverer := testServer(t, testConfig())

	paths := []string{
		"/scraper/getUrlMetadata",
		"/scraper/getItem",
		"/inoreader/triggerAsync",
		"/inoreader/webhook",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path+"?url=https://example.com&api_key=wrong", nil)
			rec := httptest.NewRecorder()

			server.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			assert.Empty(t, deliverer.routes)
		})
	}
}

func TestGetURLMetadata(t *testing.T) {
	server, _ := testServer(t, testConfig())

	target := "/scraper/getUrlMetadata?api_key=secret&url=" + url.QueryEscape("https://x.com/ada/status/42")
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://x.com/ada/status/42","source":"twitter","content_type":"social_media"}`, rec.Body.String())
}

func TestGetItemBannedURL(t *testing.T) {
	server, deliverer := testServer(t, testConfig())

	target := "/scraper/getItem?api_key=secret&ban_list=twitter&url=" + url.QueryEscape("https://x.com/ada/status/42")
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "banned")
	assert.Empty(t, deliverer.routes)
}

func TestGetItemUnknownURLWithoutGenericScraper(t *testing.T) {
	server, _ := testServer(t, testConfig())

	target := "/scraper/getItem?api_key=secret&url=" + url.QueryEscape("https://nowhere.example/post")
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "not supported")
}

func TestGetItemMissingURL(t *testing.T) {
	server, _ := testServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/scraper/getItem?api_key=secret", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInoreaderTriggerWithoutFeeds(t *testing.T) {
	server, _ := testServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/inoreader/triggerAsync?api_key=secret", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
