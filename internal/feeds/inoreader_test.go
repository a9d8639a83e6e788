package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
)

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	shaped    []*domain.ExtractedItem
	err       error
}

func (p *fakeProcessor) Process(_ context.Context, rawURL string, _ []string, _ domain.Options) (*domain.ExtractedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	p.processed = append(p.processed, rawURL)

	return &domain.ExtractedItem{URL: rawURL, Title: "extracted", MessageType: domain.MessageTypeShort}, nil
}

func (p *fakeProcessor) PostProcess(_ context.Context, item *domain.ExtractedItem, _ domain.Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shaped = append(p.shaped, item)
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []*domain.ExtractedItem
	routes    []domain.ChatRoute
}

func (d *fakeDeliverer) Deliver(_ context.Context, item *domain.ExtractedItem, route domain.ChatRoute) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, item)
	d.routes = append(d.routes, route)

	return nil
}

func testIngester(cfg *config.Config, processor Processor, deliverer Deliverer) *Ingester {
	logger := zerolog.Nop()

	if cfg.HTTPRequestTimeout == 0 {
		cfg.HTTPRequestTimeout = 5 * time.Second
	}

	if cfg.InoreaderFetchSize == 0 {
		cfg.InoreaderFetchSize = 10
	}

	return NewIngester(cfg, processor, deliverer, &logger)
}

const streamResponse = `{"items": [
	{
		"title": "First article",
		"author": "alice",
		"published": 1700000000,
		"canonical": [{"href": "https://example.com/a"}],
		"summary": {"content": "<p>hello</p>"}
	},
	{
		"title": "Second article",
		"alternate": [{"href": "https://example.com/b"}],
		"origin": {"title": "Example Blog"},
		"summary": {"content": "<p>world</p>"}
	}
]}`

func TestTriggerFetchProcessesStreamEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "app-id", r.Header.Get("AppId"))
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "user/-/label/tech")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(streamResponse))
	}))
	defer srv.Close()

	processor := &fakeProcessor{}
	deliverer := &fakeDeliverer{}

	g := testIngester(&config.Config{
		InoreaderAppID:  "app-id",
		InoreaderAppKey: "app-key",
		InoreaderToken:  "token",
	}, processor, deliverer)
	g.apiBase = srv.URL

	require.NoError(t, g.TriggerFetch(context.Background(), "tag", "tech", "", -100123, false))

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, processor.processed)
	require.Len(t, deliverer.delivered, 2)
	assert.Equal(t, int64(-100123), deliverer.routes[0].TargetChat)
}

func TestTriggerFetchUsesFeedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(streamResponse))
	}))
	defer srv.Close()

	processor := &fakeProcessor{}
	deliverer := &fakeDeliverer{}

	g := testIngester(&config.Config{
		InoreaderAppID: "app-id",
		InoreaderToken: "token",
	}, processor, deliverer)
	g.apiBase = srv.URL

	require.NoError(t, g.TriggerFetch(context.Background(), "tag", "tech", "", 42, true))

	// Feed content short-circuits extraction entirely.
	assert.Empty(t, processor.processed)
	assert.Len(t, processor.shaped, 2)
	require.Len(t, deliverer.delivered, 2)

	first := deliverer.delivered[0]
	assert.Equal(t, "First article", first.Title)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, domain.MessageTypeShort, first.MessageType)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, int64(1700000000), first.CreatedAt.Unix())

	// A missing author falls back to the feed title.
	assert.Equal(t, "Example Blog", deliverer.delivered[1].Author)
}

func TestTriggerFetchDirectRSSWithoutReaderAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Plain Feed</title>
<item><title>Post one</title><link>https://example.com/one</link><description>short</description></item>
</channel></rss>`))
	}))
	defer srv.Close()

	processor := &fakeProcessor{}
	deliverer := &fakeDeliverer{}

	g := testIngester(&config.Config{}, processor, deliverer)

	require.NoError(t, g.TriggerFetch(context.Background(), "feed", "", srv.URL, 42, false))

	assert.Equal(t, []string{"https://example.com/one"}, processor.processed)
}

func TestTriggerFetchValidation(t *testing.T) {
	g := testIngester(&config.Config{}, &fakeProcessor{}, &fakeDeliverer{})

	assert.Error(t, g.TriggerFetch(context.Background(), "tag", "tech", "", 0, false))
	assert.Error(t, g.TriggerFetch(context.Background(), "tag", "", "", 42, false))
	assert.Error(t, g.TriggerFetch(context.Background(), "feed", "", "", 42, false))
	assert.Error(t, g.TriggerFetch(context.Background(), "starred", "", "", 42, false))
}

func TestTriggerFetchSkipsFailedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(streamResponse))
	}))
	defer srv.Close()

	processor := &fakeProcessor{err: assert.AnError}
	deliverer := &fakeDeliverer{}

	g := testIngester(&config.Config{
		InoreaderAppID: "app-id",
		InoreaderToken: "token",
	}, processor, deliverer)
	g.apiBase = srv.URL

	require.NoError(t, g.TriggerFetch(context.Background(), "tag", "tech", "", 42, false))
	assert.Empty(t, deliverer.delivered)
}

func TestHandleWebhook(t *testing.T) {
	processor := &fakeProcessor{}
	deliverer := &fakeDeliverer{}

	g := testIngester(&config.Config{}, processor, deliverer)

	require.NoError(t, g.HandleWebhook(context.Background(), []byte(streamResponse), 42))
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, processor.processed)

	assert.Error(t, g.HandleWebhook(context.Background(), []byte(`not json`), 42))
	assert.Error(t, g.HandleWebhook(context.Background(), []byte(`{}`), 0))
}
