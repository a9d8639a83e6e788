package gateway

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/extract"
	"github.com/clipflow/clipflow/internal/platform/config"
)

type fakeUpdateHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	block   chan struct{}
}

func (h *fakeUpdateHandler) ProcessUpdate(_ context.Context, update tgbotapi.Update) {
	if h.block != nil {
		<-h.block
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *fakeUpdateHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.updates)
}

type fakeDeliverer struct {
	mu     sync.Mutex
	routes []domain.ChatRoute
	err    error
}

func (d *fakeDeliverer) DeliverItem(_ context.Context, _ *domain.ExtractedItem, route domain.ChatRoute, _ bool) error {
	if d.err != nil {
		return d.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, route)

	return nil
}

func testWebhookServer(handler *fakeUpdateHandler, deliverer *fakeDeliverer) *WebhookServer {
	logger := zerolog.Nop()

	return NewWebhookServer(&config.Config{
		BotSecretToken: "hook-secret",
		APIKey:         "secret",
		APIKeyName:     "api_key",
		JobTimeout:     time.Minute,
	}, handler, deliverer, &logger)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	handler := &fakeUpdateHandler{}
	server := testWebhookServer(handler, &fakeDeliverer{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(secretTokenHeader, "wrong")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	// The update handler must never run for a rejected call.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, handler.count())
}

func TestWebhookRespondsBeforeProcessingFinishes(t *testing.T) {
	handler := &fakeUpdateHandler{block: make(chan struct{})}
	server := testWebhookServer(handler, &fakeDeliverer{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":7}`))
	req.Header.Set(secretTokenHeader, "hook-secret")
	rec := httptest.NewRecorder()

	start := time.Now()
	server.Handler().ServeHTTP(rec, req)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, elapsed, 200*time.Millisecond, "webhook must acknowledge before processing")
	assert.Zero(t, handler.count())

	close(handler.block)

	require.Eventually(t, func() bool { return handler.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 7, handler.updates[0].UpdateID)
}

func TestWebhookRejectsMalformedUpdate(t *testing.T) {
	server := testWebhookServer(&fakeUpdateHandler{}, &fakeDeliverer{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	req.Header.Set(secretTokenHeader, "hook-secret")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageDelivers(t *testing.T) {
	deliverer := &fakeDeliverer{}
	server := testWebhookServer(&fakeUpdateHandler{}, deliverer)

	body := `{"data":{"url":"https://example.com","title":"t","author":"a","text":"x","content":"<p>x</p>","category":"generic","message_type":"short"},"chat_id":-100123,"reply_to":5}`
	req := httptest.NewRequest(http.MethodPost, "/send_message?api_key=secret", strings.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, deliverer.routes, 1)
	assert.Equal(t, int64(-100123), deliverer.routes[0].TargetChat)
	assert.Equal(t, 5, deliverer.routes[0].ReplyTo)
}

func TestSendMessageAuthAndValidation(t *testing.T) {
	deliverer := &fakeDeliverer{}
	server := testWebhookServer(&fakeUpdateHandler{}, deliverer)

	req := httptest.NewRequest(http.MethodPost, "/send_message?api_key=wrong", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/send_message?api_key=secret", strings.NewReader(`{"chat_id":0}`))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, deliverer.routes)
}

func TestHealth(t *testing.T) {
	server := testWebhookServer(&fakeUpdateHandler{}, &fakeDeliverer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMessageURLsUTF16Offsets(t *testing.T) {
	// The emoji occupies two UTF-16 code units, shifting the entity offset
	// past the rune index.
	text := "🚀 check https://example.com/post now"

	msg := &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "url", Offset: 9, Length: 24},
		},
	}

	urls := messageURLs(msg)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/post", urls[0])
}

func TestMessageURLsTextLink(t *testing.T) {
	msg := &tgbotapi.Message{
		Text: "see here",
		Entities: []tgbotapi.MessageEntity{
			{Type: "text_link", Offset: 4, Length: 4, URL: "https://example.com/linked"},
		},
	}

	urls := messageURLs(msg)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/linked", urls[0])
}

func TestIntentStoreRoundTrip(t *testing.T) {
	store := NewIntentStore()

	intent := domain.ButtonIntent{
		Kind:      domain.IntentVideo,
		URL:       "https://youtube.com/watch?v=abc",
		Source:    domain.SourceYoutube,
		ExtraArgs: domain.Options{Download: true, HD: true},
	}

	data := store.Put(intent)

	// Callback data must respect the platform's 64-byte cap.
	assert.LessOrEqual(t, len(data), 64)
	assert.True(t, strings.HasPrefix(data, callbackPrefix))

	got, ok := store.Take(data)
	require.True(t, ok)
	assert.Equal(t, intent, got)

	store.Delete(data)
	_, ok = store.Take(data)
	assert.False(t, ok)
}

func TestIntentStoreIgnoresForeignData(t *testing.T) {
	store := NewIntentStore()

	_, ok := store.Take("other-bot-data")
	assert.False(t, ok)
}

func servePNG(t *testing.T, width, height int) *httptest.Server {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(buf.Bytes())
	}))
	t.Cleanup(server.Close)

	return server
}

func testSender() *Sender {
	logger := zerolog.Nop()

	return NewSender(&config.Config{
		ImageDimensionLimit: 1600,
		ImageSizeLimit:      5 << 20,
		MaxFileSize:         50 << 20,
	}, nil, extract.NewFetcher(time.Second), &logger)
}

func TestPrepareImageRoutesPanoramaToFileGroup(t *testing.T) {
	server := servePNG(t, 5000, 500)

	ref, wasOversize := testSender().prepareImage(context.Background(),
		domain.MediaFile{MediaType: domain.MediaTypeImage, URL: server.URL + "/long.png"})

	// Too elongated to downscale: no inline photo, original rides the
	// file group untouched.
	assert.Nil(t, ref)
	assert.True(t, wasOversize)
}

func TestPrepareImageDownscalesOversize(t *testing.T) {
	server := servePNG(t, 3200, 1600)

	ref, wasOversize := testSender().prepareImage(context.Background(),
		domain.MediaFile{MediaType: domain.MediaTypeImage, URL: server.URL + "/wide.png"})

	assert.True(t, wasOversize)

	data, ok := ref.(tgbotapi.FileBytes)
	require.True(t, ok)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data.Bytes))
	require.NoError(t, err)
	assert.Equal(t, 1600, cfg.Width)
}
