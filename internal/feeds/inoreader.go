// Package feeds pulls entries out of a feed reader and fans each one into
// the standard extraction and delivery flow, scoped to one target channel.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/htmlutils"
	"github.com/clipflow/clipflow/internal/platform/observability"
)

const inoreaderAPIBase = "https://www.inoreader.com/reader/api/0"

// longContentLimit mirrors the extractor cutoff for escalating to a
// long-form message.
const longContentLimit = 600

// Processor runs a URL through classify, extract and post-process.
// *api.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, rawURL string, banList []string, opts domain.Options) (*domain.ExtractedItem, error)
	PostProcess(ctx context.Context, item *domain.ExtractedItem, opts domain.Options)
}

// Deliverer pushes a finished item into a chat.
type Deliverer interface {
	Deliver(ctx context.Context, item *domain.ExtractedItem, route domain.ChatRoute) error
}

// Ingester fetches Inoreader streams (or raw RSS feeds when no reader
// account is configured) and processes each entry.
type Ingester struct {
	cfg        *config.Config
	httpClient *http.Client
	parser     *gofeed.Parser
	processor  Processor
	deliverer  Deliverer
	logger     *zerolog.Logger

	// apiBase is swapped out in tests.
	apiBase string
}

func NewIngester(cfg *config.Config, processor Processor, deliverer Deliverer, logger *zerolog.Logger) *Ingester {
	httpClient := &http.Client{Timeout: cfg.HTTPRequestTimeout}

	parser := gofeed.NewParser()
	parser.Client = httpClient

	return &Ingester{
		cfg:        cfg,
		httpClient: httpClient,
		parser:     parser,
		processor:  processor,
		deliverer:  deliverer,
		logger:     logger,
		apiBase:    inoreaderAPIBase,
	}
}

// entry is the feed-source-independent shape both paths reduce to.
type entry struct {
	URL       string
	Title     string
	Author    string
	Content   string
	Published time.Time
}

// TriggerFetch pulls the requested stream and runs every entry. streamType
// selects between a reader tag stream and a single feed; a raw feed URL
// without reader credentials is fetched and parsed directly.
func (g *Ingester) TriggerFetch(ctx context.Context, streamType, tag, feed string, channelID int64, useFeedContent bool) error {
	if channelID == 0 {
		return fmt.Errorf("feed trigger needs a target channel")
	}

	entries, err := g.fetchEntries(ctx, streamType, tag, feed)
	if err != nil {
		return err
	}

	g.runEntries(ctx, "trigger", entries, channelID, useFeedContent)

	return nil
}

// HandleWebhook runs the entries of a reader push notification.
func (g *Ingester) HandleWebhook(ctx context.Context, body []byte, channelID int64) error {
	if channelID == 0 {
		return fmt.Errorf("feed webhook needs a target channel")
	}

	var payload struct {
		Items []streamItem `json:"items"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding webhook payload: %w", err)
	}

	entries := make([]entry, 0, len(payload.Items))
	for _, it := range payload.Items {
		entries = append(entries, it.toEntry())
	}

	g.runEntries(ctx, "webhook", entries, channelID, false)

	return nil
}

func (g *Ingester) fetchEntries(ctx context.Context, streamType, tag, feed string) ([]entry, error) {
	switch streamType {
	case "feed":
		if feed == "" {
			return nil, fmt.Errorf("feed stream needs a feed url")
		}

		if !g.readerConfigured() {
			return g.fetchDirectFeed(ctx, feed)
		}

		return g.fetchStream(ctx, "feed/"+feed)
	case "tag", "":
		if tag == "" {
			return nil, fmt.Errorf("tag stream needs a tag name")
		}

		return g.fetchStream(ctx, "user/-/label/"+tag)
	default:
		return nil, fmt.Errorf("unknown stream type %q", streamType)
	}
}

func (g *Ingester) readerConfigured() bool {
	return g.cfg.InoreaderAppID != "" && g.cfg.InoreaderToken != ""
}

// streamItem is the reader API's article shape; the webhook pushes the same
// structure.
type streamItem struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Published int64  `json:"published"`
	Canonical []struct {
		Href string `json:"href"`
	} `json:"canonical"`
	Alternate []struct {
		Href string `json:"href"`
	} `json:"alternate"`
	Summary struct {
		Content string `json:"content"`
	} `json:"summary"`
	Origin struct {
		Title string `json:"title"`
	} `json:"origin"`
}

func (it streamItem) toEntry() entry {
	e := entry{
		Title:   it.Title,
		Author:  it.Author,
		Content: it.Summary.Content,
	}

	if e.Author == "" {
		e.Author = it.Origin.Title
	}

	if len(it.Canonical) > 0 {
		e.URL = it.Canonical[0].Href
	} else if len(it.Alternate) > 0 {
		e.URL = it.Alternate[0].Href
	}

	if it.Published > 0 {
		e.Published = time.Unix(it.Published, 0)
	}

	return e
}

func (g *Ingester) fetchStream(ctx context.Context, streamID string) ([]entry, error) {
	if !g.readerConfigured() {
		return nil, fmt.Errorf("inoreader credentials are not configured")
	}

	reqURL := fmt.Sprintf("%s/stream/contents/%s?n=%d", g.apiBase, url.PathEscape(streamID), g.cfg.InoreaderFetchSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}

	req.Header.Set("AppId", g.cfg.InoreaderAppID)
	req.Header.Set("AppKey", g.cfg.InoreaderAppKey)
	req.Header.Set("Authorization", "Bearer "+g.cfg.InoreaderToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stream %s: %w", streamID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream %s returned status %d", streamID, resp.StatusCode)
	}

	var payload struct {
		Items []streamItem `json:"items"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding stream %s: %w", streamID, err)
	}

	entries := make([]entry, 0, len(payload.Items))
	for _, it := range payload.Items {
		entries = append(entries, it.toEntry())
	}

	return entries, nil
}

// fetchDirectFeed parses the feed URL as plain RSS/Atom.
func (g *Ingester) fetchDirectFeed(ctx context.Context, feedURL string) ([]entry, error) {
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	limit := g.cfg.InoreaderFetchSize
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	entries := make([]entry, 0, limit)

	for _, it := range feed.Items[:limit] {
		e := entry{
			URL:     it.Link,
			Title:   it.Title,
			Content: it.Content,
		}

		if e.Content == "" {
			e.Content = it.Description
		}

		if it.Author != nil {
			e.Author = it.Author.Name
		}

		if e.Author == "" {
			e.Author = feed.Title
		}

		if it.PublishedParsed != nil {
			e.Published = *it.PublishedParsed
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// runEntries pushes each entry through extraction and delivery. Entry
// failures are logged and skipped so one dead link never stalls the stream.
func (g *Ingester) runEntries(ctx context.Context, origin string, entries []entry, channelID int64, useFeedContent bool) {
	route := domain.ChatRoute{TargetChat: channelID}

	for _, e := range entries {
		if e.URL == "" {
			observability.FeedEntries.WithLabelValues(origin, "skipped").Inc()
			continue
		}

		item, err := g.buildItem(ctx, e, useFeedContent)
		if err != nil {
			observability.FeedEntries.WithLabelValues(origin, "error").Inc()
			g.logger.Warn().Err(err).Str("url", e.URL).Msg("feed entry extraction failed")

			continue
		}

		if err := g.deliverer.Deliver(ctx, item, route); err != nil {
			observability.FeedEntries.WithLabelValues(origin, "error").Inc()
			g.logger.Error().Err(err).Str("url", e.URL).Int64("channel", channelID).Msg("feed entry delivery failed")

			continue
		}

		observability.FeedEntries.WithLabelValues(origin, "ok").Inc()
	}
}

// buildItem either extracts the entry URL through the normal pipeline or,
// when the feed content is trusted, short-circuits extraction with the HTML
// the reader already carries.
func (g *Ingester) buildItem(ctx context.Context, e entry, useFeedContent bool) (*domain.ExtractedItem, error) {
	if !useFeedContent {
		return g.processor.Process(ctx, e.URL, nil, domain.Options{})
	}

	content := htmlutils.SanitizeHTML(e.Content)

	messageType := domain.MessageTypeShort
	if htmlutils.TextContentLength(content) > longContentLimit {
		messageType = domain.MessageTypeLong
	}

	item := &domain.ExtractedItem{
		URL:         e.URL,
		Title:       e.Title,
		Author:      e.Author,
		Text:        htmlutils.StripHTMLTags(content),
		Content:     content,
		Category:    domain.SourceGeneric,
		MessageType: messageType,
	}

	if !e.Published.IsZero() {
		published := e.Published
		item.CreatedAt = &published
	}

	g.processor.PostProcess(ctx, item, domain.Options{})

	return item, nil
}
