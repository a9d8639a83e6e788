package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/clipflow/clipflow/internal/classify"
	"github.com/clipflow/clipflow/internal/core/domain"
)

// Client reaches the API process over HTTP. The gateway and the feed
// ingester use it instead of linking the pipeline in-process, so the three
// processes stay independently deployable.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiKeyName string
}

func NewClient(baseURL, apiKey, apiKeyName string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiKeyName: apiKeyName,
	}
}

// Metadata classifies a URL through the API.
func (c *Client) Metadata(ctx context.Context, rawURL string) (*classify.Classification, error) {
	query := url.Values{}
	query.Set("url", rawURL)

	var cls classify.Classification
	if err := c.post(ctx, "/scraper/getUrlMetadata", query, &cls); err != nil {
		return nil, err
	}

	return &cls, nil
}

// GetItem runs the full pipeline. A non-nil route makes the API hand the
// finished item to the gateway for delivery.
func (c *Client) GetItem(ctx context.Context, rawURL string, opts domain.Options, route *domain.ChatRoute) (*domain.ExtractedItem, error) {
	query := opts.Values()
	query.Set("url", rawURL)

	if route != nil {
		query.Set("chat_id", strconv.FormatInt(route.TargetChat, 10))

		if route.ReplyTo != 0 {
			query.Set("reply_to", strconv.Itoa(route.ReplyTo))
		}
	}

	var item domain.ExtractedItem
	if err := c.post(ctx, "/scraper/getItem", query, &item); err != nil {
		return nil, err
	}

	return &item, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values, out any) error {
	query.Set(c.apiKeyName, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating api request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading api response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}

		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("api %s: %s", path, apiErr.Error)
		}

		return fmt.Errorf("api %s: status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding api response: %w", err)
	}

	return nil
}
