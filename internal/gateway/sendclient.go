package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// SendClient posts finished items to the gateway's /send_message endpoint.
// The API process uses it as its delivery backend.
type SendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiKeyName string
}

func NewSendClient(baseURL, apiKey, apiKeyName string, timeout time.Duration) *SendClient {
	return &SendClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiKeyName: apiKeyName,
	}
}

// Deliver hands the item to the gateway for chat delivery.
func (c *SendClient) Deliver(ctx context.Context, item *domain.ExtractedItem, route domain.ChatRoute) error {
	payload, err := json.Marshal(sendMessageRequest{
		Data:    item,
		ChatID:  route.TargetChat,
		ReplyTo: route.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("encoding delivery request: %w", err)
	}

	query := url.Values{}
	query.Set(c.apiKeyName, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/send_message?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating delivery request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway delivery: status %d: %s", resp.StatusCode, body)
	}

	return nil
}
