package postprocess

import (
	"context"
	"fmt"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// Publisher is the page-creation surface of the telegraph client.
type Publisher interface {
	Enabled() bool
	CreatePage(ctx context.Context, title, authorName, authorURL, content, baseURL string) (string, error)
}

// telegraphStage publishes long-form items as snapshot pages and records the
// page URL on the item. Short items are skipped unless explicitly requested.
type telegraphStage struct {
	publisher Publisher
}

func NewTelegraphStage(publisher Publisher) Stage {
	return &telegraphStage{publisher: publisher}
}

func (s *telegraphStage) Name() string { return "telegraph" }

func (s *telegraphStage) Applies(item *domain.ExtractedItem, opts domain.Options) bool {
	if !s.publisher.Enabled() || item.Content == "" {
		return false
	}

	return item.MessageType == domain.MessageTypeLong || opts.StoreTelegraph
}

func (s *telegraphStage) Run(ctx context.Context, item *domain.ExtractedItem, _ domain.Options) error {
	pageURL, err := s.publisher.CreatePage(ctx, item.Title, item.Author, item.AuthorURL, item.Content, item.URL)
	if err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}

	item.TelegraphURL = pageURL

	return nil
}
