package extract

import (
	"bytes"
	"context"
	"net/url"

	readability "github.com/go-shiori/go-readability"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// genericExtractor is the fallback for unknown hosts when general scraping
// is enabled. It runs the readability algorithm over the fetched page.
type genericExtractor struct {
	fetcher *Fetcher
}

func (e *genericExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	body, err := e.fetcher.Get(ctx, rawURL, FetchOptions{})
	if err != nil {
		return nil, wrapErr(domain.SourceGeneric, rawURL, err)
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapErr(domain.SourceGeneric, rawURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, wrapErr(domain.SourceGeneric, rawURL, err)
	}

	if article.Content == "" && article.TextContent == "" {
		return nil, wrapErr(domain.SourceGeneric, rawURL, ErrEmptyContent)
	}

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       article.Title,
		Author:      article.Byline,
		Text:        contentToText(article.TextContent),
		Content:     article.Content,
		Category:    domain.SourceGeneric,
		MessageType: decideMessageType(article.TextContent),
	}

	if article.Image != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       article.Image,
		})
	}

	return item, nil
}
