// Package api serves the HTTP surface: URL classification, the full
// extraction pipeline, and the feed-reader triggers. It also hosts the
// orchestration service the gateway reaches over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/classify"
	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/extract"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/observability"
	"github.com/clipflow/clipflow/internal/postprocess"
)

// ErrBannedURL marks a URL whose source sits on the active ban list.
var ErrBannedURL = errors.New("url source is banned")

// ErrUnsupportedURL marks a URL no extractor serves.
var ErrUnsupportedURL = errors.New("url is not supported")

// Service runs the classify → extract → post-process flow.
type Service struct {
	cfg      *config.Config
	registry *extract.Registry
	pipeline *postprocess.Pipeline
	logger   *zerolog.Logger
}

func NewService(cfg *config.Config, registry *extract.Registry, pipeline *postprocess.Pipeline, logger *zerolog.Logger) *Service {
	return &Service{cfg: cfg, registry: registry, pipeline: pipeline, logger: logger}
}

// Metadata classifies a URL without side effects. An empty ban list falls
// back to the configured bot ban list.
func (s *Service) Metadata(rawURL string, banList []string) classify.Classification {
	if len(banList) == 0 {
		banList = s.cfg.BotMessageBanList
	}

	return classify.Classify(rawURL, banList)
}

// Process runs the full pipeline for one URL. Unknown sources fall through
// to the generic scraper when it is enabled; banned sources never reach an
// extractor.
func (s *Service) Process(ctx context.Context, rawURL string, banList []string, opts domain.Options) (*domain.ExtractedItem, error) {
	cls := s.Metadata(rawURL, banList)

	switch cls.Source {
	case domain.SourceBanned:
		return nil, fmt.Errorf("%w: %s", ErrBannedURL, cls.URL)
	case domain.SourceUnknown:
		if !s.cfg.GeneralScraping {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, cls.URL)
		}

		cls.Source = domain.SourceGeneric
	}

	extractor, err := s.registry.Get(cls.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, cls.URL)
	}

	item, err := extractor.Extract(ctx, cls.URL, opts)
	if err != nil {
		observability.ExtractionsTotal.WithLabelValues(string(cls.Source), "error").Inc()
		return nil, err
	}

	observability.ExtractionsTotal.WithLabelValues(string(cls.Source), "ok").Inc()

	s.pipeline.Run(ctx, item, opts)

	return item, nil
}

// PostProcess runs the stage chain on an item built outside the extractors,
// such as one assembled from trusted feed content.
func (s *Service) PostProcess(ctx context.Context, item *domain.ExtractedItem, opts domain.Options) {
	s.pipeline.Run(ctx, item, opts)
}
