// Package extract maps source tags to extractor plug-ins and hosts the
// plug-ins themselves. Every extractor turns one URL into a canonical
// ExtractedItem; parsing internals are private to each plug-in.
package extract

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/queue"
)

// Extractor is the plug-in contract. Extract must honor ctx cancellation
// and return an *ExtractionError on any failure; it never retries.
type Extractor interface {
	Extract(ctx context.Context, url string, opts domain.Options) (*domain.ExtractedItem, error)
}

// Registry constructs extractors per request. Authenticated client state
// (cookies, app passwords) lives in the config and is read-only after init,
// so the constructed extractors share no mutable state.
type Registry struct {
	cfg     *config.Config
	fetcher *Fetcher
	queue   *queue.Queue
	logger  *zerolog.Logger
}

func NewRegistry(cfg *config.Config, fetcher *Fetcher, q *queue.Queue, logger *zerolog.Logger) *Registry {
	return &Registry{cfg: cfg, fetcher: fetcher, queue: q, logger: logger}
}

// Get returns the extractor for a source tag. The generic extractor is only
// reachable when general scraping is enabled; unknown and banned sources
// have no extractor by definition.
func (r *Registry) Get(source domain.Source) (Extractor, error) {
	switch source {
	case domain.SourceTwitter:
		return &twitterExtractor{fetcher: r.fetcher, cookie: r.cfg.TwitterCookie}, nil
	case domain.SourceWeibo:
		return &weiboExtractor{fetcher: r.fetcher, cookie: r.cfg.WeiboCookie}, nil
	case domain.SourceZhihu:
		return &zhihuExtractor{fetcher: r.fetcher, cookie: r.cfg.ZhihuCookie}, nil
	case domain.SourceDouban:
		return &doubanExtractor{fetcher: r.fetcher}, nil
	case domain.SourceThreads:
		return &metaCardExtractor{fetcher: r.fetcher, source: domain.SourceThreads}, nil
	case domain.SourceInstagram:
		return &metaCardExtractor{fetcher: r.fetcher, source: domain.SourceInstagram}, nil
	case domain.SourceXiaohongshu:
		return &metaCardExtractor{fetcher: r.fetcher, source: domain.SourceXiaohongshu, cookie: r.cfg.XiaohongshuCookie}, nil
	case domain.SourceReddit:
		return &redditExtractor{fetcher: r.fetcher, clientID: r.cfg.RedditClientID, clientSecret: r.cfg.RedditSecret}, nil
	case domain.SourceBluesky:
		return &blueskyExtractor{fetcher: r.fetcher, handle: r.cfg.BlueskyHandle, password: r.cfg.BlueskyPassword}, nil
	case domain.SourceWechat:
		return &wechatExtractor{fetcher: r.fetcher}, nil
	case domain.SourceYoutube:
		return &videoExtractor{queue: r.queue, source: domain.SourceYoutube, timeout: r.cfg.DownloadVideoTimeout}, nil
	case domain.SourceBilibili:
		return &videoExtractor{queue: r.queue, source: domain.SourceBilibili, timeout: r.cfg.DownloadVideoTimeout}, nil
	case domain.SourceGeneric:
		if !r.cfg.GeneralScraping {
			return nil, fmt.Errorf("%w: general scraping disabled", ErrNoExtractor)
		}

		return &genericExtractor{fetcher: r.fetcher}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoExtractor, source)
	}
}
