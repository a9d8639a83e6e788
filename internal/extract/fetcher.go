package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// ErrHTTPStatusNotOK indicates a non-200 upstream response.
var ErrHTTPStatusNotOK = errors.New("HTTP status not OK")

// ErrTooManyRedirects indicates too many HTTP redirects.
var ErrTooManyRedirects = errors.New("too many redirects")

const (
	maxRedirects       = 5
	maxBodySizeBytes   = 10 * 1024 * 1024
	globalLimiterRPS   = 4
	globalLimiterBurst = 8
	domainLimiterRate  = 1
	domainLimiterBurst = 2
	defaultUserAgent   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// refererBySource names sources whose media hosts reject requests without
// the right referer header.
var refererBySource = map[domain.Source]string{
	domain.SourceDouban:      "https://www.douban.com/",
	domain.SourceWeibo:       "https://weibo.com/",
	domain.SourceXiaohongshu: "https://www.xiaohongshu.com/",
}

// RefererFor returns the referer required to download media for a source,
// or empty when none is needed.
func RefererFor(source domain.Source) string {
	return refererBySource[source]
}

// Fetcher is the shared HTTP client for all extractors: keep-alive reuse,
// global plus per-domain rate limiting, redirect and body-size caps.
type Fetcher struct {
	client         *http.Client
	globalLimiter  *rate.Limiter
	domainLimiters map[string]*rate.Limiter
	mu             sync.RWMutex
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		},
		globalLimiter:  rate.NewLimiter(globalLimiterRPS, globalLimiterBurst),
		domainLimiters: make(map[string]*rate.Limiter),
	}
}

// FetchOptions tune a single request.
type FetchOptions struct {
	Referer       string
	Cookie        string
	Accept        string
	Authorization string
	BasicUser     string
	BasicPass     string
}

// Get downloads a URL subject to the rate limits and the body-size cap.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts FetchOptions) ([]byte, error) {
	return f.do(ctx, http.MethodGet, rawURL, "", nil, opts)
}

// Post sends a request body and returns the response, subject to the same
// limits as Get. Auth endpoints (app-password sessions, OAuth token grants)
// go through here.
func (f *Fetcher) Post(ctx context.Context, rawURL, contentType string, body []byte, opts FetchOptions) ([]byte, error) {
	return f.do(ctx, http.MethodPost, rawURL, contentType, body, opts)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL, contentType string, payload []byte, opts FetchOptions) ([]byte, error) {
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("global rate limiter wait: %w", err)
	}

	if err := f.getDomainLimiter(extractDomain(rawURL)).Wait(ctx); err != nil {
		return nil, fmt.Errorf("domain rate limiter wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json")
	}

	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}

	if opts.Cookie != "" {
		req.Header.Set("Cookie", opts.Cookie)
	}

	if opts.Authorization != "" {
		req.Header.Set("Authorization", opts.Authorization)
	}

	if opts.BasicUser != "" {
		req.SetBasicAuth(opts.BasicUser, opts.BasicPass)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return respBody, nil
}

// Stream opens a response body for large media downloads. The caller closes
// the reader; the body-size cap does not apply (the shaper enforces the
// platform file-size limit itself).
func (f *Fetcher) Stream(ctx context.Context, rawURL string, opts FetchOptions) (io.ReadCloser, int64, error) {
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("global rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", defaultUserAgent)

	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

func (f *Fetcher) getDomainLimiter(domain string) *rate.Limiter {
	f.mu.RLock()
	limiter, exists := f.domainLimiters[domain]
	f.mu.RUnlock()

	if exists {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if limiter, exists := f.domainLimiters[domain]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(domainLimiterRate, domainLimiterBurst)
	f.domainLimiters[domain] = limiter

	return limiter
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
