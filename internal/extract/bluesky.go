package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// blueskyExtractor reads post threads through getPostThread. With an app
// password configured it signs in first and reads through the PDS, which
// also serves posts the public AppView hides; otherwise it falls back to
// the unauthenticated public AppView.
type blueskyExtractor struct {
	fetcher  *Fetcher
	handle   string
	password string

	// appView and pds default to the public hosts; tests point them at a
	// local server.
	appView string
	pds     string
}

var blueskyPathRegex = regexp.MustCompile(`/profile/([^/]+)/post/([^/]+)`)

const (
	blueskyPublicAPI = "https://public.api.bsky.app"
	blueskyPDS       = "https://bsky.social"
)

type blueskyPostView struct {
	URI    string `json:"uri"`
	Author struct {
		DID         string `json:"did"`
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Record struct {
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
	} `json:"record"`
	Embed *struct {
		Images []struct {
			Fullsize string `json:"fullsize"`
			Alt      string `json:"alt"`
		} `json:"images"`
		Playlist string `json:"playlist"`
		Record   *struct {
			Record *blueskyPostView `json:"record"`
		} `json:"record"`
	} `json:"embed"`
	ReplyCount  int64 `json:"replyCount"`
	RepostCount int64 `json:"repostCount"`
	LikeCount   int64 `json:"likeCount"`
}

type blueskyThreadResponse struct {
	Thread struct {
		Post *blueskyPostView `json:"post"`
	} `json:"thread"`
}

func (e *blueskyExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapErr(domain.SourceBluesky, rawURL, err)
	}

	m := blueskyPathRegex.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, wrapErr(domain.SourceBluesky, rawURL, fmt.Errorf("%w: not a post URL", ErrEmptyContent))
	}

	atURI := fmt.Sprintf("at://%s/app.bsky.feed.post/%s", m[1], m[2])

	apiBase := e.appView
	if apiBase == "" {
		apiBase = blueskyPublicAPI
	}

	var auth string

	if e.handle != "" && e.password != "" {
		token, err := e.createSession(ctx)
		if err != nil {
			return nil, wrapErr(domain.SourceBluesky, rawURL, err)
		}

		apiBase = e.pdsBase()
		auth = "Bearer " + token
	}

	apiURL := apiBase + "/xrpc/app.bsky.feed.getPostThread?uri=" + url.QueryEscape(atURI)

	body, err := e.fetcher.Get(ctx, apiURL, FetchOptions{Accept: "application/json", Authorization: auth})
	if err != nil {
		return nil, wrapErr(domain.SourceBluesky, rawURL, err)
	}

	var resp blueskyThreadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapErr(domain.SourceBluesky, rawURL, err)
	}

	if resp.Thread.Post == nil {
		return nil, wrapErr(domain.SourceBluesky, rawURL, ErrEmptyContent)
	}

	item := blueskyPostToItem(resp.Thread.Post, rawURL)

	// A quote post embeds the quoted record; it becomes the parent.
	if embed := resp.Thread.Post.Embed; embed != nil && embed.Record != nil && embed.Record.Record != nil {
		quoted := embed.Record.Record
		item.Parent = blueskyPostToItem(quoted, blueskyWebURL(quoted))
	}

	return item, nil
}

func (e *blueskyExtractor) pdsBase() string {
	if e.pds != "" {
		return e.pds
	}

	return blueskyPDS
}

// createSession signs in with the configured app password and returns the
// access token for the request.
func (e *blueskyExtractor) createSession(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": e.handle,
		"password":   e.password,
	})
	if err != nil {
		return "", fmt.Errorf("encode session request: %w", err)
	}

	body, err := e.fetcher.Post(ctx, e.pdsBase()+"/xrpc/com.atproto.server.createSession",
		"application/json", payload, FetchOptions{Accept: "application/json"})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	var session struct {
		AccessJwt string `json:"accessJwt"`
	}

	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}

	if session.AccessJwt == "" {
		return "", fmt.Errorf("%w: session response without token", ErrEmptyContent)
	}

	return session.AccessJwt, nil
}

func blueskyPostToItem(post *blueskyPostView, rawURL string) *domain.ExtractedItem {
	author := post.Author.DisplayName
	if author == "" {
		author = post.Author.Handle
	}

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       author,
		Author:      post.Author.Handle,
		AuthorURL:   "https://bsky.app/profile/" + post.Author.Handle,
		Text:        post.Record.Text,
		Content:     textToContent(post.Record.Text),
		Category:    domain.SourceBluesky,
		MessageType: decideMessageType(post.Record.Text),
		CreatedAt:   parseTimePtr(post.Record.CreatedAt),
		Stats: map[string]int64{
			"replies": post.ReplyCount,
			"reposts": post.RepostCount,
			"likes":   post.LikeCount,
		},
	}

	if post.Embed == nil {
		return item
	}

	for _, img := range post.Embed.Images {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       img.Fullsize,
			Caption:   img.Alt,
		})
	}

	if post.Embed.Playlist != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeVideo,
			URL:       post.Embed.Playlist,
		})
	}

	return item
}

// blueskyWebURL rebuilds the public web URL from an at:// record URI.
func blueskyWebURL(post *blueskyPostView) string {
	m := regexp.MustCompile(`at://([^/]+)/app\.bsky\.feed\.post/(.+)`).FindStringSubmatch(post.URI)
	if m == nil {
		return post.URI
	}

	handle := post.Author.Handle
	if handle == "" {
		handle = m[1]
	}

	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, m[2])
}
