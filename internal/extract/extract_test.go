package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
)

func testFetcher() *Fetcher {
	return NewFetcher(5 * time.Second)
}

func TestRegistryGet(t *testing.T) {
	logger := zerolog.Nop()
	registry := NewRegistry(&config.Config{GeneralScraping: true}, testFetcher(), nil, &logger)

	tests := []struct {
		source  domain.Source
		want    any
		wantErr error
	}{
		{source: domain.SourceTwitter, want: &twitterExtractor{}},
		{source: domain.SourceWeibo, want: &weiboExtractor{}},
		{source: domain.SourceZhihu, want: &zhihuExtractor{}},
		{source: domain.SourceDouban, want: &doubanExtractor{}},
		{source: domain.SourceThreads, want: &metaCardExtractor{}},
		{source: domain.SourceInstagram, want: &metaCardExtractor{}},
		{source: domain.SourceXiaohongshu, want: &metaCardExtractor{}},
		{source: domain.SourceReddit, want: &redditExtractor{}},
		{source: domain.SourceBluesky, want: &blueskyExtractor{}},
		{source: domain.SourceWechat, want: &wechatExtractor{}},
		{source: domain.SourceYoutube, want: &videoExtractor{}},
		{source: domain.SourceBilibili, want: &videoExtractor{}},
		{source: domain.SourceGeneric, want: &genericExtractor{}},
		{source: domain.SourceUnknown, wantErr: ErrNoExtractor},
		{source: domain.SourceBanned, wantErr: ErrNoExtractor},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			extractor, err := registry.Get(tt.source)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.IsType(t, tt.want, extractor)
		})
	}
}

func TestRegistryGenericGatedByConfig(t *testing.T) {
	logger := zerolog.Nop()
	registry := NewRegistry(&config.Config{}, testFetcher(), nil, &logger)

	_, err := registry.Get(domain.SourceGeneric)
	require.ErrorIs(t, err, ErrNoExtractor)
}

func TestGenericExtractor(t *testing.T) {
	const page = `<!DOCTYPE html>
<html><head><title>Why Go modules work</title></head>
<body><article>
<h1>Why Go modules work</h1>
<p>Module resolution builds on minimal version selection, a deliberately
boring algorithm that picks the oldest allowed version of every dependency
rather than the newest. This makes builds reproducible without lockfiles.</p>
<p>The consequence is that adding a requirement can only move versions
forward, never silently backward, and upgrades stay explicit decisions made
by the module author rather than side effects of a fresh clone.</p>
</article></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	e := &genericExtractor{fetcher: testFetcher()}

	item, err := e.Extract(context.Background(), server.URL, domain.Options{})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceGeneric, item.Category)
	assert.Contains(t, item.Title, "Why Go modules work")
	assert.Contains(t, item.Text, "minimal version selection")
	assert.Equal(t, domain.MessageTypeShort, item.MessageType)
}

func TestGenericExtractorHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := &genericExtractor{fetcher: testFetcher()}

	_, err := e.Extract(context.Background(), server.URL, domain.Options{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrHTTPStatusNotOK)

	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, domain.SourceGeneric, extractionErr.Source)
}

func TestWechatExtractorAlwaysLong(t *testing.T) {
	const page = `<html><head>
<meta property="og:image" content="https://mmbiz.example/cover.jpg">
</head><body>
<h1 id="activity-name"> A field report </h1>
<a id="js_name"> Some Account </a>
<div id="js_content"><p>Short body.</p>
<img data-src="https://mmbiz.example/fig1.jpg"></div>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	e := &wechatExtractor{fetcher: testFetcher()}

	item, err := e.Extract(context.Background(), server.URL, domain.Options{})
	require.NoError(t, err)

	assert.Equal(t, "A field report", item.Title)
	assert.Equal(t, "Some Account", item.Author)
	assert.Equal(t, domain.MessageTypeLong, item.MessageType)
	assert.Contains(t, item.Content, `src="https://mmbiz.example/fig1.jpg"`)
	require.Len(t, item.MediaFiles, 1)
	assert.Equal(t, "https://mmbiz.example/cover.jpg", item.MediaFiles[0].URL)
}

func TestMetaCardExtractor(t *testing.T) {
	const page = `<html><head>
<meta property="og:title" content="Ada L. (@ada) on Threads">
<meta property="og:description" content="shipping is a feature">
<meta property="og:image" content="https://cdn.example/post.jpg">
</head><body></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	e := &metaCardExtractor{fetcher: testFetcher(), source: domain.SourceThreads}

	item, err := e.Extract(context.Background(), server.URL, domain.Options{})
	require.NoError(t, err)

	assert.Equal(t, "ada", item.Author)
	assert.Equal(t, "shipping is a feature", item.Text)
	require.Len(t, item.MediaFiles, 1)
	assert.Equal(t, domain.MediaTypeImage, item.MediaFiles[0].MediaType)
}

func TestCardAuthor(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Ada L. (@ada) on Threads", "ada"},
		{"ada on Instagram: \"caption\"", "ada"},
		{"no marker here", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cardAuthor(tt.title), tt.title)
	}
}

func TestTweetQuoteBecomesParent(t *testing.T) {
	var quote fxTweet
	require.NoError(t, json.Unmarshal([]byte(`{
		"url": "https://x.com/orig/status/1",
		"text": "the original take",
		"author": {"screen_name": "orig"},
		"media": {"photos": [{"url": "https://pbs.example/parent.jpg"}]}
	}`), &quote))

	item := tweetToItem(&fxTweet{Text: "my reply"}, "https://x.com/me/status/2")
	item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
		MediaType: domain.MediaTypeImage,
		URL:       "https://pbs.example/reply.jpg",
	})
	item.Parent = tweetToItem(&quote, quote.URL)

	flat := item.FlattenForShaping()

	require.Len(t, flat.MediaFiles, 2)
	assert.Equal(t, "https://pbs.example/reply.jpg", flat.MediaFiles[0].URL)
	assert.Equal(t, "https://pbs.example/parent.jpg", flat.MediaFiles[1].URL)
	assert.Contains(t, flat.Text, "> orig: the original take")
}

func TestBlueskySessionAuth(t *testing.T) {
	var threadAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "clip.bsky.social", creds["identifier"])
			assert.Equal(t, "app-pass", creds["password"])

			w.Write([]byte(`{"accessJwt":"jwt-1"}`))
		case "/xrpc/app.bsky.feed.getPostThread":
			threadAuth = r.Header.Get("Authorization")

			w.Write([]byte(`{"thread":{"post":{
				"uri": "at://did:plc:x/app.bsky.feed.post/3k",
				"author": {"handle": "ada.bsky.social", "displayName": "Ada"},
				"record": {"text": "hello sky"}
			}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	e := &blueskyExtractor{
		fetcher:  testFetcher(),
		handle:   "clip.bsky.social",
		password: "app-pass",
		pds:      server.URL,
	}

	item, err := e.Extract(context.Background(), "https://bsky.app/profile/ada.bsky.social/post/3k", domain.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Bearer jwt-1", threadAuth)
	assert.Equal(t, "hello sky", item.Text)
	assert.Equal(t, "ada.bsky.social", item.Author)
}

func TestRedditOAuthToken(t *testing.T) {
	var listingAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "client-1", user)
			assert.Equal(t, "secret-1", pass)

			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

			w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer"}`))
		case "/r/golang/comments/1/post.json":
			listingAuth = r.Header.Get("Authorization")

			w.Write([]byte(`[{"data":{"children":[{"data":{
				"title": "A post", "selftext": "body", "author": "ada",
				"subreddit_name_prefixed": "r/golang", "ups": 7, "num_comments": 2
			}}]}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	e := &redditExtractor{
		fetcher:      testFetcher(),
		clientID:     "client-1",
		clientSecret: "secret-1",
		tokenURL:     server.URL + "/api/v1/access_token",
		oauthBase:    server.URL,
	}

	item, err := e.Extract(context.Background(), "https://www.reddit.com/r/golang/comments/1/post/", domain.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", listingAuth)
	assert.Equal(t, "A post", item.Title)
	assert.Equal(t, int64(7), item.Stats["upvotes"])
}

func TestDecideMessageType(t *testing.T) {
	assert.Equal(t, domain.MessageTypeShort, decideMessageType("brief"))
	assert.Equal(t, domain.MessageTypeLong, decideMessageType(strings.Repeat("x", shortTextLimit+1)))
}

func TestTextToContent(t *testing.T) {
	got := textToContent("first line\n\nsecond line\n")
	assert.Equal(t, "<p>first line</p><p>second line</p>", got)
}
