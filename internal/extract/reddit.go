package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// redditExtractor reads posts through the .json listing endpoint. With API
// credentials configured it fetches an application-only OAuth token and
// reads through the OAuth host, which is exempt from the aggressive
// throttling on the public mirror; otherwise it reads the public endpoint.
type redditExtractor struct {
	fetcher      *Fetcher
	clientID     string
	clientSecret string

	// tokenURL and oauthBase default to the reddit hosts; tests point them
	// at a local server.
	tokenURL  string
	oauthBase string
}

const (
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"
	redditOAuthBase = "https://oauth.reddit.com"
)

type redditPost struct {
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	Author       string  `json:"author"`
	Subreddit    string  `json:"subreddit_name_prefixed"`
	Ups          int64   `json:"ups"`
	NumComments  int64   `json:"num_comments"`
	CreatedUTC   float64 `json:"created_utc"`
	PostHint     string  `json:"post_hint"`
	URLOverride  string  `json:"url_overridden_by_dest"`
	IsVideo      bool    `json:"is_video"`
	Media        *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
	Preview *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]struct {
		S struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (e *redditExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapErr(domain.SourceReddit, rawURL, err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + ".json"
	u.RawQuery = ""

	listingURL := u.String()

	var auth string

	if e.clientID != "" && e.clientSecret != "" {
		token, err := e.accessToken(ctx)
		if err != nil {
			return nil, wrapErr(domain.SourceReddit, rawURL, err)
		}

		base := e.oauthBase
		if base == "" {
			base = redditOAuthBase
		}

		listingURL = base + u.Path
		auth = "Bearer " + token
	}

	body, err := e.fetcher.Get(ctx, listingURL, FetchOptions{Accept: "application/json", Authorization: auth})
	if err != nil {
		return nil, wrapErr(domain.SourceReddit, rawURL, err)
	}

	// The endpoint returns [postListing, commentListing].
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, wrapErr(domain.SourceReddit, rawURL, err)
	}

	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, wrapErr(domain.SourceReddit, rawURL, ErrEmptyContent)
	}

	post := listings[0].Data.Children[0].Data

	content := html.UnescapeString(post.SelftextHTML)
	if content == "" {
		content = textToContent(post.Selftext)
	}

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       post.Title,
		Author:      post.Author,
		AuthorURL:   "https://www.reddit.com/user/" + post.Author,
		Text:        post.Selftext,
		Content:     content,
		Category:    domain.SourceReddit,
		MessageType: decideMessageType(post.Selftext),
		Stats: map[string]int64{
			"upvotes":  post.Ups,
			"comments": post.NumComments,
		},
	}

	if post.CreatedUTC > 0 {
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		item.CreatedAt = &created
	}

	e.attachMedia(item, &post)

	return item, nil
}

// accessToken runs the application-only grant with the configured API
// credentials.
func (e *redditExtractor) accessToken(ctx context.Context) (string, error) {
	tokenURL := e.tokenURL
	if tokenURL == "" {
		tokenURL = redditTokenURL
	}

	form := url.Values{"grant_type": {"client_credentials"}}

	body, err := e.fetcher.Post(ctx, tokenURL, "application/x-www-form-urlencoded",
		[]byte(form.Encode()), FetchOptions{
			Accept:    "application/json",
			BasicUser: e.clientID,
			BasicPass: e.clientSecret,
		})
	if err != nil {
		return "", fmt.Errorf("reddit token grant: %w", err)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
	}

	if err := json.Unmarshal(body, &grant); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	if grant.AccessToken == "" {
		return "", fmt.Errorf("%w: token response without access_token", ErrEmptyContent)
	}

	return grant.AccessToken, nil
}

func (e *redditExtractor) attachMedia(item *domain.ExtractedItem, post *redditPost) {
	if post.IsVideo && post.Media != nil && post.Media.RedditVideo != nil {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeVideo,
			URL:       post.Media.RedditVideo.FallbackURL,
		})

		return
	}

	// Gallery posts keep their image order in gallery_data, not in the
	// metadata map.
	if post.GalleryData != nil {
		for _, entry := range post.GalleryData.Items {
			meta, ok := post.MediaMetadata[entry.MediaID]
			if !ok || meta.S.U == "" {
				continue
			}

			item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
				MediaType: domain.MediaTypeImage,
				URL:       html.UnescapeString(meta.S.U),
			})
		}

		return
	}

	if post.PostHint == "image" && post.URLOverride != "" {
		mediaType := domain.MediaTypeImage
		if strings.HasSuffix(post.URLOverride, ".gif") {
			mediaType = domain.MediaTypeGif
		}

		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: mediaType,
			URL:       post.URLOverride,
		})

		return
	}

	if post.Preview != nil && len(post.Preview.Images) > 0 {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       html.UnescapeString(post.Preview.Images[0].Source.URL),
		})
	}
}
