package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// twitterExtractor reads tweets through the fxtwitter JSON mirror, which
// serves the public tweet shape without an authenticated session. The
// configured cookie is forwarded when present to reach age-gated posts.
type twitterExtractor struct {
	fetcher *Fetcher
	cookie  string
}

var tweetPathRegex = regexp.MustCompile(`/([^/]+)/status/(\d+)`)

type fxTweet struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Replies   int64  `json:"replies"`
	Retweets  int64  `json:"retweets"`
	Likes     int64  `json:"likes"`
	Author    struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		URL        string `json:"url"`
	} `json:"author"`
	Media *struct {
		Photos []struct {
			URL string `json:"url"`
		} `json:"photos"`
		Videos []struct {
			URL    string `json:"url"`
			Format string `json:"format"`
		} `json:"videos"`
	} `json:"media"`
	Quote *fxTweet `json:"quote"`
}

type fxResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Tweet   *fxTweet `json:"tweet"`
}

func (e *twitterExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapErr(domain.SourceTwitter, rawURL, err)
	}

	m := tweetPathRegex.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, wrapErr(domain.SourceTwitter, rawURL, fmt.Errorf("%w: not a status URL", ErrEmptyContent))
	}

	apiURL := fmt.Sprintf("https://api.fxtwitter.com/%s/status/%s", m[1], m[2])

	body, err := e.fetcher.Get(ctx, apiURL, FetchOptions{Cookie: e.cookie, Accept: "application/json"})
	if err != nil {
		return nil, wrapErr(domain.SourceTwitter, rawURL, err)
	}

	var resp fxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapErr(domain.SourceTwitter, rawURL, err)
	}

	if resp.Tweet == nil {
		return nil, wrapErr(domain.SourceTwitter, rawURL, fmt.Errorf("%w: %s", ErrEmptyContent, resp.Message))
	}

	item := tweetToItem(resp.Tweet, rawURL)

	// A quoted tweet becomes the parent; its media follow the base media
	// after flattening.
	if resp.Tweet.Quote != nil {
		item.Parent = tweetToItem(resp.Tweet.Quote, resp.Tweet.Quote.URL)
	}

	return item, nil
}

func tweetToItem(tweet *fxTweet, rawURL string) *domain.ExtractedItem {
	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       tweet.Author.Name,
		Author:      tweet.Author.ScreenName,
		AuthorURL:   tweet.Author.URL,
		Text:        tweet.Text,
		Content:     textToContent(tweet.Text),
		Category:    domain.SourceTwitter,
		MessageType: decideMessageType(tweet.Text),
		CreatedAt:   parseTimePtr(tweet.CreatedAt),
		Stats: map[string]int64{
			"replies":  tweet.Replies,
			"retweets": tweet.Retweets,
			"likes":    tweet.Likes,
		},
	}

	if tweet.Media == nil {
		return item
	}

	for _, photo := range tweet.Media.Photos {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       photo.URL,
		})
	}

	for _, video := range tweet.Media.Videos {
		mediaType := domain.MediaTypeVideo
		if video.Format == "gif" {
			mediaType = domain.MediaTypeGif
		}

		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: mediaType,
			URL:       video.URL,
		})
	}

	return item
}
