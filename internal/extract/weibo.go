package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// weiboExtractor reads statuses through the mobile JSON endpoint. The
// configured cookie unlocks login-walled posts.
type weiboExtractor struct {
	fetcher *Fetcher
	cookie  string
}

var weiboIDRegex = regexp.MustCompile(`/(?:status(?:es)?/)?([A-Za-z0-9]+)/?$`)

type weiboStatus struct {
	Text           string `json:"text"` // HTML fragment
	CreatedAt      string `json:"created_at"`
	RepostsCount   int64  `json:"reposts_count"`
	CommentsCount  int64  `json:"comments_count"`
	AttitudesCount int64  `json:"attitudes_count"`
	User           struct {
		ScreenName string `json:"screen_name"`
		ProfileURL string `json:"profile_url"`
	} `json:"user"`
	Pics []struct {
		Large struct {
			URL string `json:"url"`
		} `json:"large"`
	} `json:"pics"`
	PageInfo *struct {
		Type      string `json:"type"`
		MediaInfo struct {
			StreamURL string `json:"stream_url"`
		} `json:"media_info"`
	} `json:"page_info"`
	RetweetedStatus *weiboStatus `json:"retweeted_status"`
}

type weiboShowResponse struct {
	OK   int         `json:"ok"`
	Data weiboStatus `json:"data"`
}

func (e *weiboExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	m := weiboIDRegex.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, wrapErr(domain.SourceWeibo, rawURL, fmt.Errorf("%w: no status id in URL", ErrEmptyContent))
	}

	apiURL := "https://m.weibo.cn/statuses/show?id=" + m[1]

	body, err := e.fetcher.Get(ctx, apiURL, FetchOptions{
		Cookie:  e.cookie,
		Referer: RefererFor(domain.SourceWeibo),
		Accept:  "application/json",
	})
	if err != nil {
		return nil, wrapErr(domain.SourceWeibo, rawURL, err)
	}

	var resp weiboShowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapErr(domain.SourceWeibo, rawURL, err)
	}

	if resp.OK != 1 {
		return nil, wrapErr(domain.SourceWeibo, rawURL, ErrEmptyContent)
	}

	item := weiboToItem(&resp.Data, rawURL)

	if resp.Data.RetweetedStatus != nil {
		item.Parent = weiboToItem(resp.Data.RetweetedStatus, rawURL)
	}

	return item, nil
}

func weiboToItem(status *weiboStatus, rawURL string) *domain.ExtractedItem {
	text := contentToText(status.Text)

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       status.User.ScreenName,
		Author:      status.User.ScreenName,
		AuthorURL:   status.User.ProfileURL,
		Text:        text,
		Content:     status.Text,
		Category:    domain.SourceWeibo,
		MessageType: decideMessageType(text),
		CreatedAt:   parseTimePtr(status.CreatedAt),
		Stats: map[string]int64{
			"reposts":   status.RepostsCount,
			"comments":  status.CommentsCount,
			"attitudes": status.AttitudesCount,
		},
	}

	for _, pic := range status.Pics {
		mediaType := domain.MediaTypeImage
		if len(pic.Large.URL) > 4 && pic.Large.URL[len(pic.Large.URL)-4:] == ".gif" {
			mediaType = domain.MediaTypeGif
		}

		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: mediaType,
			URL:       pic.Large.URL,
		})
	}

	if status.PageInfo != nil && status.PageInfo.Type == "video" && status.PageInfo.MediaInfo.StreamURL != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeVideo,
			URL:       status.PageInfo.MediaInfo.StreamURL,
		})
	}

	return item
}
