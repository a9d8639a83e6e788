package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// wechatExtractor scrapes official-account articles. They are always
// long-form; the chat message only ever carries the headline and a snapshot
// link.
type wechatExtractor struct {
	fetcher *Fetcher
}

func (e *wechatExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	body, err := e.fetcher.Get(ctx, rawURL, FetchOptions{})
	if err != nil {
		return nil, wrapErr(domain.SourceWechat, rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(domain.SourceWechat, rawURL, err)
	}

	title := strings.TrimSpace(doc.Find("#activity-name").First().Text())
	author := strings.TrimSpace(doc.Find("#js_name").First().Text())

	contentSel := doc.Find("#js_content").First()
	if contentSel.Length() == 0 {
		return nil, wrapErr(domain.SourceWechat, rawURL, ErrEmptyContent)
	}

	// Article images load lazily; the real source sits in data-src.
	contentSel.Find("img[data-src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("data-src"); ok {
			sel.SetAttr("src", src)
		}
	})

	content, err := contentSel.Html()
	if err != nil {
		return nil, wrapErr(domain.SourceWechat, rawURL, err)
	}

	if strings.TrimSpace(contentToText(content)) == "" {
		return nil, wrapErr(domain.SourceWechat, rawURL, ErrEmptyContent)
	}

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       title,
		Author:      author,
		Text:        contentToText(content),
		Content:     content,
		Category:    domain.SourceWechat,
		MessageType: domain.MessageTypeLong,
	}

	if cover := metaContent(doc, "og:image"); cover != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       cover,
		})
	}

	return item, nil
}
