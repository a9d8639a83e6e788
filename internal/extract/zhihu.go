package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// zhihuExtractor scrapes answer and column pages. Zhihu serves a login wall
// to anonymous clients, so the configured cookie is effectively required.
type zhihuExtractor struct {
	fetcher *Fetcher
	cookie  string
}

func (e *zhihuExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	body, err := e.fetcher.Get(ctx, rawURL, FetchOptions{Cookie: e.cookie})
	if err != nil {
		return nil, wrapErr(domain.SourceZhihu, rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(domain.SourceZhihu, rawURL, err)
	}

	title := strings.TrimSpace(doc.Find("h1.QuestionHeader-title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1.Post-Title").First().Text())
	}

	// Answer pages and column articles carry different containers; the
	// first non-empty one wins.
	content := firstInnerHTML(doc,
		".QuestionAnswer-content .RichContent-inner",
		".Post-RichTextContainer",
		".RichContent-inner",
	)
	if content == "" {
		return nil, wrapErr(domain.SourceZhihu, rawURL, ErrEmptyContent)
	}

	author := strings.TrimSpace(doc.Find(".AuthorInfo-name a").First().Text())
	authorURL, _ := doc.Find(".AuthorInfo-name a").First().Attr("href")
	if strings.HasPrefix(authorURL, "//") {
		authorURL = "https:" + authorURL
	}

	text := contentToText(content)

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       title,
		Author:      author,
		AuthorURL:   authorURL,
		Text:        text,
		Content:     content,
		Category:    domain.SourceZhihu,
		MessageType: decideMessageType(text),
	}

	doc.Find(".RichContent-inner img[data-original]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("data-original"); ok && src != "" {
			item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
				MediaType: domain.MediaTypeImage,
				URL:       src,
			})
		}
	})

	return item, nil
}

func firstInnerHTML(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}

		html, err := sel.Html()
		if err != nil {
			continue
		}

		if strings.TrimSpace(html) != "" {
			return html
		}
	}

	return ""
}
