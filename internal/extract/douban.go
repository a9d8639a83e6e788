package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// doubanExtractor scrapes statuses, group topics and notes. Douban rejects
// requests without a same-site referer.
type doubanExtractor struct {
	fetcher *Fetcher
}

func (e *doubanExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	body, err := e.fetcher.Get(ctx, rawURL, FetchOptions{Referer: RefererFor(domain.SourceDouban)})
	if err != nil {
		return nil, wrapErr(domain.SourceDouban, rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(domain.SourceDouban, rawURL, err)
	}

	switch {
	case strings.Contains(rawURL, "/status/"):
		return e.statusItem(doc, rawURL)
	default:
		return e.articleItem(doc, rawURL)
	}
}

func (e *doubanExtractor) statusItem(doc *goquery.Document, rawURL string) (*domain.ExtractedItem, error) {
	status := doc.Find(".status-saying").First()

	text := strings.TrimSpace(status.Find("blockquote").Text())
	if text == "" {
		text = strings.TrimSpace(status.Text())
	}

	if text == "" {
		return nil, wrapErr(domain.SourceDouban, rawURL, ErrEmptyContent)
	}

	author := strings.TrimSpace(doc.Find(".status-item .hd a.lnk-people").First().Text())
	authorURL, _ := doc.Find(".status-item .hd a.lnk-people").First().Attr("href")

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       author,
		Author:      author,
		AuthorURL:   authorURL,
		Text:        text,
		Content:     textToContent(text),
		Category:    domain.SourceDouban,
		MessageType: decideMessageType(text),
	}

	doc.Find(".status-images img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			// Thumbnail URLs swap to the large rendition by path segment.
			src = strings.Replace(src, "/m/", "/l/", 1)
			item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
				MediaType: domain.MediaTypeImage,
				URL:       src,
			})
		}
	})

	return item, nil
}

func (e *doubanExtractor) articleItem(doc *goquery.Document, rawURL string) (*domain.ExtractedItem, error) {
	title := strings.TrimSpace(doc.Find("h1").First().Text())

	content := firstInnerHTML(doc, ".article .topic-richtext", ".note-container .note", "#link-report")
	if content == "" {
		return nil, wrapErr(domain.SourceDouban, rawURL, ErrEmptyContent)
	}

	author := strings.TrimSpace(doc.Find(".article .from a, .note-author").First().Text())
	authorURL, _ := doc.Find(".article .from a").First().Attr("href")

	text := contentToText(content)

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       title,
		Author:      author,
		AuthorURL:   authorURL,
		Text:        text,
		Content:     content,
		Category:    domain.SourceDouban,
		MessageType: decideMessageType(text),
	}

	doc.Find(".topic-richtext img, .note-container img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
				MediaType: domain.MediaTypeImage,
				URL:       src,
			})
		}
	})

	return item, nil
}
