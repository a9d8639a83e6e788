package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// metaCardExtractor covers hosts that hide their content behind heavy client
// rendering but still publish Open Graph cards for link previews: Threads,
// Instagram and Xiaohongshu. The card carries the caption, the author and the
// lead media, which is all a chat forward needs.
type metaCardExtractor struct {
	fetcher *Fetcher
	source  domain.Source
	cookie  string
}

func (e *metaCardExtractor) Extract(ctx context.Context, rawURL string, _ domain.Options) (*domain.ExtractedItem, error) {
	body, err := e.fetcher.Get(ctx, rawURL, FetchOptions{
		Cookie:  e.cookie,
		Referer: RefererFor(e.source),
	})
	if err != nil {
		return nil, wrapErr(e.source, rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr(e.source, rawURL, err)
	}

	title := metaContent(doc, "og:title")
	description := metaContent(doc, "og:description")

	if title == "" && description == "" {
		return nil, wrapErr(e.source, rawURL, ErrEmptyContent)
	}

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       title,
		Author:      cardAuthor(title),
		Text:        description,
		Content:     textToContent(description),
		Category:    e.source,
		MessageType: decideMessageType(description),
	}

	if video := metaContent(doc, "og:video"); video != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeVideo,
			URL:       video,
		})
	} else if image := metaContent(doc, "og:image"); image != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       image,
		})
	}

	return item, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	if content == "" {
		content, _ = doc.Find(`meta[name="` + property + `"]`).First().Attr("content")
	}

	return strings.TrimSpace(content)
}

// cardAuthor pulls the handle out of card titles shaped like
// "Name (@handle) on Threads" or "Name on Instagram: ...".
func cardAuthor(title string) string {
	if open := strings.Index(title, "(@"); open >= 0 {
		if close := strings.Index(title[open:], ")"); close > 0 {
			return title[open+2 : open+close]
		}
	}

	if idx := strings.Index(title, " on "); idx > 0 {
		return title[:idx]
	}

	return ""
}
