package shaper

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Caption phrases by locale. The zh set mirrors the en keys one-to-one; a
// missing key falls back to the en text.
func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	entries := []struct {
		key string
		en  string
		zh  string
	}{
		{"Online snapshot", "Online snapshot", "在线快照"},
		{"Original webpage", "Original webpage", "原始网页"},
		{"part %d of the media", "part %d of the media", "媒体第 %d 部分"},
		{"Exported document", "Exported document", "导出文档"},
		{"views", "views", "播放"},
		{"likes", "likes", "点赞"},
		{"comments", "comments", "评论"},
		{"replies", "replies", "回复"},
		{"reposts", "reposts", "转发"},
		{"retweets", "retweets", "转推"},
		{"upvotes", "upvotes", "顶"},
		{"attitudes", "attitudes", "赞"},
	}

	for _, e := range entries {
		_ = b.SetString(language.English, e.key, e.en)
		_ = b.SetString(language.Chinese, e.key, e.zh)
	}

	return b
}

// Localizer renders caption phrases in the configured locale.
type Localizer struct {
	printer *message.Printer
}

func NewLocalizer(locale string) *Localizer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	return &Localizer{printer: message.NewPrinter(tag, message.Catalog(buildCatalog()))}
}

func (l *Localizer) Sprintf(key message.Reference, args ...any) string {
	return l.printer.Sprintf(key, args...)
}
