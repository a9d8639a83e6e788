// Package shaper turns a finished item into the ordered list of platform
// send actions: a lead message or captioned media group, follow-up media
// groups, file groups for oversized attachments, and audio sends.
package shaper

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/htmlutils"
)

// Telegram caps media groups at ten entries and photo captions at 1024
// characters.
const (
	mediaGroupLimit = 10
	captionLimit    = 1024
)

// ActionKind tags one outbound send.
type ActionKind string

const (
	ActionText       ActionKind = "text"
	ActionMediaGroup ActionKind = "media_group"
	ActionFileGroup  ActionKind = "file_group"
	ActionAnimation  ActionKind = "animation"
	ActionAudio      ActionKind = "audio"
)

// SendAction is one platform call. Text carries the HTML body for text sends
// and the caption for media sends; the caption always rides the first
// element of a group.
type SendAction struct {
	Kind  ActionKind
	Text  string
	Media []domain.MediaFile
}

type Shaper struct {
	loc            *Localizer
	dimensionLimit int
	imageSizeLimit int64
	maxFileSize    int64
}

func New(cfg *config.Config) *Shaper {
	return &Shaper{
		loc:            NewLocalizer(cfg.Locale),
		dimensionLimit: cfg.ImageDimensionLimit,
		imageSizeLimit: cfg.ImageSizeLimit,
		maxFileSize:    cfg.MaxFileSize,
	}
}

// Shape flattens the item and builds its send actions. An item without media
// becomes a single text message; the caption otherwise rides the first media
// group, with later groups numbered.
func (s *Shaper) Shape(item *domain.ExtractedItem) []SendAction {
	flat := item.FlattenForShaping()
	caption := s.Caption(flat)

	groupable, files, animations, audios := partitionMedia(flat.MediaFiles)

	var actions []SendAction

	if len(groupable) == 0 {
		actions = append(actions, SendAction{Kind: ActionText, Text: caption})
	} else {
		groups := chunkMedia(groupable, mediaGroupLimit)
		for i, group := range groups {
			text := s.loc.Sprintf("part %d of the media", i+1)
			if i == 0 {
				text = truncateCaption(caption)
			}

			actions = append(actions, SendAction{Kind: ActionMediaGroup, Text: text, Media: group})
		}
	}

	for _, animation := range animations {
		actions = append(actions, SendAction{Kind: ActionAnimation, Media: []domain.MediaFile{animation}})
	}

	for _, group := range chunkMedia(files, mediaGroupLimit) {
		actions = append(actions, SendAction{Kind: ActionFileGroup, Media: group})
	}

	for _, audio := range audios {
		actions = append(actions, SendAction{Kind: ActionAudio, Media: []domain.MediaFile{audio}})
	}

	return actions
}

// Caption renders the item's message body: headline, body text for short
// items, the stat line and the snapshot and origin links.
func (s *Shaper) Caption(item *domain.ExtractedItem) string {
	var sb strings.Builder

	title := strings.TrimSpace(item.Title)
	if title != "" {
		sb.WriteString("<b>")
		sb.WriteString(html.EscapeString(title))
		sb.WriteString("</b>")
	}

	author := strings.TrimSpace(item.Author)
	if author != "" && author != title {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}

		if item.AuthorURL != "" {
			sb.WriteString(fmt.Sprintf(`(<a href="%s">%s</a>)`, html.EscapeString(item.AuthorURL), html.EscapeString(author)))
		} else {
			sb.WriteString("(" + html.EscapeString(author) + ")")
		}
	}

	if item.MessageType == domain.MessageTypeShort {
		body := htmlutils.ShortMessageHTML(item.Content)
		if body == "" {
			body = html.EscapeString(item.Text)
		}

		if body != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}

			sb.WriteString(body)
		}
	}

	if stats := s.statLine(item.Stats); stats != "" {
		sb.WriteString("\n\n")
		sb.WriteString(stats)
	}

	sb.WriteString("\n\n")
	sb.WriteString(s.linkLine(item))

	return strings.TrimSpace(sb.String())
}

func (s *Shaper) linkLine(item *domain.ExtractedItem) string {
	var links []string

	if item.TelegraphURL != "" {
		links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`, item.TelegraphURL, s.loc.Sprintf("Online snapshot")))
	}

	links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(item.URL), s.loc.Sprintf("Original webpage")))

	return strings.Join(links, " | ")
}

// statLine renders the counters in deterministic key order.
func (s *Shaper) statLine(stats map[string]int64) string {
	if len(stats) == 0 {
		return ""
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", s.loc.Sprintf(k), stats[k]))
	}

	return strings.Join(parts, " · ")
}

// partitionMedia splits attachments by how they are sent: images and videos
// group together, documents go out as file groups, gifs and audio each need
// their own call.
func partitionMedia(media []domain.MediaFile) (groupable, files, animations, audios []domain.MediaFile) {
	for _, m := range media {
		switch m.MediaType {
		case domain.MediaTypeImage, domain.MediaTypeVideo:
			groupable = append(groupable, m)
		case domain.MediaTypeGif:
			animations = append(animations, m)
		case domain.MediaTypeAudio:
			audios = append(audios, m)
		case domain.MediaTypeDocument:
			files = append(files, m)
		}
	}

	return groupable, files, animations, audios
}

func chunkMedia(media []domain.MediaFile, size int) [][]domain.MediaFile {
	var chunks [][]domain.MediaFile

	for len(media) > 0 {
		n := size
		if len(media) < n {
			n = len(media)
		}

		chunks = append(chunks, media[:n])
		media = media[n:]
	}

	return chunks
}

func truncateCaption(caption string) string {
	runes := []rune(caption)
	if len(runes) <= captionLimit {
		return caption
	}

	return string(runes[:captionLimit-1]) + "…"
}
