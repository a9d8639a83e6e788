package extract

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/htmlutils"
)

// shortTextLimit is the rough cutoff beyond which a post no longer fits a
// single chat message and must be published long-form.
const shortTextLimit = 600

func decideMessageType(text string) domain.MessageType {
	if len([]rune(text)) > shortTextLimit {
		return domain.MessageTypeLong
	}

	return domain.MessageTypeShort
}

// parseTimePtr parses a timestamp in whatever format the upstream uses.
func parseTimePtr(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}

	return &t
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

// textToContent wraps plain text paragraphs into a minimal HTML rendering
// for extractors whose upstream has no HTML form.
func textToContent(text string) string {
	paragraphs := strings.Split(strings.TrimSpace(text), "\n")

	var sb strings.Builder

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		sb.WriteString("<p>")
		sb.WriteString(p)
		sb.WriteString("</p>")
	}

	return sb.String()
}

// contentToText renders HTML content down to the plain text form used for a
// single chat message.
func contentToText(content string) string {
	return strings.TrimSpace(htmlutils.StripHTMLTags(content))
}
