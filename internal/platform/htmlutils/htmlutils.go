// Package htmlutils holds the HTML shaping helpers shared by the shaper and
// the post-processor chain.
package htmlutils

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

var tagRegex = regexp.MustCompile(`<(/?)([a-zA-Z0-9-]+)([^>]*)>`)
var hrefRegex = regexp.MustCompile(`(?i)\s*href\s*=\s*["']([^"']*)["']`)

// allowedTags is the Telegram message safelist.
var allowedTags = map[string]bool{
	"b":          true,
	"i":          true,
	"u":          true,
	"s":          true,
	"code":       true,
	"pre":        true,
	"a":          true,
	"blockquote": true,
	"tg-spoiler": true,
}

var dangerousProtocols = []string{
	"javascript:",
	"vbscript:",
	"data:",
}

// unwrapTags are removed entirely while keeping their content when shaping a
// short message out of full article HTML.
var unwrapTags = map[string]bool{
	"span":       true,
	"div":        true,
	"blockquote": true,
	"h2":         true,
	"ol":         true,
	"ul":         true,
}

// ShortMessageHTML converts full content HTML into the reduced form used for
// short chat messages: <br> dropped, wrapper tags unwrapped, paragraph and
// list-item endings turned into newlines, everything else sanitized down to
// the Telegram safelist.
func ShortMessageHTML(content string) string {
	var sb strings.Builder

	indices := tagRegex.FindAllStringIndex(content, -1)
	lastPos := 0

	for _, idx := range indices {
		if idx[0] > lastPos {
			sb.WriteString(content[lastPos:idx[0]])
		}

		tag := content[idx[0]:idx[1]]
		matches := tagRegex.FindStringSubmatch(tag)
		lastPos = idx[1]

		if len(matches) < 3 {
			continue
		}

		closing := matches[1] == "/"
		name := strings.ToLower(matches[2])

		switch {
		case name == "br":
			// dropped
		case name == "p" || name == "li":
			if closing {
				sb.WriteString("\n")
			}
		case unwrapTags[name]:
			// unwrapped, content kept
		default:
			sb.WriteString(tag)
		}
	}

	if lastPos < len(content) {
		sb.WriteString(content[lastPos:])
	}

	return strings.TrimSpace(SanitizeHTML(sb.String()))
}

// SanitizeHTML keeps only Telegram-supported tags and escapes the rest.
// For <a> tags only a safe href attribute survives.
func SanitizeHTML(text string) string {
	var sb strings.Builder

	indices := tagRegex.FindAllStringIndex(text, -1)
	lastPos := 0

	for _, idx := range indices {
		if idx[0] > lastPos {
			sb.WriteString(html.EscapeString(text[lastPos:idx[0]]))
		}

		tag := text[idx[0]:idx[1]]

		matches := tagRegex.FindStringSubmatch(tag)
		if len(matches) >= 3 {
			tagName := strings.ToLower(matches[2])
			if allowedTags[tagName] {
				if tagName == "a" && matches[1] != "/" {
					sb.WriteString(sanitizeAnchorTag(tag))
				} else {
					sb.WriteString(tag)
				}
			}
		}

		lastPos = idx[1]
	}

	if lastPos < len(text) {
		sb.WriteString(html.EscapeString(text[lastPos:]))
	}

	return sb.String()
}

func sanitizeAnchorTag(tag string) string {
	hrefMatch := hrefRegex.FindStringSubmatch(tag)
	if hrefMatch == nil {
		return "<a>"
	}

	href := hrefMatch[1]
	hrefLower := strings.ToLower(strings.TrimSpace(href))

	for _, proto := range dangerousProtocols {
		if strings.HasPrefix(hrefLower, proto) {
			return "<a>"
		}
	}

	return `<a href="` + html.EscapeString(href) + `">`
}

// StripHTMLTags returns the plain text content of an HTML fragment.
func StripHTMLTags(content string) string {
	node, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return tagRegex.ReplaceAllString(content, "")
	}

	var sb strings.Builder

	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)

	return sb.String()
}

// TextContentLength counts the runes of the text content of an HTML
// fragment, not the raw string length.
func TextContentLength(content string) int {
	return len([]rune(StripHTMLTags(content)))
}

// AbsolutizeImageSrc rewrites every <img src> in the fragment to an absolute
// URL resolved against base. Fragments that fail to parse come back as-is.
func AbsolutizeImageSrc(content, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return content
	}

	return imgSrcRegex.ReplaceAllStringFunc(content, func(tag string) string {
		m := imgSrcRegex.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}

		src, err := url.Parse(m[2])
		if err != nil || src.IsAbs() {
			return tag
		}

		return m[1] + baseURL.ResolveReference(src).String() + m[3]
	})
}

var imgSrcRegex = regexp.MustCompile(`(?i)(<img[^>]*\bsrc\s*=\s*["'])([^"']+)(["'])`)
