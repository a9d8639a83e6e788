package htmlutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortMessageHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraph endings become newlines",
			in:   "<p>first</p><p>second</p>",
			want: "first\nsecond",
		},
		{
			name: "br dropped and wrappers unwrapped",
			in:   "<div><span>a</span><br>b</div>",
			want: "ab",
		},
		{
			name: "list items get newlines",
			in:   "<ul><li>one</li><li>two</li></ul>",
			want: "one\ntwo",
		},
		{
			name: "safelist tags survive",
			in:   "<p><b>bold</b> and <a href=\"https://e.com\">link</a></p>",
			want: "<b>bold</b> and <a href=\"https://e.com\">link</a>",
		},
		{
			name: "h2 unwrapped",
			in:   "<h2>Heading</h2><p>body</p>",
			want: "Heading\nbody",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortMessageHTML(tt.in))
		})
	}
}

func TestSanitizeHTMLStripsDangerousHref(t *testing.T) {
	got := SanitizeHTML(`<a href="javascript:alert(1)">x</a>`)
	assert.Equal(t, "<a>x</a>", got)
}

func TestTextContentLength(t *testing.T) {
	assert.Equal(t, 5, TextContentLength("<p>he<span>l</span>lo</p>"))
	// Counted in runes, not bytes.
	assert.Equal(t, 2, TextContentLength("<p>你好</p>"))
}

func TestAbsolutizeImageSrc(t *testing.T) {
	in := `<img src="/pic/a.jpg"><img src="https://cdn.example.com/b.jpg">`
	got := AbsolutizeImageSrc(in, "https://site.example.com/post/1")

	assert.Contains(t, got, `src="https://site.example.com/pic/a.jpg"`)
	assert.Contains(t, got, `src="https://cdn.example.com/b.jpg"`)
}
