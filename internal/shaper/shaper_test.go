package shaper

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/config"
)

func testShaper() *Shaper {
	return New(&config.Config{
		Locale:              "en",
		ImageDimensionLimit: 1600,
		ImageSizeLimit:      5 << 20,
		MaxFileSize:         50 << 20,
	})
}

func shortItem() *domain.ExtractedItem {
	return &domain.ExtractedItem{
		URL:         "https://example.com/post/1",
		Title:       "Ada",
		Author:      "ada",
		AuthorURL:   "https://example.com/ada",
		Text:        "shipping is a feature",
		Content:     "<p>shipping is a feature</p>",
		MessageType: domain.MessageTypeShort,
		Stats:       map[string]int64{"likes": 12, "replies": 3},
	}
}

func TestShapeTextOnly(t *testing.T) {
	actions := testShaper().Shape(shortItem())

	require.Len(t, actions, 1)
	assert.Equal(t, ActionText, actions[0].Kind)
	assert.Contains(t, actions[0].Text, "<b>Ada</b>")
	assert.Contains(t, actions[0].Text, "shipping is a feature")
	assert.Contains(t, actions[0].Text, `<a href="https://example.com/post/1">Original webpage</a>`)
	assert.Contains(t, actions[0].Text, "likes 12")
	assert.Contains(t, actions[0].Text, "replies 3")
}

func TestShapeLongItemOmitsBody(t *testing.T) {
	item := shortItem()
	item.MessageType = domain.MessageTypeLong
	item.TelegraphURL = "https://telegra.ph/p-1"

	actions := testShaper().Shape(item)

	require.Len(t, actions, 1)
	assert.NotContains(t, actions[0].Text, "shipping is a feature")
	assert.Contains(t, actions[0].Text, `<a href="https://telegra.ph/p-1">Online snapshot</a>`)
}

func TestShapeSplitsMediaGroups(t *testing.T) {
	item := shortItem()
	for i := 0; i < 23; i++ {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       fmt.Sprintf("https://cdn.example/%d.jpg", i),
		})
	}

	actions := testShaper().Shape(item)

	require.Len(t, actions, 3)
	assert.Len(t, actions[0].Media, 10)
	assert.Len(t, actions[1].Media, 10)
	assert.Len(t, actions[2].Media, 3)

	// Caption rides the first group only; later groups are numbered.
	assert.Contains(t, actions[0].Text, "<b>Ada</b>")
	assert.Equal(t, "part 2 of the media", actions[1].Text)
	assert.Equal(t, "part 3 of the media", actions[2].Text)

	// Media order is preserved across the split.
	assert.Equal(t, "https://cdn.example/0.jpg", actions[0].Media[0].URL)
	assert.Equal(t, "https://cdn.example/22.jpg", actions[2].Media[2].URL)
}

func TestShapeRoutesSpecialMedia(t *testing.T) {
	item := shortItem()
	item.MediaFiles = []domain.MediaFile{
		{MediaType: domain.MediaTypeImage, URL: "https://cdn.example/a.jpg"},
		{MediaType: domain.MediaTypeGif, URL: "https://cdn.example/b.gif"},
		{MediaType: domain.MediaTypeDocument, URL: "/tmp/report.pdf"},
		{MediaType: domain.MediaTypeAudio, URL: "/tmp/talk.m4a"},
	}

	actions := testShaper().Shape(item)

	require.Len(t, actions, 4)
	assert.Equal(t, ActionMediaGroup, actions[0].Kind)
	assert.Equal(t, ActionAnimation, actions[1].Kind)
	assert.Equal(t, ActionFileGroup, actions[2].Kind)
	assert.Equal(t, ActionAudio, actions[3].Kind)
}

func TestShapeFlattensParent(t *testing.T) {
	item := shortItem()
	item.MediaFiles = []domain.MediaFile{{MediaType: domain.MediaTypeImage, URL: "https://cdn.example/reply.jpg"}}
	item.Parent = &domain.ExtractedItem{
		Author:     "orig",
		Text:       "the original",
		MediaFiles: []domain.MediaFile{{MediaType: domain.MediaTypeImage, URL: "https://cdn.example/parent.jpg"}},
	}

	actions := testShaper().Shape(item)

	require.Len(t, actions, 1)
	require.Len(t, actions[0].Media, 2)
	assert.Equal(t, "https://cdn.example/reply.jpg", actions[0].Media[0].URL)
	assert.Equal(t, "https://cdn.example/parent.jpg", actions[0].Media[1].URL)
}

func TestTruncateCaption(t *testing.T) {
	long := strings.Repeat("x", captionLimit+50)
	got := truncateCaption(long)

	assert.Equal(t, captionLimit, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestLocalizerChinese(t *testing.T) {
	loc := NewLocalizer("zh")

	assert.Equal(t, "在线快照", loc.Sprintf("Online snapshot"))
	assert.Equal(t, "媒体第 2 部分", loc.Sprintf("part %d of the media", 2))
}

func TestLocalizerFallsBackToEnglish(t *testing.T) {
	loc := NewLocalizer("not-a-locale")

	assert.Equal(t, "Online snapshot", loc.Sprintf("Online snapshot"))
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))

	return buf.Bytes()
}

func TestDownscaleImage(t *testing.T) {
	data, err := DownscaleImage(encodePNG(t, 3200, 1600), 1600)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 800, cfg.Height)
}

func TestDownscaleImageKeepsSmallImages(t *testing.T) {
	original := encodePNG(t, 400, 300)

	data, err := DownscaleImage(original, 1600)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestExtremeAspectRatio(t *testing.T) {
	assert.True(t, ExtremeAspectRatio(encodePNG(t, 5000, 500)))
	assert.True(t, ExtremeAspectRatio(encodePNG(t, 500, 5000)))
	assert.False(t, ExtremeAspectRatio(encodePNG(t, 3200, 1600)))
	assert.False(t, ExtremeAspectRatio(make([]byte, 10)))
}

func TestFitsPhotoLimits(t *testing.T) {
	assert.True(t, FitsPhotoLimits(encodePNG(t, 400, 300), 1600, 5<<20))
	assert.False(t, FitsPhotoLimits(encodePNG(t, 2000, 100), 1600, 5<<20))
	assert.False(t, FitsPhotoLimits(make([]byte, 10), 1600, 5))
}
