package domain

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemJSONRoundTrip(t *testing.T) {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	item := &ExtractedItem{
		URL:          "https://twitter.com/user/status/1",
		Title:        "A post",
		Author:       "user",
		AuthorURL:    "https://twitter.com/user",
		Text:         "hello",
		Content:      "<p>hello</p>",
		MediaFiles:   []MediaFile{{MediaType: MediaTypeImage, URL: "https://pbs.example/a.jpg"}},
		Category:     SourceTwitter,
		MessageType:  MessageTypeShort,
		TelegraphURL: "https://telegra.ph/a-post",
		CreatedAt:    &created,
		Stats:        map[string]int64{"likes": 12},
	}

	data, err := item.ToJSON()
	require.NoError(t, err)

	got, err := ItemFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestFlattenForShaping(t *testing.T) {
	item := &ExtractedItem{
		Text:       "commentary",
		Content:    "<p>commentary</p>",
		MediaFiles: []MediaFile{{MediaType: MediaTypeImage, URL: "reply.jpg"}},
		Parent: &ExtractedItem{
			Author:     "original",
			Text:       "the original post",
			Content:    "<p>the original post</p>",
			MediaFiles: []MediaFile{{MediaType: MediaTypeImage, URL: "parent.jpg"}},
		},
	}

	flat := item.FlattenForShaping()

	require.Nil(t, flat.Parent)
	require.Len(t, flat.MediaFiles, 2)
	// The quoted parent's media follow the base item's media.
	assert.Equal(t, "reply.jpg", flat.MediaFiles[0].URL)
	assert.Equal(t, "parent.jpg", flat.MediaFiles[1].URL)
	assert.Contains(t, flat.Text, "original: the original post")
	assert.Contains(t, flat.Content, "<blockquote>")
}

func TestFlattenWithoutParentIsIdentity(t *testing.T) {
	item := &ExtractedItem{Text: "plain", MediaFiles: []MediaFile{{URL: "a.jpg"}}}
	assert.Same(t, item, item.FlattenForShaping())
}

func TestOptionsFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Options
	}{
		{
			name:  "recognized flags",
			query: "download=true&hd=true&transcribe=true",
			want:  Options{Download: true, HD: true, Transcribe: true},
		},
		{
			name:  "auth param is not an option",
			query: "api_key=secret",
			want:  Options{},
		},
		{
			name:  "unrecognized keys dropped",
			query: "store_document=true&frobnicate=true&depth=3",
			want:  Options{StoreDocument: true},
		},
		{
			name:  "malformed bool ignored",
			query: "download=yep&audio_only=1",
			want:  Options{AudioOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			assert.Equal(t, tt.want, OptionsFromQuery(values, "api_key"))
		})
	}
}

func TestOptionsValuesRoundTrip(t *testing.T) {
	opts := Options{Download: true, AudioOnly: true, StoreDatabase: true}
	assert.Equal(t, opts, OptionsFromQuery(opts.Values(), "api_key"))
}
