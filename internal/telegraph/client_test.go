package telegraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentNodes(t *testing.T) {
	nodes, err := ContentNodes(`<h1>Title</h1><div>wrapped <b>bold</b></div><span>plain</span><img src="/a.jpg" class="x">`)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	assert.Equal(t, "h3", nodes[0].Tag)
	assert.Equal(t, "p", nodes[1].Tag)
	require.Len(t, nodes[1].Children, 2)
	assert.Equal(t, "b", nodes[1].Children[1].Tag)

	// span unwraps to bare text
	assert.Equal(t, "", nodes[2].Tag)
	assert.Equal(t, "plain", nodes[2].Text)

	assert.Equal(t, "img", nodes[3].Tag)
	assert.Equal(t, map[string]string{"src": "/a.jpg"}, nodes[3].Attrs)
}

func TestNodeMarshalsTextAsString(t *testing.T) {
	data, err := json.Marshal([]Node{{Text: "hello"}, {Tag: "p", Children: []Node{{Text: "x"}}}})
	require.NoError(t, err)
	assert.JSONEq(t, `["hello", {"tag":"p","children":["x"]}]`, string(data))
}

func TestCreatePage(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		gotForm = map[string]string{
			"access_token": r.PostFormValue("access_token"),
			"title":        r.PostFormValue("title"),
			"author_name":  r.PostFormValue("author_name"),
			"content":      r.PostFormValue("content"),
		}

		_, _ = w.Write([]byte(`{"ok":true,"result":{"url":"https://telegra.ph/Test-01-01"}}`))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client := NewClient([]string{"tok-1"}, "clipflow", 5*time.Second, &logger)
	client.baseURL = server.URL

	url, err := client.CreatePage(context.Background(), "Test", "", "",
		`<p>body with <img src="/rel.jpg"></p>`, "https://example.com/post/1")
	require.NoError(t, err)
	assert.Equal(t, "https://telegra.ph/Test-01-01", url)

	assert.Equal(t, "tok-1", gotForm["access_token"])
	assert.Equal(t, "Test", gotForm["title"])
	assert.Equal(t, "clipflow", gotForm["author_name"])
	assert.Contains(t, gotForm["content"], "https://example.com/rel.jpg")
}

func TestCreatePageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"CONTENT_TEXT_REQUIRED"}`))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client := NewClient([]string{"tok-1"}, "clipflow", 5*time.Second, &logger)
	client.baseURL = server.URL

	_, err := client.CreatePage(context.Background(), "Test", "", "", "<p>x</p>", "")
	require.ErrorIs(t, err, ErrAPIFailure)
	assert.Contains(t, err.Error(), "CONTENT_TEXT_REQUIRED")
}

func TestCreatePageNoTokens(t *testing.T) {
	logger := zerolog.Nop()
	client := NewClient(nil, "clipflow", time.Second, &logger)

	_, err := client.CreatePage(context.Background(), "Test", "", "", "<p>x</p>", "")
	require.ErrorIs(t, err, ErrNoTokens)
}
