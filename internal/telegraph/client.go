// Package telegraph publishes long-form content as Telegraph pages through
// the public createPage API.
package telegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	xhtml "golang.org/x/net/html"

	"github.com/clipflow/clipflow/internal/platform/htmlutils"
)

const apiBase = "https://api.telegra.ph"

// ErrNoTokens indicates the token pool is empty and publishing is disabled.
var ErrNoTokens = errors.New("no telegraph tokens configured")

// ErrAPIFailure carries the API-level error string.
var ErrAPIFailure = errors.New("telegraph API error")

// nodeTagMap rewrites tags Telegraph does not accept into the closest
// supported ones. Unmapped disallowed tags are unwrapped.
var nodeTagMap = map[string]string{
	"h1":   "h3",
	"h2":   "h4",
	"h5":   "h4",
	"h6":   "h4",
	"div":  "p",
	"span": "",
	"del":  "s",
}

var allowedNodeTags = map[string]bool{
	"a": true, "aside": true, "b": true, "blockquote": true, "br": true,
	"code": true, "em": true, "figcaption": true, "figure": true,
	"h3": true, "h4": true, "hr": true, "i": true, "iframe": true,
	"img": true, "li": true, "ol": true, "p": true, "pre": true,
	"s": true, "strong": true, "u": true, "ul": true, "video": true,
}

var allowedNodeAttrs = map[string]bool{"href": true, "src": true}

// Client publishes pages, rotating through a pool of access tokens so a
// single token's flood limits do not gate the whole pipeline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     []string
	author     string
	logger     *zerolog.Logger
}

func NewClient(tokens []string, author string, timeout time.Duration, logger *zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    apiBase,
		tokens:     tokens,
		author:     author,
		logger:     logger,
	}
}

// Enabled reports whether the token pool allows publishing.
func (c *Client) Enabled() bool {
	return len(c.tokens) > 0
}

type createPageResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Result struct {
		URL string `json:"url"`
	} `json:"result"`
}

// CreatePage publishes content HTML under the given title and returns the
// page URL. Relative image sources are resolved against baseURL first so the
// page does not render broken images.
func (c *Client) CreatePage(ctx context.Context, title, authorName, authorURL, content, baseURL string) (string, error) {
	if !c.Enabled() {
		return "", ErrNoTokens
	}

	if baseURL != "" {
		content = htmlutils.AbsolutizeImageSrc(content, baseURL)
	}

	nodes, err := ContentNodes(content)
	if err != nil {
		return "", fmt.Errorf("building telegraph nodes: %w", err)
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("encoding telegraph nodes: %w", err)
	}

	if authorName == "" {
		authorName = c.author
	}

	form := url.Values{}
	form.Set("access_token", c.tokens[rand.Intn(len(c.tokens))])
	form.Set("title", firstNonEmpty(title, "Untitled"))
	form.Set("author_name", authorName)
	form.Set("content", string(nodesJSON))

	if authorURL != "" {
		form.Set("author_url", authorURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createPage",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating telegraph request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling telegraph: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading telegraph response: %w", err)
	}

	var parsed createPageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding telegraph response: %w", err)
	}

	if !parsed.OK {
		return "", fmt.Errorf("%w: %s", ErrAPIFailure, parsed.Error)
	}

	c.logger.Debug().Str("url", parsed.Result.URL).Msg("telegraph page created")

	return parsed.Result.URL, nil
}

// Node is the Telegraph DOM element representation. A node marshals as either
// a bare string (text) or a tag object.
type Node struct {
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
	Text     string            `json:"-"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Tag == "" {
		return json.Marshal(n.Text)
	}

	type alias Node

	return json.Marshal(alias(n))
}

// ContentNodes converts an HTML fragment into the Telegraph node array.
func ContentNodes(content string) ([]Node, error) {
	root, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	body := findBody(root)
	if body == nil {
		return nil, errors.New("no body in parsed fragment")
	}

	var nodes []Node
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		nodes = append(nodes, convertNode(child)...)
	}

	return nodes, nil
}

func findBody(n *xhtml.Node) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.Data == "body" {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}

	return nil
}

func convertNode(n *xhtml.Node) []Node {
	switch n.Type {
	case xhtml.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}

		return []Node{{Text: n.Data}}
	case xhtml.ElementNode:
		tag := strings.ToLower(n.Data)
		if mapped, ok := nodeTagMap[tag]; ok {
			tag = mapped
		}

		var children []Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, convertNode(c)...)
		}

		// Unwrap disallowed tags, keep their content.
		if tag == "" || !allowedNodeTags[tag] {
			return children
		}

		node := Node{Tag: tag, Children: children}

		for _, attr := range n.Attr {
			if allowedNodeAttrs[strings.ToLower(attr.Key)] {
				if node.Attrs == nil {
					node.Attrs = make(map[string]string)
				}

				node.Attrs[strings.ToLower(attr.Key)] = attr.Val
			}
		}

		return []Node{node}
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
