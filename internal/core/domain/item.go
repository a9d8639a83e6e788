// Package domain defines the canonical data model shared by the classifier,
// the extractors, the post-processor chain and the message shaper.
package domain

import (
	"encoding/json"
	"time"
)

// Source identifies which upstream site a URL belongs to.
type Source string

const (
	SourceTwitter     Source = "twitter"
	SourceWeibo       Source = "weibo"
	SourceZhihu       Source = "zhihu"
	SourceDouban      Source = "douban"
	SourceThreads     Source = "threads"
	SourceInstagram   Source = "instagram"
	SourceReddit      Source = "reddit"
	SourceBluesky     Source = "bluesky"
	SourceWechat      Source = "wechat"
	SourceXiaohongshu Source = "xiaohongshu"
	SourceYoutube     Source = "youtube"
	SourceBilibili    Source = "bilibili"
	SourceGeneric     Source = "generic"
	SourceUnknown     Source = "unknown"
	SourceBanned      Source = "banned"
)

// ContentType is the coarse category of the linked content.
type ContentType string

const (
	ContentTypeSocialMedia ContentType = "social_media"
	ContentTypeVideo       ContentType = "video"
	ContentTypeArticle     ContentType = "article"
	ContentTypeUnknown     ContentType = "unknown"
)

// MessageType decides whether the item fits in a single chat message or must
// also be published as an external long-form page.
type MessageType string

const (
	MessageTypeShort MessageType = "short"
	MessageTypeLong  MessageType = "long"
)

// MediaType tags a single attachment.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeGif      MediaType = "gif"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
)

// MediaFile is one attachment reference. URL is either remote HTTP or a local
// file path; for documents it is always local or object-store hosted.
type MediaFile struct {
	MediaType MediaType `json:"media_type"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
}

// ExtractedItem is the canonical output of every extractor. It is created by
// the extractor, mutated only by the post-processor chain (TelegraphURL,
// MediaFiles append, MessageType escalation) and then frozen for the shaper.
type ExtractedItem struct {
	URL          string      `json:"url"`
	Title        string      `json:"title"`
	Author       string      `json:"author"`
	AuthorURL    string      `json:"author_url,omitempty"`
	Text         string      `json:"text"`
	Content      string      `json:"content"`
	MediaFiles   []MediaFile `json:"media_files,omitempty"`
	Category     Source      `json:"category"`
	MessageType  MessageType `json:"message_type"`
	TelegraphURL string      `json:"telegraph_url,omitempty"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`

	// Stats are extractor-specific passthrough counters (upvotes, replies,
	// retweets and the like). The core never interprets the keys.
	Stats map[string]int64 `json:"stats,omitempty"`

	// Parent holds the quoted or retweeted post, if any. It is flattened
	// before shaping so the shaper never recurses.
	Parent *ExtractedItem `json:"parent,omitempty"`
}

// FlattenForShaping splices the parent post into the item so the shaper sees
// a single flat item. The base item's media come first, the quoted parent's
// media follow; the parent's text is appended as a quoted block.
func (it *ExtractedItem) FlattenForShaping() *ExtractedItem {
	if it.Parent == nil {
		return it
	}

	parent := it.Parent.FlattenForShaping()

	flat := *it
	flat.Parent = nil
	flat.MediaFiles = make([]MediaFile, 0, len(it.MediaFiles)+len(parent.MediaFiles))
	flat.MediaFiles = append(flat.MediaFiles, it.MediaFiles...)
	flat.MediaFiles = append(flat.MediaFiles, parent.MediaFiles...)

	if parent.Text != "" {
		flat.Text = it.Text + "\n\n> " + parent.Author + ": " + parent.Text
	}

	if parent.Content != "" {
		flat.Content = it.Content + "<blockquote>" + parent.Content + "</blockquote>"
	}

	return &flat
}

// ToJSON serializes the item over its public fields.
func (it *ExtractedItem) ToJSON() ([]byte, error) {
	return json.Marshal(it)
}

// ItemFromJSON is the inverse of ToJSON.
func ItemFromJSON(data []byte) (*ExtractedItem, error) {
	var it ExtractedItem
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, err
	}

	return &it, nil
}

// ChatRoute says where a delivered item goes. ReplyTo carries the original
// user message when the delivery is an auto-reply inside a group.
type ChatRoute struct {
	TargetChat int64 `json:"target_chat"`
	ReplyTo    int   `json:"reply_to,omitempty"`
}
