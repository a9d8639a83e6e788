package domain

// IntentKind enumerates the inline-button actions the gateway understands.
type IntentKind string

const (
	IntentCancel  IntentKind = "cancel"
	IntentPrivate IntentKind = "private"
	IntentForce   IntentKind = "force"
	IntentChannel IntentKind = "channel"
	IntentVideo   IntentKind = "video"
	IntentPDF     IntentKind = "pdf"
)

// ButtonIntent is the payload behind one inline-keyboard button. Telegram
// callback data is capped at 64 bytes, so intents live server-side in the
// gateway's intent store and the callback carries only the intent ID; the
// intent is consumed and discarded on click or cancel.
type ButtonIntent struct {
	Kind        IntentKind  `json:"kind"`
	URL         string      `json:"url"`
	Source      Source      `json:"source"`
	ContentType ContentType `json:"content_type"`
	ExtraArgs   Options     `json:"extra_args"`

	// ChannelID is set once the user disambiguates a destination channel.
	ChannelID int64 `json:"channel_id,omitempty"`
}
