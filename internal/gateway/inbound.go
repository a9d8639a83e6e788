package gateway

import (
	"context"
	"fmt"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/storage"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	urls := messageURLs(msg)
	if len(urls) == 0 {
		b.persistChatMessage(ctx, msg)
		return
	}

	if msg.Chat.IsPrivate() {
		b.handlePrivateURLs(ctx, msg, urls)
		return
	}

	b.handleGroupURLs(ctx, msg, urls)
}

// handlePrivateURLs runs the menu flow: placeholder, classification, then an
// inline keyboard tailored to the source.
func (b *Bot) handlePrivateURLs(ctx context.Context, msg *tgbotapi.Message, urls []string) {
	for i, rawURL := range urls {
		placeholder := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Processing URL %d of %d…", i+1, len(urls)))
		placeholder.ReplyToMessageID = msg.MessageID

		sent, err := b.api.Send(placeholder)
		if err != nil {
			b.logger.Error().Err(err).Msg("placeholder send failed")
			continue
		}

		cls, err := b.pipeline.Metadata(ctx, rawURL)
		if err != nil {
			b.editText(msg.Chat.ID, sent.MessageID, "Classification failed, try again later.")
			continue
		}

		switch cls.Source {
		case domain.SourceBanned:
			b.editText(msg.Chat.ID, sent.MessageID, "This source is banned.")
			continue
		case domain.SourceUnknown:
			if !b.cfg.GeneralScraping {
				b.editText(msg.Chat.ID, sent.MessageID, "This URL is not supported.")
				continue
			}

			cls.Source = domain.SourceGeneric
		}

		keyboard := b.buildMenu(cls, b.cfg.IsChannelAdmin(msg.From.ID))

		edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, sent.MessageID,
			fmt.Sprintf("%s link detected. What should happen with it?", cls.Source), keyboard)
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error().Err(err).Msg("menu edit failed")
		}
	}
}

// handleGroupURLs auto-executes the default pipeline for whitelisted sources
// and threads the delivery to the triggering message. The API calls back on
// /send_message for the actual sends.
func (b *Bot) handleGroupURLs(ctx context.Context, msg *tgbotapi.Message, urls []string) {
	for _, rawURL := range urls {
		if !b.shouldAutoProcess(ctx, rawURL) {
			continue
		}

		route := &domain.ChatRoute{TargetChat: msg.Chat.ID, ReplyTo: msg.MessageID}

		go func(rawURL string) {
			ctx, cancel := context.WithTimeout(context.Background(), b.cfg.JobTimeout)
			defer cancel()

			if _, err := b.pipeline.GetItem(ctx, rawURL, domain.Options{}, route); err != nil {
				b.logger.Warn().Err(err).Str("url", rawURL).Msg("group auto-processing failed")
			}
		}(rawURL)
	}
}

func (b *Bot) shouldAutoProcess(ctx context.Context, rawURL string) bool {
	cls, err := b.pipeline.Metadata(ctx, rawURL)
	if err != nil {
		b.logger.Warn().Err(err).Str("url", rawURL).Msg("group classification failed")
		return false
	}

	if cls.Source == domain.SourceBanned {
		return false
	}

	return cls.Source != domain.SourceUnknown || b.cfg.GeneralScraping
}

func (b *Bot) persistChatMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.chatLog == nil || msg.Text == "" {
		return
	}

	user := msg.From.UserName
	if user == "" {
		user = msg.From.FirstName
	}

	record := storage.ChatMessage{
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
		Chat:      msg.Chat.ID,
		User:      user,
		Text:      msg.Text,
	}

	if err := b.chatLog.SaveChatMessage(ctx, record); err != nil {
		b.logger.Warn().Err(err).Msg("chat message persist failed")
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn().Err(err).Msg("message edit failed")
	}
}

// messageURLs pulls URL entities out of a message. Telegram encodes entity
// offsets in UTF-16 code units, so the text is re-encoded before slicing.
func messageURLs(msg *tgbotapi.Message) []string {
	var urls []string

	encoded := utf16.Encode([]rune(msg.Text))

	for _, entity := range msg.Entities {
		switch entity.Type {
		case "url":
			if entity.Offset < 0 || entity.Offset+entity.Length > len(encoded) {
				continue
			}

			urls = append(urls, string(utf16.Decode(encoded[entity.Offset:entity.Offset+entity.Length])))
		case "text_link":
			if entity.URL != "" {
				urls = append(urls, entity.URL)
			}
		}
	}

	return urls
}
