package gateway

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipflow/clipflow/internal/classify"
	"github.com/clipflow/clipflow/internal/core/domain"
)

// buildMenu assembles the inline keyboard for a classified URL. Every button
// stores its full intent server-side and carries only the intent ID.
func (b *Bot) buildMenu(cls *classify.Classification, isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	base := domain.ButtonIntent{URL: cls.URL, Source: cls.Source, ContentType: cls.ContentType}

	button := func(label string, kind domain.IntentKind, opts domain.Options) tgbotapi.InlineKeyboardButton {
		intent := base
		intent.Kind = kind
		intent.ExtraArgs = opts

		return tgbotapi.NewInlineKeyboardButtonData(label, b.intents.Put(intent))
	}

	var rows [][]tgbotapi.InlineKeyboardButton

	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("Send to Channel", domain.IntentChannel, domain.Options{StoreDocument: true}),
		))
	}

	switch cls.ContentType {
	case domain.ContentTypeVideo:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("Get Info", domain.IntentVideo, domain.Options{}),
			button("Download", domain.IntentVideo, domain.Options{Download: true}),
		))

		if b.cfg.FileExporterOn {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button("Audio Only", domain.IntentVideo, domain.Options{Download: true, AudioOnly: true}),
				button("Download HD", domain.IntentVideo, domain.Options{Download: true, HD: true}),
			))

			if b.cfg.LLMConfigured() {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					button("Transcribe Text", domain.IntentVideo, domain.Options{
						AudioOnly:     true,
						Transcribe:    true,
						StoreDocument: true,
					}),
				))
			}
		}
	default:
		row := tgbotapi.NewInlineKeyboardRow(
			button("Send to Me", domain.IntentPrivate, domain.Options{}),
			button("Force Send in Chat", domain.IntentForce, domain.Options{}),
		)
		rows = append(rows, row)

		if b.cfg.FileExporterOn {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				button("Send with PDF", domain.IntentPDF, domain.Options{StoreDocument: true}),
			))
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("Cancel", domain.IntentCancel, domain.Options{}),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// buildChannelPicker lets the user disambiguate between configured channels.
// Each choice re-dispatches the original intent with ChannelID resolved.
func (b *Bot) buildChannelPicker(intent domain.ButtonIntent) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, channelID := range b.cfg.ChannelIDs {
		choice := intent
		choice.ChannelID = channelID

		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(strconv.FormatInt(channelID, 10), b.intents.Put(choice)),
		))
	}

	cancel := domain.ButtonIntent{Kind: domain.IntentCancel, URL: intent.URL}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Cancel", b.intents.Put(cancel)),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
