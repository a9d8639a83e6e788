package gateway

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipflow/clipflow/internal/core/domain"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("callback ack failed")
	}

	intent, ok := b.intents.Take(cb.Data)
	if !ok {
		// Expired or foreign button; drop the stale menu.
		if cb.Message != nil {
			b.deleteMessage(cb.Message.Chat.ID, cb.Message.MessageID)
		}

		return
	}

	if cb.Message == nil {
		return
	}

	menuChat := cb.Message.Chat.ID
	menuMessage := cb.Message.MessageID

	switch intent.Kind {
	case domain.IntentCancel:
		b.intents.Delete(cb.Data)
		b.deleteMessage(menuChat, menuMessage)

		return
	case domain.IntentChannel:
		targetChannel, resolved := b.resolveChannel(intent)
		if !resolved {
			picker := b.buildChannelPicker(intent)
			edit := tgbotapi.NewEditMessageTextAndMarkup(menuChat, menuMessage, "Pick a destination channel:", picker)

			if _, err := b.api.Send(edit); err != nil {
				b.logger.Error().Err(err).Msg("channel picker edit failed")
			}

			return
		}

		b.intents.Delete(cb.Data)
		b.executeIntent(ctx, intent, menuChat, menuMessage, targetChannel, true)

		return
	case domain.IntentPrivate, domain.IntentForce:
		b.intents.Delete(cb.Data)
		b.executeIntent(ctx, intent, menuChat, menuMessage, cb.From.ID, false)

		return
	default: // video, pdf
		b.intents.Delete(cb.Data)
		b.executeIntent(ctx, intent, menuChat, menuMessage, menuChat, false)
	}
}

// resolveChannel returns the destination when the intent already carries one
// or exactly one channel is configured.
func (b *Bot) resolveChannel(intent domain.ButtonIntent) (int64, bool) {
	if intent.ChannelID != 0 {
		return intent.ChannelID, true
	}

	return b.cfg.SingleChannel()
}

// executeIntent runs the pipeline and delivers the result itself, so the
// force flow can reshape the item before sending.
func (b *Bot) executeIntent(ctx context.Context, intent domain.ButtonIntent, menuChat int64, menuMessage int, targetChat int64, toChannel bool) {
	b.editText(menuChat, menuMessage, fmt.Sprintf("Working on %s…", intent.URL))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.JobTimeout)
		defer cancel()

		item, err := b.pipeline.GetItem(ctx, intent.URL, intent.ExtraArgs, nil)
		if err != nil {
			b.editText(menuChat, menuMessage, fmt.Sprintf("Processing failed: %v", err))
			b.reportToDebugChannel(fmt.Sprintf("callback processing failed for %s: %v", intent.URL, err))

			return
		}

		if intent.Kind == domain.IntentForce {
			item.MessageType = domain.MessageTypeShort
		}

		route := domain.ChatRoute{TargetChat: targetChat}
		if err := b.sender.DeliverItem(ctx, item, route, toChannel); err != nil {
			b.editText(menuChat, menuMessage, fmt.Sprintf("Delivery failed: %v", err))

			return
		}

		b.deleteMessage(menuChat, menuMessage)
	}()
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Warn().Err(err).Msg("message delete failed")
	}
}
