package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/extract"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/observability"
	"github.com/clipflow/clipflow/internal/shaper"
)

// Sender executes shaped actions against the platform. The bot handle is
// injected by NewBot so the sender and bot share one session.
type Sender struct {
	bot     *tgbotapi.BotAPI
	cfg     *config.Config
	shaper  *shaper.Shaper
	fetcher *extract.Fetcher
	logger  *zerolog.Logger
}

func NewSender(cfg *config.Config, sh *shaper.Shaper, fetcher *extract.Fetcher, logger *zerolog.Logger) *Sender {
	return &Sender{cfg: cfg, shaper: sh, fetcher: fetcher, logger: logger}
}

// DeliverItem shapes the item and sends its actions in order. For channel
// targets the file groups detour into the linked discussion group,
// reply-threaded to the mirrored post.
func (s *Sender) DeliverItem(ctx context.Context, item *domain.ExtractedItem, route domain.ChatRoute, toChannel bool) error {
	actions := s.shaper.Shape(item)

	var (
		fileGroups    [][]domain.MediaFile
		firstSentID   int
		lastGroupSize int
	)

	for _, action := range actions {
		if action.Kind == shaper.ActionFileGroup {
			fileGroups = append(fileGroups, action.Media)
			continue
		}

		sentID, err := s.sendAction(ctx, action, route, &fileGroups)
		if err != nil {
			observability.DeliveriesTotal.WithLabelValues(string(action.Kind), "error").Inc()
			return err
		}

		observability.DeliveriesTotal.WithLabelValues(string(action.Kind), "ok").Inc()

		if action.Kind == shaper.ActionMediaGroup {
			if firstSentID == 0 {
				firstSentID = sentID
			}

			lastGroupSize = len(action.Media)
		}
	}

	if len(fileGroups) == 0 {
		return nil
	}

	fileChat, replyTo := route.TargetChat, route.ReplyTo
	if toChannel {
		fileChat, replyTo = s.discussionTarget(route.TargetChat, lastGroupSize)
	}

	for _, group := range fileGroups {
		if err := s.sendFileGroup(ctx, fileChat, replyTo, group); err != nil {
			observability.DeliveriesTotal.WithLabelValues(string(shaper.ActionFileGroup), "error").Inc()
			return err
		}

		observability.DeliveriesTotal.WithLabelValues(string(shaper.ActionFileGroup), "ok").Inc()
	}

	return nil
}

func (s *Sender) sendAction(ctx context.Context, action shaper.SendAction, route domain.ChatRoute, fileGroups *[][]domain.MediaFile) (int, error) {
	switch action.Kind {
	case shaper.ActionText:
		msg := tgbotapi.NewMessage(route.TargetChat, action.Text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyToMessageID = route.ReplyTo

		sent, err := s.bot.Send(msg)
		if err != nil {
			return 0, fmt.Errorf("sending text: %w", err)
		}

		return sent.MessageID, nil
	case shaper.ActionMediaGroup:
		return s.sendMediaGroup(ctx, route, action, fileGroups)
	case shaper.ActionAnimation:
		animation := tgbotapi.NewAnimation(route.TargetChat, mediaFileRef(action.Media[0]))
		animation.ReplyToMessageID = route.ReplyTo

		sent, err := s.bot.Send(animation)
		if err != nil {
			return 0, fmt.Errorf("sending animation: %w", err)
		}

		return sent.MessageID, nil
	case shaper.ActionAudio:
		audio := tgbotapi.NewAudio(route.TargetChat, mediaFileRef(action.Media[0]))
		audio.ReplyToMessageID = route.ReplyTo

		sent, err := s.bot.Send(audio)
		if err != nil {
			return 0, fmt.Errorf("sending audio: %w", err)
		}

		return sent.MessageID, nil
	default:
		return 0, fmt.Errorf("unhandled action kind %q", action.Kind)
	}
}

// sendMediaGroup uploads one group. Remote images are downloaded, sniffed
// and downscaled to the platform photo limits; originals that exceeded them
// are queued for the file group so no detail is lost.
func (s *Sender) sendMediaGroup(ctx context.Context, route domain.ChatRoute, action shaper.SendAction, fileGroups *[][]domain.MediaFile) (int, error) {
	var (
		inputs   []interface{}
		oversize []domain.MediaFile
	)

	for _, media := range action.Media {
		switch media.MediaType {
		case domain.MediaTypeImage:
			ref, wasOversize := s.prepareImage(ctx, media)
			if wasOversize {
				oversize = append(oversize, media)
			}

			if ref == nil {
				continue
			}

			inputs = append(inputs, tgbotapi.NewInputMediaPhoto(ref))
		case domain.MediaTypeVideo:
			inputs = append(inputs, tgbotapi.NewInputMediaVideo(mediaFileRef(media)))
		}
	}

	if len(oversize) > 0 {
		*fileGroups = append(*fileGroups, oversize)
	}

	if len(inputs) == 0 {
		return 0, nil
	}

	if action.Text != "" {
		switch first := inputs[0].(type) {
		case tgbotapi.InputMediaPhoto:
			first.Caption = action.Text
			first.ParseMode = tgbotapi.ModeHTML
			inputs[0] = first
		case tgbotapi.InputMediaVideo:
			first.Caption = action.Text
			first.ParseMode = tgbotapi.ModeHTML
			inputs[0] = first
		}
	}

	group := tgbotapi.NewMediaGroup(route.TargetChat, inputs)
	group.ReplyToMessageID = route.ReplyTo

	sent, err := s.bot.SendMediaGroup(group)
	if err != nil {
		return 0, fmt.Errorf("sending media group: %w", err)
	}

	if len(sent) == 0 {
		return 0, nil
	}

	return sent[0].MessageID, nil
}

// prepareImage downloads a remote image and downscales it to the photo
// limits. The bool result reports whether the original exceeded them; a nil
// reference means the image skips the inline send entirely and rides the
// file group untouched. Any failure falls back to handing Telegram the
// original reference.
func (s *Sender) prepareImage(ctx context.Context, media domain.MediaFile) (tgbotapi.RequestFileData, bool) {
	if !strings.HasPrefix(media.URL, "http://") && !strings.HasPrefix(media.URL, "https://") {
		return tgbotapi.FilePath(media.URL), false
	}

	body, _, err := s.fetcher.Stream(ctx, media.URL, extract.FetchOptions{Referer: refererForURL(media.URL)})
	if err != nil {
		s.logger.Warn().Err(err).Str("url", media.URL).Msg("image download failed")
		return tgbotapi.FileURL(media.URL), false
	}
	defer body.Close()

	data, err := readAllLimited(body, s.cfg.MaxFileSize)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", media.URL).Msg("image read failed")
		return tgbotapi.FileURL(media.URL), false
	}

	fits := shaper.FitsPhotoLimits(data, s.cfg.ImageDimensionLimit, s.cfg.ImageSizeLimit)
	if fits {
		return tgbotapi.FileBytes{Name: path.Base(media.URL), Bytes: data}, false
	}

	// A panorama or long screenshot loses everything to a downscale.
	if shaper.ExtremeAspectRatio(data) {
		return nil, true
	}

	scaled, err := shaper.DownscaleImage(data, s.cfg.ImageDimensionLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", media.URL).Msg("image downscale failed")
		return tgbotapi.FileURL(media.URL), false
	}

	return tgbotapi.FileBytes{Name: path.Base(media.URL), Bytes: scaled}, true
}

func (s *Sender) sendFileGroup(_ context.Context, chatID int64, replyTo int, group []domain.MediaFile) error {
	var inputs []interface{}

	for _, media := range group {
		// Local files over the upload cap cannot be sent at all; remote
		// references are size-checked by the platform.
		if info, err := os.Stat(media.URL); err == nil && info.Size() > s.cfg.MaxFileSize {
			s.logger.Warn().Str("file", media.URL).Int64("size", info.Size()).Msg("file exceeds upload cap, dropped")
			continue
		}

		inputs = append(inputs, tgbotapi.NewInputMediaDocument(mediaFileRef(media)))
	}

	if len(inputs) == 0 {
		return nil
	}

	groupCfg := tgbotapi.NewMediaGroup(chatID, inputs)
	groupCfg.ReplyToMessageID = replyTo
	groupCfg.DisableNotification = true

	if _, err := s.bot.SendMediaGroup(groupCfg); err != nil {
		return fmt.Errorf("sending file group: %w", err)
	}

	return nil
}

// discussionTarget locates the channel's linked discussion group and the
// message to thread under. The platform mirrors channel posts into the
// discussion group after a short delay and pins the latest mirror, so the
// pinned message anchors the reply computation.
func (s *Sender) discussionTarget(channelID int64, lastGroupSize int) (int64, int) {
	time.Sleep(s.cfg.DiscussionMirrorDelay)

	channel, err := s.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: channelID}})
	if err != nil || channel.LinkedChatID == 0 {
		return channelID, 0
	}

	linked, err := s.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: channel.LinkedChatID}})
	if err != nil || linked.PinnedMessage == nil {
		return channel.LinkedChatID, 0
	}

	pinned := linked.PinnedMessage

	// A pinned mirror of a media group points at its last element; thread
	// under the first one. Otherwise the mirror lands right after the pin.
	replyTo := pinned.MessageID + 1
	if pinned.MediaGroupID != "" && lastGroupSize > 0 {
		replyTo = pinned.MessageID - lastGroupSize + 1
	}

	return channel.LinkedChatID, replyTo
}

func mediaFileRef(media domain.MediaFile) tgbotapi.RequestFileData {
	if strings.HasPrefix(media.URL, "http://") || strings.HasPrefix(media.URL, "https://") {
		return tgbotapi.FileURL(media.URL)
	}

	return tgbotapi.FilePath(media.URL)
}

func refererForURL(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "sinaimg"):
		return extract.RefererFor(domain.SourceWeibo)
	case strings.Contains(rawURL, "douban"):
		return extract.RefererFor(domain.SourceDouban)
	default:
		return ""
	}
}

func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}

	return data, nil
}
