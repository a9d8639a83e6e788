package postprocess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/queue"
)

// transcribeStage sends downloaded audio to the worker for transcription and
// appends the transcript to the item text. It only applies once a local
// audio file exists, so it depends on the audio_only download path.
type transcribeStage struct {
	runner  JobRunner
	timeout time.Duration
}

func NewTranscribeStage(runner JobRunner, timeout time.Duration) Stage {
	return &transcribeStage{runner: runner, timeout: timeout}
}

func (s *transcribeStage) Name() string { return "transcribe" }

func (s *transcribeStage) Applies(item *domain.ExtractedItem, opts domain.Options) bool {
	return opts.Transcribe && localAudioFile(item) != ""
}

func (s *transcribeStage) Run(ctx context.Context, item *domain.ExtractedItem, opts domain.Options) error {
	audioFile := localAudioFile(item)

	var result queue.TranscribeResult
	if err := s.runner.RunSync(ctx, queue.JobTranscribe, queue.TranscribeRequest{AudioFile: audioFile}, &result, s.timeout); err != nil {
		return fmt.Errorf("transcribing %s: %w", audioFile, err)
	}

	if result.Transcript == "" {
		return fmt.Errorf("empty transcript: %s", result.Message)
	}

	item.Text = strings.TrimSpace(item.Text + "\n\n" + result.Transcript)
	item.Content += transcriptToContent(result.Transcript)

	// The audio was downloaded only to feed the transcription; without an
	// explicit download request it is not delivered, and the transcript goes
	// out as a long-form page.
	if !opts.Download {
		item.MessageType = domain.MessageTypeLong
		dropMedia(item, domain.MediaTypeAudio, audioFile)
	}

	return nil
}

// transcriptToContent renders the transcript paragraphs as HTML.
func transcriptToContent(transcript string) string {
	var b strings.Builder

	for _, para := range strings.Split(transcript, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		b.WriteString("<p>")
		b.WriteString(para)
		b.WriteString("</p>")
	}

	return b.String()
}

func dropMedia(item *domain.ExtractedItem, mediaType domain.MediaType, url string) {
	kept := item.MediaFiles[:0]

	for _, media := range item.MediaFiles {
		if media.MediaType == mediaType && media.URL == url {
			continue
		}

		kept = append(kept, media)
	}

	item.MediaFiles = kept
}

// localAudioFile returns the first audio attachment that is a local path
// rather than a remote URL.
func localAudioFile(item *domain.ExtractedItem) string {
	for _, media := range item.MediaFiles {
		if media.MediaType != domain.MediaTypeAudio {
			continue
		}

		if strings.HasPrefix(media.URL, "http://") || strings.HasPrefix(media.URL, "https://") {
			continue
		}

		return media.URL
	}

	return ""
}
