package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/queue"
)

// videoExtractor serves the video platforms by delegating to the worker
// process, which owns the downloader tooling. Metadata-only requests come
// back fast; downloads block for the length of the configured job timeout.
type videoExtractor struct {
	queue   *queue.Queue
	source  domain.Source
	timeout time.Duration
}

func (e *videoExtractor) Extract(ctx context.Context, rawURL string, opts domain.Options) (*domain.ExtractedItem, error) {
	if e.queue == nil {
		return nil, wrapErr(e.source, rawURL, fmt.Errorf("%w: file exporter disabled", ErrNoExtractor))
	}

	// Audio-only and transcription both need the file on disk even when the
	// caller did not ask for the video itself.
	audioOnly := opts.AudioOnly || opts.Transcribe

	req := queue.VideoDownloadRequest{
		URL:       rawURL,
		Download:  opts.Download || audioOnly,
		Extractor: string(e.source),
		AudioOnly: audioOnly,
		HD:        opts.HD,
	}

	var result queue.VideoDownloadResult
	if err := e.queue.RunSync(ctx, queue.JobVideoDownload, req, &result, e.timeout); err != nil {
		return nil, wrapErr(e.source, rawURL, err)
	}

	if result.ContentInfo == nil {
		return nil, wrapErr(e.source, rawURL, fmt.Errorf("%w: %s", ErrEmptyContent, result.Message))
	}

	item := e.itemFromInfo(rawURL, result.ContentInfo)

	if result.FilePath != "" {
		mediaType := domain.MediaTypeVideo
		if audioOnly {
			mediaType = domain.MediaTypeAudio
		}

		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: mediaType,
			URL:       result.FilePath,
		})
	} else if result.ContentInfo.Thumbnail != "" {
		item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
			MediaType: domain.MediaTypeImage,
			URL:       result.ContentInfo.Thumbnail,
		})
	}

	return item, nil
}

func (e *videoExtractor) itemFromInfo(rawURL string, info *queue.ContentInfo) *domain.ExtractedItem {
	text := strings.TrimSpace(info.Description)

	item := &domain.ExtractedItem{
		URL:         rawURL,
		Title:       info.Title,
		Author:      info.Uploader,
		AuthorURL:   info.UploaderURL,
		Text:        text,
		Content:     textToContent(text),
		Category:    e.source,
		MessageType: decideMessageType(text),
		Stats: map[string]int64{
			"views":    info.ViewCount,
			"likes":    info.LikeCount,
			"comments": info.CommentCount,
		},
	}

	if info.Duration > 0 {
		item.Stats["duration_seconds"] = int64(info.Duration)
	}

	// upload_date arrives as YYYYMMDD.
	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		item.CreatedAt = &t
	}

	return item
}
