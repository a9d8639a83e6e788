package postprocess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/queue"
)

type fakePublisher struct {
	url string
	err error
}

func (p *fakePublisher) Enabled() bool { return true }

func (p *fakePublisher) CreatePage(_ context.Context, _, _, _, _, _ string) (string, error) {
	return p.url, p.err
}

type fakeRunner struct {
	result any
	err    error
	called bool
}

func (r *fakeRunner) RunSync(_ context.Context, _ string, _, out any, _ time.Duration) error {
	r.called = true
	if r.err != nil {
		return r.err
	}

	switch typed := out.(type) {
	case *queue.PDFExportResult:
		*typed = *r.result.(*queue.PDFExportResult)
	case *queue.TranscribeResult:
		*typed = *r.result.(*queue.TranscribeResult)
	}

	return nil
}

type fakeSaver struct {
	saved []*domain.ExtractedItem
	err   error
}

func (s *fakeSaver) SaveItem(_ context.Context, item *domain.ExtractedItem) error {
	if s.err != nil {
		return s.err
	}

	s.saved = append(s.saved, item)

	return nil
}

func longItem() *domain.ExtractedItem {
	return &domain.ExtractedItem{
		URL:         "https://example.com/post",
		Title:       "A long read",
		Content:     "<p>body</p>",
		Text:        "body",
		MessageType: domain.MessageTypeLong,
	}
}

func TestTelegraphStageSetsURL(t *testing.T) {
	logger := zerolog.Nop()
	pipeline := NewPipeline(&logger, NewTelegraphStage(&fakePublisher{url: "https://telegra.ph/p-1"}))

	item := longItem()
	pipeline.Run(context.Background(), item, domain.Options{})

	assert.Equal(t, "https://telegra.ph/p-1", item.TelegraphURL)
}

func TestTelegraphStageSkipsShortItems(t *testing.T) {
	logger := zerolog.Nop()
	pipeline := NewPipeline(&logger, NewTelegraphStage(&fakePublisher{url: "https://telegra.ph/p-1"}))

	item := longItem()
	item.MessageType = domain.MessageTypeShort
	pipeline.Run(context.Background(), item, domain.Options{})

	assert.Empty(t, item.TelegraphURL)
}

func TestStageFailureDoesNotAbortChain(t *testing.T) {
	logger := zerolog.Nop()
	saver := &fakeSaver{}

	pipeline := NewPipeline(&logger,
		NewTelegraphStage(&fakePublisher{err: errors.New("flood wait")}),
		NewPersistStage(saver, true),
	)

	item := longItem()
	pipeline.Run(context.Background(), item, domain.Options{})

	// The failed stage leaves its field empty; the chain keeps going.
	assert.Empty(t, item.TelegraphURL)
	require.Len(t, saver.saved, 1)
	assert.Empty(t, saver.saved[0].TelegraphURL)
}

func TestDocumentStageAppendsAttachment(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.PDFExportResult{Status: "success", OutputFilename: "/tmp/a-long-read-abc123.pdf"}}

	pipeline := NewPipeline(&logger, NewDocumentStage(runner, time.Minute))

	item := longItem()
	pipeline.Run(context.Background(), item, domain.Options{StoreDocument: true})

	require.Len(t, item.MediaFiles, 1)
	assert.Equal(t, domain.MediaTypeDocument, item.MediaFiles[0].MediaType)
	assert.Equal(t, "/tmp/a-long-read-abc123.pdf", item.MediaFiles[0].URL)
}

func TestDocumentStageSkippedWithoutOption(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.PDFExportResult{Status: "success", OutputFilename: "x.pdf"}}

	pipeline := NewPipeline(&logger, NewDocumentStage(runner, time.Minute))

	item := longItem()
	item.TelegraphURL = "https://telegra.ph/p-1"
	pipeline.Run(context.Background(), item, domain.Options{})

	assert.False(t, runner.called)
	assert.Empty(t, item.MediaFiles)
}

func TestDocumentStageRunsAsLongFormFallback(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.PDFExportResult{Status: "success", OutputFilename: "x.pdf"}}

	pipeline := NewPipeline(&logger, NewDocumentStage(runner, time.Minute))

	// Long item without a snapshot page: the export fires even though the
	// caller never asked for a document.
	item := longItem()
	pipeline.Run(context.Background(), item, domain.Options{})

	assert.True(t, runner.called)
	require.Len(t, item.MediaFiles, 1)
}

func TestTranscribeStageAppendsTranscript(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.TranscribeResult{Transcript: "summary of the talk\n\nfull transcript"}}

	pipeline := NewPipeline(&logger, NewTranscribeStage(runner, time.Minute))

	item := longItem()
	item.MessageType = domain.MessageTypeShort
	item.MediaFiles = []domain.MediaFile{{MediaType: domain.MediaTypeAudio, URL: "/tmp/talk.m4a"}}
	pipeline.Run(context.Background(), item, domain.Options{AudioOnly: true, Transcribe: true, StoreDocument: true})

	assert.Contains(t, item.Text, "summary of the talk")
	assert.Contains(t, item.Content, "<p>summary of the talk</p><p>full transcript</p>")

	// Without a download request the audio is an intermediate artifact and
	// the transcript always goes out long-form.
	assert.Equal(t, domain.MessageTypeLong, item.MessageType)
	assert.Empty(t, item.MediaFiles)
}

func TestTranscribeStageKeepsDownloadedAudio(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.TranscribeResult{Transcript: "notes"}}

	pipeline := NewPipeline(&logger, NewTranscribeStage(runner, time.Minute))

	item := longItem()
	item.MessageType = domain.MessageTypeShort
	item.MediaFiles = []domain.MediaFile{{MediaType: domain.MediaTypeAudio, URL: "/tmp/talk.m4a"}}
	pipeline.Run(context.Background(), item, domain.Options{Download: true, AudioOnly: true, Transcribe: true})

	assert.Equal(t, domain.MessageTypeShort, item.MessageType)
	require.Len(t, item.MediaFiles, 1)
	assert.Equal(t, "/tmp/talk.m4a", item.MediaFiles[0].URL)
}

func TestTranscribeStageIgnoresRemoteAudio(t *testing.T) {
	logger := zerolog.Nop()
	runner := &fakeRunner{result: &queue.TranscribeResult{Transcript: "x"}}

	pipeline := NewPipeline(&logger, NewTranscribeStage(runner, time.Minute))

	item := longItem()
	item.MediaFiles = []domain.MediaFile{{MediaType: domain.MediaTypeAudio, URL: "https://cdn.example/talk.m4a"}}
	pipeline.Run(context.Background(), item, domain.Options{Transcribe: true})

	assert.False(t, runner.called)
}

func TestPersistStageHonorsOption(t *testing.T) {
	logger := zerolog.Nop()
	saver := &fakeSaver{}

	pipeline := NewPipeline(&logger, NewPersistStage(saver, false))

	pipeline.Run(context.Background(), longItem(), domain.Options{})
	assert.Empty(t, saver.saved)

	pipeline.Run(context.Background(), longItem(), domain.Options{StoreDatabase: true})
	assert.Len(t, saver.saved, 1)
}

func TestDocumentFilename(t *testing.T) {
	name := documentFilename("Why Go modules work: a field guide")
	assert.Regexp(t, `^Why-Go-modules-work-a-field-guide-[0-9a-f]{8}\.pdf$`, name)

	assert.Regexp(t, `^document-[0-9a-f]{8}\.pdf$`, documentFilename("标题"))
}
