package postprocess

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/queue"
)

// JobRunner is the synchronous job surface of the queue.
type JobRunner interface {
	RunSync(ctx context.Context, jobType string, payload, out any, timeout time.Duration) error
}

// documentStage exports the item's content as a PDF through the worker. It
// runs after the telegraph stage so the exported document can reference the
// snapshot page.
type documentStage struct {
	runner  JobRunner
	timeout time.Duration
}

func NewDocumentStage(runner JobRunner, timeout time.Duration) Stage {
	return &documentStage{runner: runner, timeout: timeout}
}

func (s *documentStage) Name() string { return "document" }

func (s *documentStage) Applies(item *domain.ExtractedItem, opts domain.Options) bool {
	if item.Content == "" {
		return false
	}

	// The document also serves as the long-form fallback when the snapshot
	// publish did not produce a page.
	longFallback := item.MessageType == domain.MessageTypeLong && item.TelegraphURL == ""

	return opts.StoreDocument || longFallback
}

func (s *documentStage) Run(ctx context.Context, item *domain.ExtractedItem, _ domain.Options) error {
	req := queue.PDFExportRequest{
		HTMLString:     documentHTML(item),
		OutputFilename: documentFilename(item.Title),
	}

	var result queue.PDFExportResult
	if err := s.runner.RunSync(ctx, queue.JobPDFExport, req, &result, s.timeout); err != nil {
		return fmt.Errorf("exporting document: %w", err)
	}

	if result.Status != "success" || result.OutputFilename == "" {
		return fmt.Errorf("document export returned status %q", result.Status)
	}

	item.MediaFiles = append(item.MediaFiles, domain.MediaFile{
		MediaType: domain.MediaTypeDocument,
		URL:       result.OutputFilename,
		Caption:   item.Title,
	})

	return nil
}

// documentHTML prefixes the content with the headline block the rendered
// document opens with.
func documentHTML(item *domain.ExtractedItem) string {
	var sb strings.Builder

	if item.Title != "" {
		sb.WriteString("<h1>")
		sb.WriteString(item.Title)
		sb.WriteString("</h1>")
	}

	if item.Author != "" {
		sb.WriteString("<p><i>")
		sb.WriteString(item.Author)
		sb.WriteString("</i></p>")
	}

	if item.TelegraphURL != "" {
		sb.WriteString(`<p><a href="` + item.TelegraphURL + `">` + item.TelegraphURL + "</a></p>")
	}

	sb.WriteString(item.Content)

	return sb.String()
}

// documentFilename builds a collision-free name from the title slug.
func documentFilename(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, title)

	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}

	if slug == "" {
		slug = "document"
	}

	return slug + "-" + uuid.NewString()[:8] + ".pdf"
}
