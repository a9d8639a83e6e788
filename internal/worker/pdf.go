package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/objectstore"
	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/queue"
)

// PDFJob renders HTML to a document with wkhtmltopdf and optionally uploads
// the result to the object store.
type PDFJob struct {
	cfg    *config.Config
	store  *objectstore.Store // nil disables upload
	logger *zerolog.Logger
}

func NewPDFJob(cfg *config.Config, store *objectstore.Store, logger *zerolog.Logger) *PDFJob {
	return &PDFJob{cfg: cfg, store: store, logger: logger}
}

var (
	styleBlockRegex  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
)

const pdfPageStyle = `body { font-family: "Noto Sans", "Noto Sans CJK SC", sans-serif; line-height: 1.6; margin: 2em; }
img { max-width: 100%; }
blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1em; color: #555; }`

func (j *PDFJob) Handle(ctx context.Context, payload []byte) (any, error) {
	var req queue.PDFExportRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding pdf request: %w", err)
	}

	if req.OutputFilename == "" {
		return nil, fmt.Errorf("pdf request has no output filename")
	}

	if err := os.MkdirAll(j.cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download dir: %w", err)
	}

	htmlPath := filepath.Join(j.cfg.DownloadDir, strings.TrimSuffix(req.OutputFilename, ".pdf")+".html")
	pdfPath := filepath.Join(j.cfg.DownloadDir, req.OutputFilename)

	if err := os.WriteFile(htmlPath, []byte(renderDocumentHTML(req.HTMLString)), 0o644); err != nil {
		return nil, fmt.Errorf("writing html: %w", err)
	}
	defer os.Remove(htmlPath)

	out, err := exec.CommandContext(ctx, "wkhtmltopdf",
		"--quiet", "--enable-local-file-access", htmlPath, pdfPath).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("rendering pdf: %w: %s", err, strings.TrimSpace(string(out)))
	}

	output := pdfPath

	if j.cfg.AWSStorageOn && j.store != nil {
		url, err := j.store.UploadFile(ctx, pdfPath)
		if err != nil {
			// Keep the local file usable when the upload fails.
			j.logger.Warn().Err(err).Str("file", pdfPath).Msg("pdf upload failed")
		} else {
			output = url
			os.Remove(pdfPath)
		}
	}

	return queue.PDFExportResult{Status: "success", OutputFilename: output}, nil
}

// renderDocumentHTML wraps the fragment in a printable page. Author styles
// and scripts are stripped; the page style controls the rendering.
func renderDocumentHTML(fragment string) string {
	fragment = styleBlockRegex.ReplaceAllString(fragment, "")
	fragment = scriptBlockRegex.ReplaceAllString(fragment, "")

	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>` + pdfPageStyle + `</style>
</head>
<body>
` + fragment + `
</body>
</html>`
}
