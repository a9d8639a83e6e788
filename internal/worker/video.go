package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/queue"
)

// VideoJob runs the downloader tool in two phases: a metadata probe, then an
// optional download with a format picked from the probe.
type VideoJob struct {
	cfg    *config.Config
	logger *zerolog.Logger
}

func NewVideoJob(cfg *config.Config, logger *zerolog.Logger) *VideoJob {
	return &VideoJob{cfg: cfg, logger: logger}
}

// rawVideoInfo is the slice of the downloader's metadata dump we read; the
// raw document runs to a hundred-plus fields.
type rawVideoInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Uploader     string  `json:"uploader"`
	UploaderURL  string  `json:"uploader_url"`
	UploadDate   string  `json:"upload_date"`
	Duration     float64 `json:"duration"`
	ViewCount    int64   `json:"view_count"`
	LikeCount    int64   `json:"like_count"`
	CommentCount int64   `json:"comment_count"`
	Thumbnail    string  `json:"thumbnail"`
	WebpageURL   string  `json:"webpage_url"`
	Extractor    string  `json:"extractor"`
	Ext          string  `json:"ext"`
	Formats      []struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Vcodec string `json:"vcodec"`
	} `json:"formats"`
}

func (j *VideoJob) Handle(ctx context.Context, payload []byte) (any, error) {
	var req queue.VideoDownloadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding video request: %w", err)
	}

	raw, err := j.probe(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	info := sanitizeContentInfo(raw)
	orientation := detectOrientation(raw)

	result := queue.VideoDownloadResult{
		Message:     "ok",
		ContentInfo: info,
		Orientation: orientation,
	}

	if !req.Download {
		return result, nil
	}

	filePath, err := j.download(ctx, req, orientation)
	if err != nil {
		return nil, err
	}

	result.FilePath = filePath

	return result, nil
}

// probe dumps metadata without touching the media.
func (j *VideoJob) probe(ctx context.Context, rawURL string) (*rawVideoInfo, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp", "-J", "--no-warnings", rawURL).Output()
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w: %s", rawURL, err, exitStderr(err))
	}

	var raw rawVideoInfo
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decoding probe output: %w", err)
	}

	return &raw, nil
}

func (j *VideoJob) download(ctx context.Context, req queue.VideoDownloadRequest, orientation string) (string, error) {
	if err := os.MkdirAll(j.cfg.DownloadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download dir: %w", err)
	}

	args := []string{
		"--no-warnings",
		"--no-playlist",
		"-o", filepath.Join(j.cfg.DownloadDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-simulate",
	}

	if req.AudioOnly {
		args = append(args, "-x", "--audio-format", "m4a")
	} else {
		args = append(args, "-f", formatSelector(req.Extractor, orientation, req.HD))
	}

	args = append(args, req.URL)

	out, err := exec.CommandContext(ctx, "yt-dlp", args...).Output()
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w: %s", req.URL, err, exitStderr(err))
	}

	filePath := strings.TrimSpace(string(out))
	if filePath == "" {
		return "", fmt.Errorf("downloader printed no file path for %s", req.URL)
	}

	return filePath, nil
}

// formatSelector picks the download format. Portrait clips cap on width
// instead of height so a 1080x1920 short still counts as standard quality.
func formatSelector(extractor, orientation string, hd bool) string {
	limit := 1080
	if hd {
		limit = 2160
	}

	axis := "height"
	if orientation == "portrait" {
		axis = "width"
	}

	switch extractor {
	case "bilibili":
		// bilibili serves split streams only; merge is mandatory.
		return fmt.Sprintf("bv*[%s<=%d]+ba/b", axis, limit)
	default:
		return fmt.Sprintf("bestvideo[%s<=%d]+bestaudio/best[%s<=%d]/best", axis, limit, axis, limit)
	}
}

// detectOrientation reads the first real video format's aspect ratio.
func detectOrientation(raw *rawVideoInfo) string {
	for _, f := range raw.Formats {
		if f.Width == 0 || f.Height == 0 || f.Vcodec == "none" {
			continue
		}

		if f.Width < f.Height {
			return "portrait"
		}

		return "landscape"
	}

	return "landscape"
}

// sanitizeContentInfo projects the raw metadata onto the wire subset. The
// formats list collapses to a single element carrying the aspect ratio of
// the first real video format, the one orientation detection reads.
func sanitizeContentInfo(raw *rawVideoInfo) *queue.ContentInfo {
	info := &queue.ContentInfo{
		ID:           raw.ID,
		Title:        raw.Title,
		Description:  raw.Description,
		Uploader:     raw.Uploader,
		UploaderURL:  raw.UploaderURL,
		UploadDate:   raw.UploadDate,
		Duration:     raw.Duration,
		ViewCount:    raw.ViewCount,
		LikeCount:    raw.LikeCount,
		CommentCount: raw.CommentCount,
		Thumbnail:    raw.Thumbnail,
		WebpageURL:   raw.WebpageURL,
		Extractor:    raw.Extractor,
		Ext:          raw.Ext,
	}

	for _, f := range raw.Formats {
		if f.Width == 0 || f.Height == 0 || f.Vcodec == "none" {
			continue
		}

		info.Formats = []queue.FormatInfo{{Width: f.Width, Height: f.Height}}

		break
	}

	return info
}

// exitStderr surfaces the tool's stderr out of an exec error.
func exitStderr(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return strings.TrimSpace(string(exitErr.Stderr))
	}

	return ""
}
