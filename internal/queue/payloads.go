package queue

// Wire payloads exchanged with the worker. Field names are the contract;
// both sides marshal with these exact keys.

// VideoDownloadRequest asks the worker to fetch video metadata and,
// optionally, the media itself.
type VideoDownloadRequest struct {
	URL       string `json:"url"`
	Download  bool   `json:"download"`
	Extractor string `json:"extractor"`
	AudioOnly bool   `json:"audio_only"`
	HD        bool   `json:"hd"`
}

// VideoDownloadResult carries the sanitized metadata subset plus the local
// path of the downloaded file when Download was set.
type VideoDownloadResult struct {
	Message     string       `json:"message"`
	ContentInfo *ContentInfo `json:"content_info"`
	Orientation string       `json:"orientation"`
	FilePath    string       `json:"file_path"`
}

// ContentInfo is the ~15-field projection of the raw extractor metadata the
// API actually consumes; the raw dict runs to 100+ fields.
type ContentInfo struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Uploader     string       `json:"uploader"`
	UploaderURL  string       `json:"uploader_url"`
	UploadDate   string       `json:"upload_date"`
	Duration     float64      `json:"duration"`
	ViewCount    int64        `json:"view_count"`
	LikeCount    int64        `json:"like_count"`
	CommentCount int64        `json:"comment_count"`
	Thumbnail    string       `json:"thumbnail"`
	WebpageURL   string       `json:"webpage_url"`
	Extractor    string       `json:"extractor"`
	Ext          string       `json:"ext"`
	Formats      []FormatInfo `json:"formats"`
}

// FormatInfo carries only the chosen format's aspect ratio.
type FormatInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PDFExportRequest asks the worker to render HTML to a PDF document.
type PDFExportRequest struct {
	HTMLString     string `json:"html_string"`
	OutputFilename string `json:"output_filename"`
}

// PDFExportResult returns the rendered document's local path or remote URL.
type PDFExportResult struct {
	Status         string `json:"status"`
	OutputFilename string `json:"output_filename"`
}

// TranscribeRequest asks the worker to transcribe an audio file.
type TranscribeRequest struct {
	AudioFile string `json:"audio_file"`
}

// TranscribeResult returns the summary-prefixed transcript.
type TranscribeResult struct {
	Transcript string `json:"transcript"`
	Message    string `json:"message"`
}
