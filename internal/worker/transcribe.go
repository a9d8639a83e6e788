package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/queue"
)

// chunkSeconds bounds one STT request; the model caps input length.
const chunkSeconds = 300

// TranscribeJob turns an audio file into a cleaned transcript with a
// leading summary: silence-trimmed, chunked, recognized per chunk, then two
// LLM passes (punctuation repair, summary).
type TranscribeJob struct {
	cfg    *config.Config
	client *openai.Client
	logger *zerolog.Logger
}

func NewTranscribeJob(cfg *config.Config, logger *zerolog.Logger) *TranscribeJob {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &TranscribeJob{cfg: cfg, client: openai.NewClientWithConfig(clientCfg), logger: logger}
}

func (j *TranscribeJob) Handle(ctx context.Context, payload []byte) (any, error) {
	var req queue.TranscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding transcribe request: %w", err)
	}

	if _, err := os.Stat(req.AudioFile); err != nil {
		return nil, fmt.Errorf("audio file: %w", err)
	}

	duration, err := probeDuration(ctx, req.AudioFile)
	if err != nil {
		return nil, err
	}

	leadingSilence, err := detectLeadingSilence(ctx, req.AudioFile)
	if err != nil {
		j.logger.Warn().Err(err).Msg("silence detection failed, keeping full audio")
		leadingSilence = 0
	}

	chunks, cleanup, err := j.splitChunks(ctx, req.AudioFile, leadingSilence, duration)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var parts []string

	for _, chunk := range chunks {
		resp, err := j.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: chunk,
		})
		if err != nil {
			return nil, fmt.Errorf("transcribing chunk %s: %w", filepath.Base(chunk), err)
		}

		parts = append(parts, strings.TrimSpace(resp.Text))
	}

	transcript := strings.Join(parts, " ")
	if transcript == "" {
		return queue.TranscribeResult{Message: "no speech recognized"}, nil
	}

	punctuated, err := j.llmPass(ctx,
		"Restore punctuation and paragraph breaks in the following transcript. Return only the corrected text.",
		transcript)
	if err != nil {
		j.logger.Warn().Err(err).Msg("punctuation pass failed, using raw transcript")
		punctuated = transcript
	}

	summary, err := j.llmPass(ctx,
		"Summarize the following transcript in three sentences or fewer, in its own language.",
		punctuated)
	if err != nil {
		j.logger.Warn().Err(err).Msg("summary pass failed")
		summary = ""
	}

	full := punctuated
	if summary != "" {
		full = summary + "\n\n" + punctuated
	}

	return queue.TranscribeResult{Transcript: full, Message: "ok"}, nil
}

func (j *TranscribeJob) llmPass(ctx context.Context, instruction, text string) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// splitChunks cuts the audio into bounded pieces, skipping the leading
// silence. The cleanup func removes the temp chunks.
func (j *TranscribeJob) splitChunks(ctx context.Context, audioFile string, offset, duration float64) ([]string, func(), error) {
	dir, err := os.MkdirTemp(j.cfg.DownloadDir, "chunks-")
	if err != nil {
		return nil, nil, fmt.Errorf("creating chunk dir: %w", err)
	}

	cleanup := func() { os.RemoveAll(dir) }

	var chunks []string

	for i, start := 0, offset; start < duration; i, start = i+1, start+chunkSeconds {
		chunk := filepath.Join(dir, fmt.Sprintf("chunk-%03d%s", i, filepath.Ext(audioFile)))

		out, err := exec.CommandContext(ctx, "ffmpeg",
			"-hide_banner", "-loglevel", "error",
			"-ss", formatSeconds(start),
			"-t", strconv.Itoa(chunkSeconds),
			"-i", audioFile,
			"-c", "copy",
			chunk).CombinedOutput()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("splitting audio: %w: %s", err, strings.TrimSpace(string(out)))
		}

		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("audio shorter than its leading silence")
	}

	return chunks, cleanup, nil
}

func probeDuration(ctx context.Context, audioFile string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		audioFile).Output()
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w: %s", err, exitStderr(err))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration: %w", err)
	}

	return duration, nil
}

var silenceEndRegex = regexp.MustCompile(`silence_end:\s*([0-9.]+)`)
var silenceStartRegex = regexp.MustCompile(`silence_start:\s*([0-9.]+)`)

// detectLeadingSilence returns the end of an initial silent stretch, or 0
// when the audio starts with speech.
func detectLeadingSilence(ctx context.Context, audioFile string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-i", audioFile,
		"-af", "silencedetect=noise=-35dB:d=1",
		"-f", "null", "-").CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("silence detection: %w", err)
	}

	return parseLeadingSilence(string(out)), nil
}

// parseLeadingSilence reads the detector log: only a silent stretch that
// starts at the very beginning counts.
func parseLeadingSilence(log string) float64 {
	start := silenceStartRegex.FindStringSubmatch(log)
	if start == nil {
		return 0
	}

	startSec, err := strconv.ParseFloat(start[1], 64)
	if err != nil || startSec > 0.5 {
		return 0
	}

	end := silenceEndRegex.FindStringSubmatch(log)
	if end == nil {
		return 0
	}

	endSec, err := strconv.ParseFloat(end[1], 64)
	if err != nil {
		return 0
	}

	return endSec
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}
