// Package queue is the task fabric between the API and the worker: a
// Postgres-backed job queue with JSON-only payloads, at-least-once claim
// semantics and a bounded synchronous result wait on the submitting side.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/storage"
)

// Job type names on the wire.
const (
	JobVideoDownload = "file_export.video_download"
	JobPDFExport     = "file_export.pdf_export"
	JobTranscribe    = "file_export.transcribe"
)

var (
	// ErrJobFailed carries the worker-side failure message.
	ErrJobFailed = errors.New("job failed")

	// ErrJobTimeout indicates the bounded wait elapsed before a result.
	ErrJobTimeout = errors.New("job result wait timed out")
)

const defaultResultPoll = time.Second

// Store is the persistence surface the queue needs; *storage.DB satisfies it.
type Store interface {
	EnqueueJob(ctx context.Context, jobType string, payload []byte) (string, error)
	GetJob(ctx context.Context, id string) (*storage.Job, error)
}

type Queue struct {
	store      Store
	resultPoll time.Duration
	logger     *zerolog.Logger
}

func New(store Store, logger *zerolog.Logger) *Queue {
	return &Queue{store: store, resultPoll: defaultResultPoll, logger: logger}
}

// Submit enqueues a job with a JSON payload and returns its ID.
func (q *Queue) Submit(ctx context.Context, jobType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	id, err := q.store.EnqueueJob(ctx, jobType, data)
	if err != nil {
		return "", err
	}

	q.logger.Debug().Str("job_id", id).Str("type", jobType).Msg("job enqueued")

	return id, nil
}

// Wait polls for the job result until it is done, failed, or the timeout
// elapses. The result bytes are the worker's JSON return value.
func (q *Queue) Wait(ctx context.Context, id string, timeout time.Duration) ([]byte, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(q.resultPoll)
	defer ticker.Stop()

	for {
		job, err := q.store.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case storage.JobStatusDone:
			return job.Result, nil
		case storage.JobStatusFailed:
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrJobTimeout
		case <-ticker.C:
		}
	}
}

// RunSync submits a job and blocks on the result within the timeout,
// decoding the worker's JSON return into out.
func (q *Queue) RunSync(ctx context.Context, jobType string, payload, out any, timeout time.Duration) error {
	id, err := q.Submit(ctx, jobType, payload)
	if err != nil {
		return err
	}

	result, err := q.Wait(ctx, id, timeout)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode job result: %w", err)
	}

	return nil
}

// SetResultPoll overrides the result polling interval; used by tests.
func (q *Queue) SetResultPoll(d time.Duration) {
	q.resultPoll = d
}
