package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job statuses.
const (
	JobStatusQueued  = "queued"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// ErrJobNotFound indicates an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// Job is one queued unit of worker work. Payload and Result are JSON-only.
type Job struct {
	ID         string
	Type       string
	Payload    []byte
	Status     string
	Result     []byte
	Error      string
	EnqueuedAt time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// EnqueueJob inserts a queued job and returns its ID.
func (db *DB) EnqueueJob(ctx context.Context, jobType string, payload []byte) (string, error) {
	id := uuid.NewString()

	const q = `
		INSERT INTO jobs (id, type, payload, status, enqueued_at)
		VALUES ($1, $2, $3, $4, now())`

	if _, err := db.Pool.Exec(ctx, q, id, jobType, payload, JobStatusQueued); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	return id, nil
}

// ClaimJob atomically claims the oldest queued job, if any. The SKIP LOCKED
// select keeps concurrent workers from double-claiming; delivery is
// at-least-once because a crashed worker's job is requeued by
// RequeueStaleJobs.
func (db *DB) ClaimJob(ctx context.Context) (*Job, error) {
	const q = `
		UPDATE jobs SET status = $1, started_at = now()
		WHERE id = (
			SELECT id FROM jobs WHERE status = $2
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, type, payload, enqueued_at`

	var job Job
	job.Status = JobStatusRunning

	err := db.Pool.QueryRow(ctx, q, JobStatusRunning, JobStatusQueued).
		Scan(&job.ID, &job.Type, &job.Payload, &job.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	return &job, nil
}

// CompleteJob stores the job result and marks it done.
func (db *DB) CompleteJob(ctx context.Context, id string, result []byte) error {
	const q = `UPDATE jobs SET status = $1, result = $2, finished_at = now() WHERE id = $3`

	if _, err := db.Pool.Exec(ctx, q, JobStatusDone, result, id); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	return nil
}

// FailJob marks the job failed with an error message.
func (db *DB) FailJob(ctx context.Context, id, message string) error {
	const q = `UPDATE jobs SET status = $1, error = $2, finished_at = now() WHERE id = $3`

	if _, err := db.Pool.Exec(ctx, q, JobStatusFailed, SanitizeUTF8(message), id); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}

	return nil
}

// GetJob fetches a job by ID.
func (db *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	const q = `
		SELECT id, type, payload, status, COALESCE(result, '{}'), COALESCE(error, ''),
		       enqueued_at, started_at, finished_at
		FROM jobs WHERE id = $1`

	var job Job

	err := db.Pool.QueryRow(ctx, q, id).Scan(
		&job.ID, &job.Type, &job.Payload, &job.Status, &job.Result, &job.Error,
		&job.EnqueuedAt, &job.StartedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	return &job, nil
}

// RequeueStaleJobs puts running jobs older than the cutoff back in the
// queue. Called by the worker loop on a timer.
func (db *DB) RequeueStaleJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	const q = `
		UPDATE jobs SET status = $1, started_at = NULL
		WHERE status = $2 AND started_at < now() - $3::interval`

	tag, err := db.Pool.Exec(ctx, q, JobStatusQueued, JobStatusRunning,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
