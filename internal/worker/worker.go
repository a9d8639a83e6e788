// Package worker is the task process: it claims queued jobs from the store,
// shells out to the media tooling, and writes JSON results back for the
// waiting API side.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/platform/config"
	"github.com/clipflow/clipflow/internal/platform/observability"
	"github.com/clipflow/clipflow/internal/storage"
)

// JobStore is the queue surface the worker consumes; *storage.DB satisfies it.
type JobStore interface {
	ClaimJob(ctx context.Context) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string, result []byte) error
	FailJob(ctx context.Context, id, message string) error
	RequeueStaleJobs(ctx context.Context, olderThan time.Duration) (int, error)
}

// Handler executes one job payload and returns the JSON-encodable result.
type Handler func(ctx context.Context, payload []byte) (any, error)

type Worker struct {
	cfg      *config.Config
	store    JobStore
	handlers map[string]Handler
	logger   *zerolog.Logger
}

func New(cfg *config.Config, store JobStore, logger *zerolog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    store,
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a job type.
func (w *Worker) Register(jobType string, handler Handler) {
	w.handlers[jobType] = handler
}

// Run polls for jobs until ctx is canceled. Stale running jobs (from a
// crashed worker) are requeued periodically; execution is bounded by the
// configured job timeout.
func (w *Worker) Run(ctx context.Context) error {
	poll := time.NewTicker(w.cfg.WorkerPollInterval)
	defer poll.Stop()

	requeue := time.NewTicker(time.Minute)
	defer requeue.Stop()

	w.logger.Info().Dur("poll_interval", w.cfg.WorkerPollInterval).Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-requeue.C:
			if n, err := w.store.RequeueStaleJobs(ctx, w.cfg.JobTimeout); err != nil {
				w.logger.Error().Err(err).Msg("stale job requeue failed")
			} else if n > 0 {
				w.logger.Warn().Int("count", n).Msg("requeued stale jobs")
			}
		case <-poll.C:
			w.drainQueue(ctx)
		}
	}
}

// drainQueue claims and runs jobs until the queue is empty.
func (w *Worker) drainQueue(ctx context.Context) {
	for {
		job, err := w.store.ClaimJob(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("job claim failed")
			return
		}

		if job == nil {
			return
		}

		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *storage.Job) {
	logger := w.logger.With().Str("job_id", job.ID).Str("type", job.Type).Logger()

	handler, ok := w.handlers[job.Type]
	if !ok {
		logger.Error().Msg("no handler for job type")
		w.failJob(ctx, job.ID, fmt.Sprintf("unknown job type %q", job.Type))

		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := handler(jobCtx, job.Payload)
	observability.JobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("job failed")
		w.failJob(ctx, job.ID, err.Error())

		return
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		w.failJob(ctx, job.ID, fmt.Sprintf("encoding result: %v", err))
		return
	}

	if err := w.store.CompleteJob(ctx, job.ID, encoded); err != nil {
		logger.Error().Err(err).Msg("job completion write failed")
		return
	}

	logger.Info().Dur("elapsed", time.Since(start)).Msg("job done")
}

func (w *Worker) failJob(ctx context.Context, id, message string) {
	if err := w.store.FailJob(ctx, id, message); err != nil {
		w.logger.Error().Err(err).Str("job_id", id).Msg("job failure write failed")
	}
}
