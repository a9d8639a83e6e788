// Package postprocess runs the best-effort stage chain between extraction
// and shaping: long-form publishing, document export, transcription and
// persistence. A stage failure is logged and counted but never aborts the
// chain; the item always reaches the shaper.
package postprocess

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/observability"
)

// Stage is one best-effort step. Applies decides per item and option bag;
// Run mutates the item in place.
type Stage interface {
	Name() string
	Applies(item *domain.ExtractedItem, opts domain.Options) bool
	Run(ctx context.Context, item *domain.ExtractedItem, opts domain.Options) error
}

// Pipeline runs its stages in order. Stage order is fixed at construction:
// the telegraph stage must precede the document stage because the exported
// document embeds the snapshot link.
type Pipeline struct {
	stages []Stage
	logger *zerolog.Logger
}

func NewPipeline(logger *zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run applies every stage to the item. Failed stages leave their output
// fields zero-valued and the chain continues.
func (p *Pipeline) Run(ctx context.Context, item *domain.ExtractedItem, opts domain.Options) {
	for _, stage := range p.stages {
		if !stage.Applies(item, opts) {
			continue
		}

		if err := stage.Run(ctx, item, opts); err != nil {
			observability.PostProcessStageFailures.WithLabelValues(stage.Name()).Inc()
			p.logger.Warn().Err(err).
				Str("stage", stage.Name()).
				Str("url", item.URL).
				Msg("post-process stage failed")
		}
	}
}
