package postprocess

import (
	"context"
	"fmt"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// ItemSaver is the persistence surface of the storage layer.
type ItemSaver interface {
	SaveItem(ctx context.Context, item *domain.ExtractedItem) error
}

// persistStage records the finished item. It runs last so the row captures
// the telegraph URL and any transcript appended by earlier stages.
type persistStage struct {
	saver     ItemSaver
	defaultOn bool
}

func NewPersistStage(saver ItemSaver, defaultOn bool) Stage {
	return &persistStage{saver: saver, defaultOn: defaultOn}
}

func (s *persistStage) Name() string { return "persist" }

func (s *persistStage) Applies(_ *domain.ExtractedItem, opts domain.Options) bool {
	return s.defaultOn || opts.StoreDatabase
}

func (s *persistStage) Run(ctx context.Context, item *domain.ExtractedItem, _ domain.Options) error {
	if err := s.saver.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("persisting item: %w", err)
	}

	return nil
}
