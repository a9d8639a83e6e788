package extract

import (
	"errors"
	"fmt"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// ErrNoExtractor indicates no plug-in is registered for a source tag.
var ErrNoExtractor = errors.New("no extractor for source")

// ErrEmptyContent indicates the upstream returned nothing usable.
var ErrEmptyContent = errors.New("upstream returned empty content")

// ExtractionError wraps any failure inside an extractor. The registry does
// not retry; the caller renders it as a user-facing message.
type ExtractionError struct {
	Source domain.Source
	URL    string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Source, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func wrapErr(source domain.Source, url string, err error) error {
	if err == nil {
		return nil
	}

	return &ExtractionError{Source: source, URL: url, Err: err}
}
