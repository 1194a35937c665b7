package eval

import (
	"errors"
	"fmt"

	"spatialcv/internal/importance"
	"spatialcv/internal/measure"
)

// Sentinel kinds for per-fold failures. In strict mode these become fatal
// and surface through FoldError; in tolerant mode they are absorbed into the
// fold's outcome.
var (
	ErrFitFailure   = errors.New("model fit failed")
	ErrScoreFailure = errors.New("scoring failed")
)

// FoldError is the fatal form of a per-fold failure (strict mode only).
type FoldError struct {
	Kind       error
	Repetition int
	Fold       int
	Msg        string
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("repetition %d fold %d: %s: %s", e.Repetition, e.Fold, e.Kind.Error(), e.Msg)
}

func (e *FoldError) Unwrap() error { return e.Kind }

// Status tags how a fold's evaluation ended.
type Status int

const (
	// StatusOK: the fold produced a test error record.
	StatusOK Status = iota
	// StatusFitFailed: the fitting callback failed; no error, no importance.
	StatusFitFailed
	// StatusScoreFailed: the model fitted but the test subset could not be
	// scored; no error, no importance.
	StatusScoreFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFitFailed:
		return "fit-failed"
	case StatusScoreFailed:
		return "score-failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// FoldOutcome is the tagged per-fold result. Absent records are nil, never
// zero-valued: a fold that failed carries Status != StatusOK plus a Reason,
// while a computed zero is a non-nil record with zero values.
type FoldOutcome struct {
	Status Status
	// Reason describes the failure when Status != StatusOK.
	Reason string

	// Train is the train-subset error record; nil unless train error was
	// requested and computed.
	Train measure.Record
	// Test is the test-subset error record; nil when absent.
	Test measure.Record
	// Importance is the fold's permutation importance; nil when importance
	// was not requested or could not run.
	Importance importance.Record
}

// OK reports whether the fold produced a test error.
func (o FoldOutcome) OK() bool { return o.Status == StatusOK }

// PooledError is one repetition's error over the concatenation of all its
// folds' observation/prediction pairs, in fold order.
type PooledError struct {
	// Train is nil unless both pooling and train error were requested.
	Train measure.Record
	// Test is nil when no fold contributed scoreable pairs.
	Test measure.Record
}
