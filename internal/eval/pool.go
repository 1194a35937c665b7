package eval

import (
	"fmt"

	"spatialcv/internal/frame"
)

// poolBuilder accumulates observation/prediction pairs across the folds of
// one repetition, in fold order. It is scoped to a single repetition's
// evaluation and discarded after pooling.
type poolBuilder struct {
	kind    frame.Kind
	started bool

	obsNum  []float64
	predNum []float64
	obsFac  []string
	predFac []string
}

// add appends one fold's pairs. Column kinds must agree across folds.
func (b *poolBuilder) add(obs, pred frame.Column) error {
	if obs.Kind() != pred.Kind() {
		return fmt.Errorf("pool: observations are %s but predictions are %s", obs.Kind(), pred.Kind())
	}
	if obs.Len() != pred.Len() {
		return fmt.Errorf("pool: %d observations vs %d predictions", obs.Len(), pred.Len())
	}
	if b.started && obs.Kind() != b.kind {
		return fmt.Errorf("pool: fold contributed %s pairs to a %s pool", obs.Kind(), b.kind)
	}
	b.kind = obs.Kind()
	b.started = true

	switch o := obs.(type) {
	case *frame.Numeric:
		b.obsNum = append(b.obsNum, o.Values()...)
		b.predNum = append(b.predNum, pred.(*frame.Numeric).Values()...)
	case *frame.Factor:
		b.obsFac = append(b.obsFac, o.Values()...)
		b.predFac = append(b.predFac, pred.(*frame.Factor).Values()...)
	default:
		return fmt.Errorf("pool: unsupported column kind %s", obs.Kind())
	}
	return nil
}

// empty reports whether no fold contributed any pairs.
func (b *poolBuilder) empty() bool { return !b.started }

// columns materializes the pooled observation and prediction columns.
// Factor levels are recomputed over the concatenation.
func (b *poolBuilder) columns() (obs, pred frame.Column) {
	if b.kind == frame.KindFactor {
		return frame.NewFactor("obs", b.obsFac), frame.NewFactor("pred", b.predFac)
	}
	return frame.NewNumeric("obs", b.obsNum), frame.NewNumeric("pred", b.predNum)
}
