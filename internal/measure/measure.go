// Package measure defines the error-record type produced by scoring and the
// builtin observation-vs-prediction summaries. Custom measures plug in
// through the Fn contract; the engine never looks inside one.
package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"spatialcv/internal/frame"
)

// Record maps a metric name to its scalar value. A nil Record means "absent":
// the scoring step never ran or failed. A non-nil Record with zero values is
// a computed result; callers must keep the two apart.
type Record map[string]float64

// Clone returns a copy of the record, preserving nil-ness.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fn scores predictions against observations. Implementations must not
// mutate either column and must return an error (not a partial record) when
// they cannot score.
type Fn func(obs, pred frame.Column) (Record, error)

// Builtin metric names.
const (
	MetricBias     = "bias"
	MetricMAE      = "mae"
	MetricRMSE     = "rmse"
	MetricMSE      = "mse"
	MetricCount    = "count"
	MetricAccuracy = "accuracy"
	MetricError    = "error"
)

// NumericSummary scores numeric predictions: bias, MAE, MSE, RMSE and the
// observation count.
func NumericSummary(obs, pred frame.Column) (Record, error) {
	o, p, err := numericPair(obs, pred)
	if err != nil {
		return nil, err
	}

	n := len(o)
	res := make([]float64, n)
	abs := make([]float64, n)
	sq := make([]float64, n)
	for i := range o {
		d := p[i] - o[i]
		res[i] = d
		abs[i] = math.Abs(d)
		sq[i] = d * d
	}

	mse := stat.Mean(sq, nil)
	return Record{
		MetricBias:  stat.Mean(res, nil),
		MetricMAE:   stat.Mean(abs, nil),
		MetricMSE:   mse,
		MetricRMSE:  math.Sqrt(mse),
		MetricCount: float64(n),
	}, nil
}

// FactorSummary scores categorical predictions: accuracy, misclassification
// error and the observation count.
func FactorSummary(obs, pred frame.Column) (Record, error) {
	o, ok := obs.(*frame.Factor)
	if !ok {
		return nil, fmt.Errorf("measure: observations are %s, want factor", obs.Kind())
	}
	p, ok := pred.(*frame.Factor)
	if !ok {
		return nil, fmt.Errorf("measure: predictions are %s, want factor", pred.Kind())
	}
	ov, pv := o.Values(), p.Values()
	if len(ov) != len(pv) {
		return nil, fmt.Errorf("measure: %d observations vs %d predictions", len(ov), len(pv))
	}
	if len(ov) == 0 {
		return nil, fmt.Errorf("measure: empty columns")
	}

	hits := 0
	for i := range ov {
		if ov[i] == pv[i] {
			hits++
		}
	}
	acc := float64(hits) / float64(len(ov))
	return Record{
		MetricAccuracy: acc,
		MetricError:    1 - acc,
		MetricCount:    float64(len(ov)),
	}, nil
}

// ForColumn picks the builtin summary matching the response column kind.
func ForColumn(c frame.Column) Fn {
	if c.Kind() == frame.KindFactor {
		return FactorSummary
	}
	return NumericSummary
}

func numericPair(obs, pred frame.Column) ([]float64, []float64, error) {
	o, ok := obs.(*frame.Numeric)
	if !ok {
		return nil, nil, fmt.Errorf("measure: observations are %s, want numeric", obs.Kind())
	}
	p, ok := pred.(*frame.Numeric)
	if !ok {
		return nil, nil, fmt.Errorf("measure: predictions are %s, want numeric", pred.Kind())
	}
	if o.Len() != p.Len() {
		return nil, nil, fmt.Errorf("measure: %d observations vs %d predictions", o.Len(), p.Len())
	}
	if o.Len() == 0 {
		return nil, nil, fmt.Errorf("measure: empty columns")
	}
	return o.Values(), p.Values(), nil
}
