// Package importance estimates permutation-based variable importance: how
// much a fitted model's test error degrades when one predictor's values are
// randomly reordered against the rest of the subset.
package importance

import (
	"fmt"
	"math/rand/v2"

	"spatialcv/internal/frame"
	"spatialcv/internal/measure"
)

// Record maps a variable name to its averaged importance: per metric, the
// mean over permutation trials of (baseline value - permuted value). For an
// error metric this is negative when the variable is informative, since
// permuting it raises the error above the baseline. A variable absent from
// the record produced no scoreable trial at all.
type Record map[string]measure.Record

// Drop reports a variable that ended up absent from a Record, with the
// reason from its last failed trial.
type Drop struct {
	Variable string
	Reason   string
}

// Engine assesses one fold. Predict and Score are the same opaque callbacks
// the fold evaluation used; the engine never reseeds its random source, it
// only consumes the stream handed to Assess.
type Engine struct {
	Predict func(model any, data *frame.Frame) (frame.Column, error)
	Score   measure.Fn

	// Variables are the predictors to perturb.
	Variables []string
	// Trials is the permutation count P.
	Trials int
}

// Assess runs the permutation trials against the pristine (unperturbed) test
// subset and the baseline test error record.
//
// One row permutation is drawn per trial and shared by every variable in
// that trial: scoring all variables against the same realized reordering
// controls for that reordering's own effect on the metric and lowers the
// variance of the estimate relative to independent draws per variable.
func (e *Engine) Assess(model any, test *frame.Frame, response string, baseline measure.Record, rnd *rand.Rand) (Record, []Drop, error) {
	if e.Trials < 1 {
		return nil, nil, fmt.Errorf("importance: trial count %d < 1", e.Trials)
	}
	if len(e.Variables) == 0 {
		return Record{}, nil, nil
	}
	obs, ok := test.Column(response)
	if !ok {
		return nil, nil, fmt.Errorf("importance: response %q not in test subset", response)
	}

	n := test.NumRows()
	sums := make(map[string]measure.Record, len(e.Variables))
	counts := make(map[string]int, len(e.Variables))
	lastFail := make(map[string]string, len(e.Variables))

	for trial := 0; trial < e.Trials; trial++ {
		perm := rnd.Perm(n)
		for _, v := range e.Variables {
			permuted, err := test.WithReordered(v, perm)
			if err != nil {
				// Unknown variable: no trial can ever succeed, fail fast.
				return nil, nil, fmt.Errorf("importance: %w", err)
			}
			rec, err := e.scoreTrial(model, permuted, obs)
			if err != nil {
				lastFail[v] = err.Error()
				continue
			}
			sum, seen := sums[v]
			if !seen {
				sum = make(measure.Record, len(baseline))
				sums[v] = sum
			}
			for metric, base := range baseline {
				if pv, ok := rec[metric]; ok {
					sum[metric] += base - pv
				}
			}
			counts[v]++
		}
	}

	out := make(Record, len(e.Variables))
	var drops []Drop
	for _, v := range e.Variables {
		c := counts[v]
		if c == 0 {
			drops = append(drops, Drop{Variable: v, Reason: lastFail[v]})
			continue
		}
		mean := make(measure.Record, len(sums[v]))
		for metric, s := range sums[v] {
			mean[metric] = s / float64(c)
		}
		out[v] = mean
	}
	return out, drops, nil
}

// scoreTrial predicts on the permuted subset and scores against the true
// response, converting callback panics into per-trial failures.
func (e *Engine) scoreTrial(model any, permuted *frame.Frame, obs frame.Column) (rec measure.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("callback panic: %v", r)
		}
	}()
	pred, err := e.Predict(model, permuted)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	rec, err = e.Score(obs, pred)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	return rec, nil
}
