// Package eval executes single train/test folds and whole repetitions
// against opaque, user-supplied model callbacks. It owns the tolerant/strict
// failure policy: in tolerant mode a failing fold yields an absent outcome
// and its siblings continue, in strict mode it aborts the batch.
package eval

import (
	"fmt"

	"spatialcv/internal/frame"
	"spatialcv/internal/measure"
)

// Variables names the response and the predictor columns handed to the
// fitting callback (the formula of the run).
type Variables struct {
	Response   string
	Predictors []string
}

// FitFunc trains a model on the training subset. The returned model is
// opaque to the engine and owned exclusively by the fold that produced it.
type FitFunc func(vars Variables, train *frame.Frame, args map[string]any) (any, error)

// PredictFunc produces one prediction per row of data.
type PredictFunc func(model any, data *frame.Frame, args map[string]any) (frame.Column, error)

// Transform optionally rewrites a train or test subset before use
// (resampling, rebalancing). It must return a new frame, never mutate its
// input.
type Transform func(subset *frame.Frame) (*frame.Frame, error)

// Callbacks bundles the collaborator functions of a run. Fit, Predict and
// Score are required; the transforms and argument maps are optional.
type Callbacks struct {
	Fit     FitFunc
	Predict PredictFunc
	Score   measure.Fn

	TrainTransform Transform
	TestTransform  Transform

	FitArgs     map[string]any
	PredictArgs map[string]any
}

// Validate checks the required callbacks are present.
func (c Callbacks) Validate() error {
	if c.Fit == nil {
		return fmt.Errorf("eval: Fit callback is required")
	}
	if c.Predict == nil {
		return fmt.Errorf("eval: Predict callback is required")
	}
	if c.Score == nil {
		return fmt.Errorf("eval: Score callback is required")
	}
	return nil
}

// The safe* wrappers shield the engine from panicking callbacks: a panic is
// converted into the corresponding failure kind for the fold under
// evaluation.

func safeFit(fit FitFunc, vars Variables, train *frame.Frame, args map[string]any) (m any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("fit panic: %v", r)
		}
	}()
	return fit(vars, train, args)
}

func safePredict(predict PredictFunc, model any, data *frame.Frame, args map[string]any) (c frame.Column, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("predict panic: %v", r)
		}
	}()
	return predict(model, data, args)
}

func safeScore(score measure.Fn, obs, pred frame.Column) (rec measure.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("score panic: %v", r)
		}
	}()
	return score(obs, pred)
}

func safeTransform(tr Transform, subset *frame.Frame) (out *frame.Frame, err error) {
	if tr == nil {
		return subset, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("transform panic: %v", r)
		}
	}()
	return tr(subset)
}
