package eval

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"go.uber.org/zap"

	"spatialcv/internal/frame"
	"spatialcv/internal/importance"
	"spatialcv/internal/measure"
	"spatialcv/internal/plan"
	"spatialcv/internal/runlog"
)

// Runner evaluates repetitions of a resampling plan. One Runner serves all
// repetitions of a run: it holds no per-repetition state, so it is safe for
// concurrent use by parallel workers.
type Runner struct {
	Data *frame.Frame
	Vars Variables
	Cb   Callbacks

	// UnpooledError requests per-fold test error records.
	UnpooledError bool
	// PooledError requests a repetition-level record over concatenated pairs.
	PooledError bool
	// TrainError additionally evaluates the training subset.
	TrainError bool

	// Importance enables permutation importance on folds with a baseline.
	Importance bool
	// ImportanceVars defaults to Vars.Predictors when empty.
	ImportanceVars []string
	// Trials is the permutation count per fold.
	Trials int

	// Strict promotes per-fold failures to fatal errors.
	Strict bool
	// GCPerFold forces a collection after every fold (memory hygiene for
	// large fitted models).
	GCPerFold bool

	Logger *zap.Logger
}

// RepResult is the output of one repetition: this is the unit of parallel
// dispatch, independent of every other repetition.
type RepResult struct {
	Index  int
	Folds  []FoldOutcome
	Pooled PooledError
	Events []runlog.Event
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// RunRepetition evaluates every fold of rep in order, then pools. The random
// stream rnd is the repetition's substream: it is consumed only by
// permutation draws and never reseeded.
func (r *Runner) RunRepetition(ctx context.Context, idx int, rep plan.Repetition, rnd *rand.Rand) (RepResult, error) {
	log := r.logger()
	rec := runlog.NewRecorder(idx)
	trainPool := &poolBuilder{}
	testPool := &poolBuilder{}

	outcomes := make([]FoldOutcome, len(rep.Folds))
	for fi, fold := range rep.Folds {
		if err := ctx.Err(); err != nil {
			return RepResult{}, err
		}
		out, err := r.evaluateFold(idx, fi, fold, rnd, rec, trainPool, testPool)
		if err != nil {
			return RepResult{}, err
		}
		outcomes[fi] = out
		if r.GCPerFold {
			runtime.GC()
		}
	}

	pooled := PooledError{}
	if r.PooledError {
		if !testPool.empty() {
			obs, pred := testPool.columns()
			pr, err := safeScore(r.Cb.Score, obs, pred)
			if err != nil {
				if r.Strict {
					return RepResult{}, &FoldError{Kind: ErrScoreFailure, Repetition: idx, Fold: -1, Msg: "pooled test: " + err.Error()}
				}
				rec.Record(runlog.EventPooledScoreFailed, -1, "", "test: "+err.Error())
				log.Warn("pooled test scoring failed",
					zap.Int("repetition", idx), zap.Error(err))
			} else {
				pooled.Test = pr
			}
		}
		if r.TrainError && !trainPool.empty() {
			obs, pred := trainPool.columns()
			pr, err := safeScore(r.Cb.Score, obs, pred)
			if err != nil {
				if r.Strict {
					return RepResult{}, &FoldError{Kind: ErrScoreFailure, Repetition: idx, Fold: -1, Msg: "pooled train: " + err.Error()}
				}
				rec.Record(runlog.EventPooledScoreFailed, -1, "", "train: "+err.Error())
			} else {
				pooled.Train = pr
			}
		}
	}

	log.Debug("repetition evaluated",
		zap.Int("repetition", idx),
		zap.String("label", rep.Label),
		zap.Int("folds", len(rep.Folds)))

	return RepResult{Index: idx, Folds: outcomes, Pooled: pooled, Events: rec.Events()}, nil
}

// evaluateFold runs one fold: fit, optional train error, test error, and
// optional permutation importance. Pairs for pooling are appended to the
// builders on success.
func (r *Runner) evaluateFold(repIdx, foldIdx int, fold plan.Fold, rnd *rand.Rand, rec *runlog.Recorder, trainPool, testPool *poolBuilder) (FoldOutcome, error) {
	log := r.logger()

	model, train, failReason := r.fitFold(fold)
	if failReason != "" {
		rec.Record(runlog.EventFitFailed, foldIdx, "", failReason)
		log.Warn("model fit failed",
			zap.Int("repetition", repIdx), zap.Int("fold", foldIdx), zap.String("reason", failReason))
		if r.Strict {
			return FoldOutcome{}, &FoldError{Kind: ErrFitFailure, Repetition: repIdx, Fold: foldIdx, Msg: failReason}
		}
		if r.Importance {
			rec.Record(runlog.EventImportanceSkipped, foldIdx, "", "model fit failed")
		}
		return FoldOutcome{Status: StatusFitFailed, Reason: failReason}, nil
	}

	out := FoldOutcome{Status: StatusOK}

	if r.TrainError {
		trainRec, obs, pred, err := r.scoreSubset(model, train)
		if err != nil {
			rec.Record(runlog.EventTrainScoreFailed, foldIdx, "", err.Error())
			log.Warn("train scoring failed",
				zap.Int("repetition", repIdx), zap.Int("fold", foldIdx), zap.Error(err))
			if r.Strict {
				return FoldOutcome{}, &FoldError{Kind: ErrScoreFailure, Repetition: repIdx, Fold: foldIdx, Msg: "train: " + err.Error()}
			}
		} else {
			out.Train = trainRec
			if r.PooledError {
				if perr := trainPool.add(obs, pred); perr != nil {
					return FoldOutcome{}, &FoldError{Kind: ErrScoreFailure, Repetition: repIdx, Fold: foldIdx, Msg: perr.Error()}
				}
			}
		}
	}

	test, reason := r.testSubset(fold)
	if reason == "" {
		testRec, obs, pred, err := r.scoreSubset(model, test)
		if err != nil {
			reason = err.Error()
		} else {
			if r.UnpooledError {
				out.Test = testRec
			}
			if r.PooledError {
				if perr := testPool.add(obs, pred); perr != nil {
					return FoldOutcome{}, &FoldError{Kind: ErrScoreFailure, Repetition: repIdx, Fold: foldIdx, Msg: perr.Error()}
				}
			}
		}
	}
	if reason != "" {
		rec.Record(runlog.EventScoreFailed, foldIdx, "", reason)
		log.Warn("test scoring failed",
			zap.Int("repetition", repIdx), zap.Int("fold", foldIdx), zap.String("reason", reason))
		if r.Strict {
			return FoldOutcome{}, &FoldError{Kind: ErrScoreFailure, Repetition: repIdx, Fold: foldIdx, Msg: reason}
		}
		if r.Importance {
			rec.Record(runlog.EventImportanceSkipped, foldIdx, "", "no baseline test error")
		}
		out.Status = StatusScoreFailed
		out.Reason = reason
		return out, nil
	}

	if r.Importance && out.Test != nil {
		// The test frame is pristine: permutation works on copies of it.
		imp, drops, err := r.assessImportance(model, test, out.Test, rnd)
		if err != nil {
			if r.Strict {
				return FoldOutcome{}, &FoldError{Kind: ErrScoreFailure, Repetition: repIdx, Fold: foldIdx, Msg: "importance: " + err.Error()}
			}
			rec.Record(runlog.EventImportanceSkipped, foldIdx, "", err.Error())
			log.Warn("importance assessment failed",
				zap.Int("repetition", repIdx), zap.Int("fold", foldIdx), zap.Error(err))
		} else {
			for _, d := range drops {
				rec.Record(runlog.EventImportanceDropped, foldIdx, d.Variable, d.Reason)
			}
			out.Importance = imp
		}
	}

	rec.Record(runlog.EventFoldEvaluated, foldIdx, "", "")
	return out, nil
}

// fitFold builds the (possibly transformed) training subset and fits the
// model. A non-empty reason signals FIT_FAILURE.
func (r *Runner) fitFold(fold plan.Fold) (model any, train *frame.Frame, reason string) {
	train, err := r.Data.Select(fold.Train)
	if err != nil {
		return nil, nil, err.Error()
	}
	train, err = safeTransform(r.Cb.TrainTransform, train)
	if err != nil {
		return nil, nil, "train transform: " + err.Error()
	}
	model, err = safeFit(r.Cb.Fit, r.Vars, train, r.Cb.FitArgs)
	if err != nil {
		return nil, nil, err.Error()
	}
	return model, train, ""
}

// testSubset builds the (possibly transformed) test subset. A non-empty
// reason signals SCORE_FAILURE for the fold.
func (r *Runner) testSubset(fold plan.Fold) (*frame.Frame, string) {
	test, err := r.Data.Select(fold.Test)
	if err != nil {
		return nil, err.Error()
	}
	test, err = safeTransform(r.Cb.TestTransform, test)
	if err != nil {
		return nil, "test transform: " + err.Error()
	}
	return test, ""
}

// scoreSubset predicts on a subset and scores against its response column,
// returning the pair columns for pooling.
func (r *Runner) scoreSubset(model any, subset *frame.Frame) (measure.Record, frame.Column, frame.Column, error) {
	obs, ok := subset.Column(r.Vars.Response)
	if !ok {
		return nil, nil, nil, fmt.Errorf("response %q not in subset", r.Vars.Response)
	}
	pred, err := safePredict(r.Cb.Predict, model, subset, r.Cb.PredictArgs)
	if err != nil {
		return nil, nil, nil, err
	}
	rec, err := safeScore(r.Cb.Score, obs, pred)
	if err != nil {
		return nil, nil, nil, err
	}
	return rec, obs, pred, nil
}

// assessImportance wires the fold's callbacks into the importance engine.
func (r *Runner) assessImportance(model any, test *frame.Frame, baseline measure.Record, rnd *rand.Rand) (importance.Record, []importance.Drop, error) {
	vars := r.ImportanceVars
	if len(vars) == 0 {
		vars = r.Vars.Predictors
	}
	engine := &importance.Engine{
		Predict: func(m any, d *frame.Frame) (frame.Column, error) {
			return safePredict(r.Cb.Predict, m, d, r.Cb.PredictArgs)
		},
		Score: func(obs, pred frame.Column) (measure.Record, error) {
			return safeScore(r.Cb.Score, obs, pred)
		},
		Variables: vars,
		Trials:    r.Trials,
	}
	return engine.Assess(model, test, r.Vars.Response, baseline, rnd)
}
