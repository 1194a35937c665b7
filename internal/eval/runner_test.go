package eval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spatialcv/internal/frame"
	"spatialcv/internal/measure"
	"spatialcv/internal/plan"
	"spatialcv/internal/rng"
	"spatialcv/internal/runlog"
)

// meanFit trains the toy constant predictor: it memorizes the mean of the
// training response.
func meanFit(vars Variables, train *frame.Frame, _ map[string]any) (any, error) {
	c, ok := train.Column(vars.Response)
	if !ok {
		return nil, fmt.Errorf("no response %q", vars.Response)
	}
	vals := c.(*frame.Numeric).Values()
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), nil
}

func meanPredict(model any, data *frame.Frame, _ map[string]any) (frame.Column, error) {
	mean := model.(float64)
	out := make([]float64, data.NumRows())
	for i := range out {
		out[i] = mean
	}
	return frame.NewNumeric("pred", out), nil
}

func nineRowData(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewNumeric("x", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}),
		frame.NewNumeric("y", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}),
	)
	require.NoError(t, err)
	return f
}

func threeFoldRep() plan.Repetition {
	return plan.Repetition{
		Label: "cv-1",
		Folds: []plan.Fold{
			{Train: []int{3, 4, 5, 6, 7, 8}, Test: []int{0, 1, 2}},
			{Train: []int{0, 1, 2, 6, 7, 8}, Test: []int{3, 4, 5}},
			{Train: []int{0, 1, 2, 3, 4, 5}, Test: []int{6, 7, 8}},
		},
	}
}

func baseRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Data: nineRowData(t),
		Vars: Variables{Response: "y", Predictors: []string{"x"}},
		Cb: Callbacks{
			Fit:     meanFit,
			Predict: meanPredict,
			Score:   measure.NumericSummary,
		},
		UnpooledError: true,
		PooledError:   true,
		Logger:        zap.NewNop(),
	}
}

func TestRunRepetition_EveryFoldScored(t *testing.T) {
	r := baseRunner(t)
	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)

	require.Len(t, res.Folds, 3)
	for i, out := range res.Folds {
		assert.True(t, out.OK(), "fold %d", i)
		assert.NotNil(t, out.Test, "fold %d test record", i)
		assert.Nil(t, out.Train, "train error was not requested")
		assert.Nil(t, out.Importance, "importance was not requested")
	}
	require.NotNil(t, res.Pooled.Test)
	assert.Nil(t, res.Pooled.Train)
	assert.Equal(t, 9.0, res.Pooled.Test[measure.MetricCount],
		"pooled record covers the concatenation of all folds")
}

func TestRunRepetition_PoolingIdentity(t *testing.T) {
	// The pooled record must equal a direct score over the concatenated
	// per-fold observation/prediction pairs, in fold order.
	r := baseRunner(t)
	rep := threeFoldRep()
	res, err := r.RunRepetition(context.Background(), 0, rep, rng.Substream(1, 0))
	require.NoError(t, err)

	var obs, pred []float64
	for _, fold := range rep.Folds {
		train, _ := r.Data.Select(fold.Train)
		model, ferr := meanFit(r.Vars, train, nil)
		require.NoError(t, ferr)
		test, _ := r.Data.Select(fold.Test)
		y, _ := test.Column("y")
		for range fold.Test {
			pred = append(pred, model.(float64))
		}
		obs = append(obs, y.(*frame.Numeric).Values()...)
	}
	want, err := measure.NumericSummary(frame.NewNumeric("obs", obs), frame.NewNumeric("pred", pred))
	require.NoError(t, err)
	assert.Equal(t, want, res.Pooled.Test)
}

func TestRunRepetition_TrainError(t *testing.T) {
	r := baseRunner(t)
	r.TrainError = true
	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)

	for i, out := range res.Folds {
		require.NotNil(t, out.Train, "fold %d", i)
		assert.Equal(t, 6.0, out.Train[measure.MetricCount])
	}
	require.NotNil(t, res.Pooled.Train)
	assert.Equal(t, 18.0, res.Pooled.Train[measure.MetricCount])
}

func TestRunRepetition_FitFailureIsAbsentNotZero(t *testing.T) {
	r := baseRunner(t)
	fits := 0
	r.Cb.Fit = func(vars Variables, train *frame.Frame, args map[string]any) (any, error) {
		fits++
		if fits == 2 {
			return nil, errors.New("singular matrix")
		}
		return meanFit(vars, train, args)
	}

	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)

	assert.True(t, res.Folds[0].OK())
	assert.True(t, res.Folds[2].OK())

	failed := res.Folds[1]
	assert.Equal(t, StatusFitFailed, failed.Status)
	assert.Contains(t, failed.Reason, "singular matrix")
	assert.Nil(t, failed.Test, "failed fold must be absent, not zero")
	assert.Nil(t, failed.Importance)

	// Pooling uses only the surviving folds.
	require.NotNil(t, res.Pooled.Test)
	assert.Equal(t, 6.0, res.Pooled.Test[measure.MetricCount])

	var kinds []runlog.Kind
	for _, e := range res.Events {
		if e.Fold == 1 {
			kinds = append(kinds, e.Kind)
		}
	}
	assert.Contains(t, kinds, runlog.EventFitFailed)
}

func TestRunRepetition_FitPanicIsAFitFailure(t *testing.T) {
	r := baseRunner(t)
	r.Cb.Fit = func(Variables, *frame.Frame, map[string]any) (any, error) {
		panic("exploding optimizer")
	}
	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)
	for _, out := range res.Folds {
		assert.Equal(t, StatusFitFailed, out.Status)
		assert.Contains(t, out.Reason, "panic")
	}
	assert.Nil(t, res.Pooled.Test, "no fold contributed pairs")
}

func TestRunRepetition_StrictModePromotesFitFailure(t *testing.T) {
	r := baseRunner(t)
	r.Strict = true
	r.Cb.Fit = func(Variables, *frame.Frame, map[string]any) (any, error) {
		return nil, errors.New("nope")
	}
	_, err := r.RunRepetition(context.Background(), 4, threeFoldRep(), rng.Substream(1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFitFailure))

	var fe *FoldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 4, fe.Repetition)
	assert.Equal(t, 0, fe.Fold)
}

func TestRunRepetition_ScoreFailureTolerated(t *testing.T) {
	r := baseRunner(t)
	// Test subsets have 3 rows, train subsets 6 and the pooled test set 9:
	// failing on 3-row columns hits exactly the per-fold test scoring.
	r.Cb.Score = func(obs, pred frame.Column) (measure.Record, error) {
		if obs.Len() == 3 {
			return nil, errors.New("metric undefined")
		}
		return measure.NumericSummary(obs, pred)
	}
	r.TrainError = true

	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)

	for i, out := range res.Folds {
		assert.Equal(t, StatusScoreFailed, out.Status, "fold %d", i)
		assert.Nil(t, out.Test)
		assert.NotNil(t, out.Train, "train record survives a test scoring failure")
	}
	assert.Nil(t, res.Pooled.Test, "failed folds contribute no pairs")
	require.NotNil(t, res.Pooled.Train)
}

func TestRunRepetition_StrictModePromotesScoreFailure(t *testing.T) {
	r := baseRunner(t)
	r.Strict = true
	r.Cb.Score = func(obs, pred frame.Column) (measure.Record, error) {
		return nil, errors.New("metric undefined")
	}
	_, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScoreFailure))
}

func TestRunRepetition_TransformsApplied(t *testing.T) {
	r := baseRunner(t)
	var trainSizes, testSizes []int
	// Halve every training subset; leave test subsets alone but observe them.
	r.Cb.TrainTransform = func(subset *frame.Frame) (*frame.Frame, error) {
		trainSizes = append(trainSizes, subset.NumRows())
		rows := make([]int, subset.NumRows()/2)
		for i := range rows {
			rows[i] = i
		}
		return subset.Select(rows)
	}
	r.Cb.TestTransform = func(subset *frame.Frame) (*frame.Frame, error) {
		testSizes = append(testSizes, subset.NumRows())
		return subset, nil
	}
	r.TrainError = true

	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{6, 6, 6}, trainSizes)
	assert.Equal(t, []int{3, 3, 3}, testSizes)
	for _, out := range res.Folds {
		assert.Equal(t, 3.0, out.Train[measure.MetricCount], "train scored on the transformed subset")
	}
}

func TestRunRepetition_TransformFailureIsAFitFailure(t *testing.T) {
	r := baseRunner(t)
	r.Cb.TrainTransform = func(*frame.Frame) (*frame.Frame, error) {
		return nil, errors.New("cannot rebalance")
	}
	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)
	for _, out := range res.Folds {
		assert.Equal(t, StatusFitFailed, out.Status)
		assert.Contains(t, out.Reason, "cannot rebalance")
	}
}

func TestRunRepetition_ImportanceAttachedPerFold(t *testing.T) {
	r := baseRunner(t)
	r.Importance = true
	r.Trials = 5

	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)
	for i, out := range res.Folds {
		require.NotNil(t, out.Importance, "fold %d", i)
		require.Contains(t, out.Importance, "x")
		// The constant predictor ignores x, so its importance is exactly 0.
		assert.Zero(t, out.Importance["x"][measure.MetricMAE])
	}
}

func TestRunRepetition_ImportanceSkippedWithoutBaseline(t *testing.T) {
	r := baseRunner(t)
	r.Importance = true
	r.Trials = 5
	r.Cb.Fit = func(Variables, *frame.Frame, map[string]any) (any, error) {
		return nil, errors.New("nope")
	}

	res, err := r.RunRepetition(context.Background(), 0, threeFoldRep(), rng.Substream(1, 0))
	require.NoError(t, err)

	skips := 0
	for _, e := range res.Events {
		if e.Kind == runlog.EventImportanceSkipped {
			skips++
		}
	}
	assert.Equal(t, 3, skips)
}

func TestRunRepetition_ContextCancellation(t *testing.T) {
	r := baseRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RunRepetition(ctx, 0, threeFoldRep(), rng.Substream(1, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallbacksValidate(t *testing.T) {
	cb := Callbacks{}
	assert.Error(t, cb.Validate())
	cb.Fit = meanFit
	assert.Error(t, cb.Validate())
	cb.Predict = meanPredict
	assert.Error(t, cb.Validate())
	cb.Score = measure.NumericSummary
	assert.NoError(t, cb.Validate())
}
