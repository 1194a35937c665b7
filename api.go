package spatialcv

import (
	"spatialcv/internal/config"
	"spatialcv/internal/dispatch"
	"spatialcv/internal/eval"
	"spatialcv/internal/frame"
	"spatialcv/internal/importance"
	"spatialcv/internal/measure"
	"spatialcv/internal/plan"
	"spatialcv/internal/result"
	"spatialcv/internal/runlog"
)

// Data set types.
type (
	Dataset       = frame.Frame
	Column        = frame.Column
	NumericColumn = frame.Numeric
	FactorColumn  = frame.Factor
)

// NewDataset assembles a data set from columns of equal length.
func NewDataset(cols ...Column) (*Dataset, error) { return frame.New(cols...) }

// Numeric builds a numeric column, copying values.
func Numeric(name string, values []float64) *NumericColumn { return frame.NewNumeric(name, values) }

// Factor builds a categorical column, copying values.
func Factor(name string, values []string) *FactorColumn { return frame.NewFactor(name, values) }

// Resampling plans.
type (
	Plan       = plan.Plan
	Repetition = plan.Repetition
	Fold       = plan.Fold
)

// ErrInvalidPlan tags partition layouts rejected by validation.
var ErrInvalidPlan = plan.ErrInvalidPlan

// KFold partitions numRows rows into k folds, repeated with fresh shuffles.
func KFold(numRows, k, repetitions int, seed uint64) (Plan, error) {
	return plan.KFold(numRows, k, repetitions, seed)
}

// Bootstrap draws train sets with replacement; the out-of-bag rows form the
// test set of each repetition.
func Bootstrap(numRows, repetitions int, seed uint64) (Plan, error) {
	return plan.Bootstrap(numRows, repetitions, seed)
}

// Model callbacks.
type (
	Variables   = eval.Variables
	Callbacks   = eval.Callbacks
	FitFunc     = eval.FitFunc
	PredictFunc = eval.PredictFunc
	Transform   = eval.Transform
)

// Error measures.
type (
	Record    = measure.Record
	MeasureFn = measure.Fn
)

// Metric names used by the builtin measures.
const (
	MetricBias     = measure.MetricBias
	MetricMAE      = measure.MetricMAE
	MetricRMSE     = measure.MetricRMSE
	MetricMSE      = measure.MetricMSE
	MetricCount    = measure.MetricCount
	MetricAccuracy = measure.MetricAccuracy
	MetricError    = measure.MetricError
)

// NumericSummary is the builtin measure for numeric responses: bias, MAE,
// RMSE, MSE and count.
func NumericSummary(obs, pred Column) (Record, error) { return measure.NumericSummary(obs, pred) }

// FactorSummary is the builtin measure for categorical responses: accuracy,
// error rate and count.
func FactorSummary(obs, pred Column) (Record, error) { return measure.FactorSummary(obs, pred) }

// Per-fold outcomes and failure tagging.
type (
	Status      = eval.Status
	FoldOutcome = eval.FoldOutcome
	FoldError   = eval.FoldError
	PooledError = eval.PooledError
)

const (
	StatusOK          = eval.StatusOK
	StatusFitFailed   = eval.StatusFitFailed
	StatusScoreFailed = eval.StatusScoreFailed
)

var (
	ErrFitFailure   = eval.ErrFitFailure
	ErrScoreFailure = eval.ErrScoreFailure
)

// ImportanceRecord maps variable name to the per-metric mean importance.
type ImportanceRecord = importance.Record

// WorkerInitFunc prepares one pool worker before it processes any
// repetition.
type WorkerInitFunc = dispatch.InitFunc

// Configuration.
type (
	Options       = config.Options
	Warning       = config.Warning
	BackendKind   = config.Backend
	PolicyKind    = config.Policy
	GCGranularity = config.GCGranularity
)

const (
	BackendSerial = config.BackendSerial
	BackendPool   = config.BackendPool

	PolicyStatic   = config.PolicyStatic
	PolicyBalanced = config.PolicyBalanced

	GCNone          = config.GCNone
	GCPerRepetition = config.GCPerRepetition
	GCPerFold       = config.GCPerFold

	DefaultTrials = config.DefaultTrials
)

// ErrValidation tags configuration and input errors caught before dispatch.
var ErrValidation = config.ErrValidation

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options { return config.Default() }

// LoadOptions reads a YAML configuration file over the defaults.
func LoadOptions(path string) (Options, error) { return config.Load(path) }

// Results.
type (
	Bundle               = result.Bundle
	Benchmark            = result.Benchmark
	ErrorEntry           = result.ErrorEntry
	RepetitionErrors     = result.RepetitionErrors
	RepetitionImportance = result.RepetitionImportance
	Event                = runlog.Event
	EventKind            = runlog.Kind
)

// Run log event kinds.
const (
	EventFoldEvaluated     = runlog.EventFoldEvaluated
	EventFitFailed         = runlog.EventFitFailed
	EventScoreFailed       = runlog.EventScoreFailed
	EventTrainScoreFailed  = runlog.EventTrainScoreFailed
	EventPooledScoreFailed = runlog.EventPooledScoreFailed
	EventImportanceDropped = runlog.EventImportanceDropped
	EventImportanceSkipped = runlog.EventImportanceSkipped
)
