// Package spatialcv assesses model-fitting procedures by cross-validation
// and bootstrap resampling.
//
// A run is described by three pieces: a Dataset of named columns, a Plan of
// repetitions and folds over its row indices, and Callbacks that fit a
// model, predict from it, and score predictions against observations. The
// Engine evaluates every fold of every repetition, optionally pools each
// repetition's predictions for a combined score, and can estimate
// permutation importance per predictor.
//
// Repetitions are independent and run in parallel on a worker pool. Every
// repetition draws from its own random substream, fixed before dispatch, so
// results are bit-identical for a given seed regardless of worker count or
// scheduling policy. Output tables are always in plan order.
//
// By default fold failures are tolerated: a fold whose fit or score fails
// is recorded as absent and the run continues. Strict mode promotes such
// failures to errors that abort the batch.
package spatialcv
