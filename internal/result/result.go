// Package result assembles per-repetition outputs into the final bundle.
// Assembly is pure restructuring: nothing is recomputed, nothing reordered,
// and repetitions that contain only failures keep their slot.
package result

import (
	"fmt"
	"time"

	"spatialcv/internal/eval"
	"spatialcv/internal/importance"
	"spatialcv/internal/measure"
	"spatialcv/internal/plan"
	"spatialcv/internal/runlog"
)

// Benchmark is optional run metadata.
type Benchmark struct {
	RunID    string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Cores    int
	Backend  string
	Policy   string
	Workers  int
}

// ErrorEntry is one fold's slot in the unpooled error table. Absent records
// are nil; Status and Reason say why.
type ErrorEntry struct {
	Status eval.Status
	Reason string
	Train  measure.Record
	Test   measure.Record
}

// RepetitionErrors is one row of the unpooled error table.
type RepetitionErrors struct {
	Label string
	Folds []ErrorEntry
}

// RepetitionImportance is one row of the importance table. A fold's entry is
// nil when importance could not run for it.
type RepetitionImportance struct {
	Label string
	Folds []importance.Record
}

// Bundle is the complete output of a run. Table slices are nil when the
// corresponding feature was disabled; when present their length equals the
// plan's repetition count.
type Bundle struct {
	Plan plan.Plan

	// Errors is the unpooled (per-fold) error table.
	Errors []RepetitionErrors
	// Pooled holds one pooled error per repetition.
	Pooled []eval.PooledError
	// Importance is the per-fold importance table.
	Importance []RepetitionImportance

	// Log is the canonicalized run event log.
	Log []runlog.Event

	// Benchmark is nil unless benchmark collection was requested.
	Benchmark *Benchmark
}

// Assemble builds the Bundle from repetition results in input order. reps[i]
// must be the output for p[i]; the dispatcher's order guarantee is relied
// upon here.
func Assemble(p plan.Plan, reps []eval.RepResult, unpooled, pooled, imp bool, bench *Benchmark) (*Bundle, error) {
	if len(reps) != len(p) {
		return nil, fmt.Errorf("result: %d repetition results for a %d-repetition plan", len(reps), len(p))
	}

	b := &Bundle{Plan: p, Benchmark: bench}
	var events []runlog.Event

	if unpooled {
		b.Errors = make([]RepetitionErrors, len(p))
	}
	if pooled {
		b.Pooled = make([]eval.PooledError, len(p))
	}
	if imp {
		b.Importance = make([]RepetitionImportance, len(p))
	}

	for i, rep := range reps {
		if len(rep.Folds) != len(p[i].Folds) {
			return nil, fmt.Errorf("result: repetition %d has %d fold outcomes for %d folds", i, len(rep.Folds), len(p[i].Folds))
		}
		if unpooled {
			row := RepetitionErrors{Label: p[i].Label, Folds: make([]ErrorEntry, len(rep.Folds))}
			for j, out := range rep.Folds {
				row.Folds[j] = ErrorEntry{
					Status: out.Status,
					Reason: out.Reason,
					Train:  out.Train,
					Test:   out.Test,
				}
			}
			b.Errors[i] = row
		}
		if pooled {
			b.Pooled[i] = rep.Pooled
		}
		if imp {
			row := RepetitionImportance{Label: p[i].Label, Folds: make([]importance.Record, len(rep.Folds))}
			for j, out := range rep.Folds {
				row.Folds[j] = out.Importance
			}
			b.Importance[i] = row
		}
		events = append(events, rep.Events...)
	}

	b.Log = runlog.Canonicalize(events)
	return b, nil
}
