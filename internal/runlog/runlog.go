// Package runlog collects the deterministic, observational event log of an
// assessment run: why a fold has no error record, which importance variables
// were dropped, and which folds evaluated cleanly.
//
// Invariants:
//   - Events capture logical decisions only: no timestamps, no pointers, no
//     runtime-dependent values, so two runs with the same seed produce the
//     same log regardless of worker count or completion order.
//   - The log is observational and must never affect execution behavior.
package runlog

import "sort"

// Kind is the stable discriminator for an Event. The string values are part
// of the log's canonical form; do not rename.
type Kind string

const (
	// EventFoldEvaluated marks a fold whose test error was computed.
	EventFoldEvaluated Kind = "FoldEvaluated"
	// EventFitFailed marks a fold whose model-fitting callback failed.
	EventFitFailed Kind = "FitFailed"
	// EventScoreFailed marks a fold whose test-subset scoring failed.
	EventScoreFailed Kind = "ScoreFailed"
	// EventTrainScoreFailed marks a fold whose train-subset scoring failed
	// while the test subset still evaluated.
	EventTrainScoreFailed Kind = "TrainScoreFailed"
	// EventImportanceDropped marks a variable whose every permutation trial
	// failed scoring in a fold.
	EventImportanceDropped Kind = "ImportanceDropped"
	// EventImportanceSkipped marks a fold where importance never ran because
	// the fold produced no baseline test error.
	EventImportanceSkipped Kind = "ImportanceSkipped"
	// EventPooledScoreFailed marks a repetition whose pooled pairs could not
	// be scored. Fold is -1 for repetition-level events.
	EventPooledScoreFailed Kind = "PooledScoreFailed"
)

var kindRank = map[Kind]int{
	EventFoldEvaluated:     0,
	EventFitFailed:         1,
	EventScoreFailed:       2,
	EventTrainScoreFailed:  3,
	EventImportanceSkipped: 4,
	EventImportanceDropped: 5,
	EventPooledScoreFailed: 6,
}

// Event is a single logical fact about a run.
type Event struct {
	Kind       Kind
	Repetition int
	Fold       int
	// Variable names the importance variable concerned, when applicable.
	Variable string
	// Reason is a stable failure description. Producers must keep reasons
	// free of runtime-dependent detail (addresses, goroutine ids).
	Reason string
}

// Recorder is an append-only collector scoped to a single repetition, so it
// needs no locking: folds within a repetition execute sequentially.
type Recorder struct {
	rep    int
	events []Event
}

// NewRecorder creates a recorder for the given repetition index.
func NewRecorder(rep int) *Recorder { return &Recorder{rep: rep} }

// Record appends an event, stamping the recorder's repetition index.
func (r *Recorder) Record(kind Kind, fold int, variable, reason string) {
	if r == nil {
		return
	}
	r.events = append(r.events, Event{
		Kind:       kind,
		Repetition: r.rep,
		Fold:       fold,
		Variable:   variable,
		Reason:     reason,
	})
}

// Events returns the recorded events in recording order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Canonicalize sorts events into their canonical total order:
// (repetition, fold, kind rank, variable, reason). The order is independent
// of execution timing and concurrency.
func Canonicalize(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Repetition != b.Repetition {
			return a.Repetition < b.Repetition
		}
		if a.Fold != b.Fold {
			return a.Fold < b.Fold
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		if a.Variable != b.Variable {
			return a.Variable < b.Variable
		}
		return a.Reason < b.Reason
	})
	return out
}
