// Package plan defines resampling plans: ordered repetitions of train/test
// index partitions over a shared data set. Plans are produced up front
// (here, or by an external partitioner) and never mutated by the engine;
// their order fixes the output order of every result table.
package plan

import (
	"errors"
	"fmt"
)

// ErrInvalidPlan tags plan validation failures.
var ErrInvalidPlan = errors.New("invalid resampling plan")

// Fold is one train/test partition. Index sets need not be exhaustive;
// they are disjoint unless the plan's producer explicitly allows overlap.
type Fold struct {
	Train []int
	Test  []int
}

// Repetition is one ordered run of folds (for example one k-fold split).
type Repetition struct {
	Label string
	Folds []Fold
}

// Plan is the ordered sequence of repetitions. Insertion order is evaluation
// order is output order.
type Plan []Repetition

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...))
}

// Validate checks every fold against the data set size: indices in range,
// non-empty train and test sets, and train/test disjoint unless allowOverlap.
func (p Plan) Validate(numRows int, allowOverlap bool) error {
	if len(p) == 0 {
		return invalidf("no repetitions")
	}
	for ri, rep := range p {
		if len(rep.Folds) == 0 {
			return invalidf("repetition %d has no folds", ri)
		}
		for fi, fold := range rep.Folds {
			if len(fold.Train) == 0 {
				return invalidf("repetition %d fold %d has empty train set", ri, fi)
			}
			if len(fold.Test) == 0 {
				return invalidf("repetition %d fold %d has empty test set", ri, fi)
			}
			inTrain := make(map[int]struct{}, len(fold.Train))
			for _, idx := range fold.Train {
				if idx < 0 || idx >= numRows {
					return invalidf("repetition %d fold %d train index %d out of range [0,%d)", ri, fi, idx, numRows)
				}
				inTrain[idx] = struct{}{}
			}
			for _, idx := range fold.Test {
				if idx < 0 || idx >= numRows {
					return invalidf("repetition %d fold %d test index %d out of range [0,%d)", ri, fi, idx, numRows)
				}
				if _, overlap := inTrain[idx]; overlap && !allowOverlap {
					return invalidf("repetition %d fold %d: index %d in both train and test", ri, fi, idx)
				}
			}
		}
	}
	return nil
}

// NumFolds returns the fold count of every repetition, in order.
func (p Plan) NumFolds() []int {
	counts := make([]int, len(p))
	for i, rep := range p {
		counts[i] = len(rep.Folds)
	}
	return counts
}
