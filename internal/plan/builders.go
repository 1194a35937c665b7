package plan

import (
	"fmt"

	"spatialcv/internal/rng"
)

// KFold builds a plan of `repetitions` independent k-fold splits over numRows
// rows. Each repetition shuffles the row order with its own substream of the
// seed, then deals rows round-robin into k folds, so fold sizes differ by at
// most one. Identical inputs always yield an identical plan.
func KFold(numRows, k, repetitions int, seed uint64) (Plan, error) {
	if numRows < 2 {
		return nil, invalidf("need at least 2 rows, have %d", numRows)
	}
	if k < 2 || k > numRows {
		return nil, invalidf("fold count %d outside [2,%d]", k, numRows)
	}
	if repetitions < 1 {
		return nil, invalidf("need at least 1 repetition, have %d", repetitions)
	}

	p := make(Plan, repetitions)
	for r := 0; r < repetitions; r++ {
		order := rng.Substream(seed, uint64(r)).Perm(numRows)

		assign := make([][]int, k)
		for i, row := range order {
			f := i % k
			assign[f] = append(assign[f], row)
		}

		folds := make([]Fold, k)
		for f := 0; f < k; f++ {
			test := assign[f]
			train := make([]int, 0, numRows-len(test))
			for g := 0; g < k; g++ {
				if g != f {
					train = append(train, assign[g]...)
				}
			}
			folds[f] = Fold{Train: train, Test: test}
		}
		p[r] = Repetition{Label: fmt.Sprintf("cv-%d", r+1), Folds: folds}
	}
	return p, nil
}

// Bootstrap builds a plan of `repetitions` bootstrap resamples: each
// repetition holds a single fold whose train set is numRows draws with
// replacement and whose test set is the out-of-bag rows. Repetitions whose
// bag happens to cover every row are redrawn, so the test set is never empty.
func Bootstrap(numRows, repetitions int, seed uint64) (Plan, error) {
	if numRows < 2 {
		return nil, invalidf("need at least 2 rows, have %d", numRows)
	}
	if repetitions < 1 {
		return nil, invalidf("need at least 1 repetition, have %d", repetitions)
	}

	p := make(Plan, repetitions)
	for r := 0; r < repetitions; r++ {
		stream := rng.Substream(seed, uint64(r))
		var train []int
		var test []int
		for {
			train = make([]int, numRows)
			drawn := make([]bool, numRows)
			for i := range train {
				row := stream.IntN(numRows)
				train[i] = row
				drawn[row] = true
			}
			test = test[:0]
			for row, in := range drawn {
				if !in {
					test = append(test, row)
				}
			}
			if len(test) > 0 {
				break
			}
		}
		p[r] = Repetition{
			Label: fmt.Sprintf("boot-%d", r+1),
			Folds: []Fold{{Train: train, Test: append([]int(nil), test...)}},
		}
	}
	return p, nil
}
