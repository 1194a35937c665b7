package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collect(t *testing.T, b Backend, n int) []int {
	t.Helper()
	out := make([]int, n)
	err := b.Run(context.Background(), n, func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	return out
}

func squares(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i * i
	}
	return out
}

func TestSerial_RunsAllInOrder(t *testing.T) {
	var order []int
	err := Serial{}.Run(context.Background(), 5, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_ResultsAlignWithInputOrder(t *testing.T) {
	for _, policy := range []Policy{PolicyStatic, PolicyBalanced} {
		t.Run(string(policy), func(t *testing.T) {
			b := Pool{Workers: 4, Policy: policy}
			assert.Equal(t, squares(23), collect(t, b, 23))
		})
	}
}

func TestPool_EveryIndexExactlyOnce(t *testing.T) {
	for _, policy := range []Policy{PolicyStatic, PolicyBalanced} {
		t.Run(string(policy), func(t *testing.T) {
			n := 50
			counts := make([]int32, n)
			b := Pool{Workers: 8, Policy: policy}
			err := b.Run(context.Background(), n, func(_ context.Context, i int) error {
				atomic.AddInt32(&counts[i], 1)
				return nil
			})
			require.NoError(t, err)
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestPool_SizeCaps(t *testing.T) {
	max := runtime.GOMAXPROCS(0)

	assert.Equal(t, max, Pool{Workers: 0}.Size(1000), "zero means all units")
	assert.Equal(t, max, Pool{Workers: max + 50}.Size(1000), "capped at available units")
	assert.Equal(t, 3, Pool{Workers: 100}.Size(3), "never more workers than tasks")
	assert.Equal(t, 1, Pool{Workers: 1}.Size(1000))
}

func TestPool_SingleWorkerIsSequential(t *testing.T) {
	var order []int // no locking: single worker must mean a single goroutine
	b := Pool{Workers: 1, Policy: PolicyBalanced}
	err := b.Run(context.Background(), 10, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestPool_TaskErrorAbortsBatch(t *testing.T) {
	for _, policy := range []Policy{PolicyStatic, PolicyBalanced} {
		t.Run(string(policy), func(t *testing.T) {
			boom := errors.New("boom")
			var cancelled atomic.Bool
			b := Pool{Workers: 4, Policy: policy}
			err := b.Run(context.Background(), 100, func(ctx context.Context, i int) error {
				if i == 10 {
					return boom
				}
				select {
				case <-ctx.Done():
					cancelled.Store(true)
					return ctx.Err()
				case <-time.After(time.Millisecond):
				}
				return nil
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestPool_PanicIsWorkerFailure(t *testing.T) {
	b := Pool{Workers: 2, Policy: PolicyBalanced}
	err := b.Run(context.Background(), 8, func(_ context.Context, i int) error {
		if i == 3 {
			panic("worker crashed")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker failure")
	assert.Contains(t, err.Error(), "task 3")
}

func TestPool_UnknownPolicy(t *testing.T) {
	b := Pool{Workers: 2, Policy: Policy("psychic")}
	err := b.Run(context.Background(), 4, func(context.Context, int) error { return nil })
	assert.Error(t, err)
}

func TestPool_InitRunsOncePerWorker(t *testing.T) {
	for _, policy := range []Policy{PolicyStatic, PolicyBalanced} {
		t.Run(string(policy), func(t *testing.T) {
			var inits [64]atomic.Int32
			var tasksRun atomic.Int32
			b := Pool{
				Workers: 4,
				Policy:  policy,
				Init: func(_ context.Context, worker int) error {
					inits[worker].Add(1)
					return nil
				},
			}
			err := b.Run(context.Background(), 20, func(context.Context, int) error {
				tasksRun.Add(1)
				return nil
			})
			require.NoError(t, err)
			workers := b.Size(20)
			for w := 0; w < workers; w++ {
				assert.Equal(t, int32(1), inits[w].Load(), "worker %d", w)
			}
			for w := workers; w < len(inits); w++ {
				assert.Zero(t, inits[w].Load(), "worker %d", w)
			}
			assert.Equal(t, int32(20), tasksRun.Load())
		})
	}
}

func TestPool_InitErrorAbortsBatch(t *testing.T) {
	sick := errors.New("worker environment unavailable")
	b := Pool{
		Workers: 3,
		Policy:  PolicyBalanced,
		Init: func(_ context.Context, worker int) error {
			if worker == 1 {
				return sick
			}
			return nil
		},
	}
	err := b.Run(context.Background(), 30, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, sick)
}

func TestSerial_InitRunsFirst(t *testing.T) {
	var trace []string
	s := Serial{Init: func(context.Context, int) error {
		trace = append(trace, "init")
		return nil
	}}
	err := s.Run(context.Background(), 2, func(_ context.Context, i int) error {
		trace = append(trace, "task")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "task", "task"}, trace)
}

func TestRun_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := atomic.Int32{}
	err := Serial{}.Run(ctx, 5, func(context.Context, int) error {
		ran.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}
