// Package dispatch fans a task function out over the indices 0..n-1 under a
// selectable backend. The backend contract is a single capability: run every
// index exactly once and return only when all are done, so callers that
// write results[i] get output aligned with input order no matter when
// workers finish.
package dispatch

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task evaluates one index. A returned error aborts the whole batch: the
// context handed to tasks is cancelled and Run returns the first error.
type Task func(ctx context.Context, i int) error

// InitFunc prepares one worker before it processes any task (per-worker
// resources, library warmup). It runs exactly once per worker; an error
// aborts the batch before that worker takes a task.
type InitFunc func(ctx context.Context, worker int) error

// Policy selects how a pool assigns indices to workers.
type Policy string

const (
	// PolicyStatic pre-assigns indices round-robin: worker w gets
	// w, w+workers, w+2*workers, ... regardless of task durations.
	PolicyStatic Policy = "static"
	// PolicyBalanced hands a worker a new index as soon as it finishes the
	// previous one.
	PolicyBalanced Policy = "balanced"
)

// Backend maps a Task over n indices.
type Backend interface {
	Name() string
	Run(ctx context.Context, n int, task Task) error
}

// Serial executes indices in order on the calling goroutine. It is the
// degenerate one-worker mode and works on every platform.
type Serial struct {
	Init InitFunc
}

func (Serial) Name() string { return "serial" }

func (s Serial) Run(ctx context.Context, n int, task Task) error {
	if s.Init != nil {
		if err := s.Init(ctx, 0); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runTask(ctx, task, i); err != nil {
			return err
		}
	}
	return nil
}

// Pool executes tasks on a fixed-size shared-memory worker pool.
type Pool struct {
	// Workers is the pool size; it is capped at the number of available
	// processing units. Zero or negative means "use all units".
	Workers int
	Policy  Policy
	// Init, when set, runs on every worker before its first task.
	Init   InitFunc
	Logger *zap.Logger
}

func (p Pool) initWorker(ctx context.Context, worker int) error {
	if p.Init == nil {
		return nil
	}
	return p.Init(ctx, worker)
}

func (p Pool) Name() string { return "pool" }

// Size returns the effective pool size for n tasks.
func (p Pool) Size(n int) int {
	w := p.Workers
	if max := runtime.GOMAXPROCS(0); w <= 0 || w > max {
		w = max
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

func (p Pool) Run(ctx context.Context, n int, task Task) error {
	workers := p.Size(n)
	if p.Logger != nil {
		p.Logger.Debug("dispatching batch",
			zap.Int("tasks", n),
			zap.Int("workers", workers),
			zap.String("policy", string(p.Policy)))
	}
	switch p.Policy {
	case PolicyStatic, PolicyBalanced, "":
	default:
		return fmt.Errorf("dispatch: unknown scheduling policy %q", p.Policy)
	}
	if workers == 1 {
		return Serial{Init: p.Init}.Run(ctx, n, task)
	}
	if p.Policy == PolicyStatic {
		return p.runStatic(ctx, n, workers, task)
	}
	return p.runBalanced(ctx, n, workers, task)
}

// runStatic starts exactly `workers` goroutines, each owning a pre-assigned
// slice of the index space.
func (p Pool) runStatic(ctx context.Context, n, workers int, task Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			if err := p.initWorker(gctx, w); err != nil {
				return err
			}
			for i := w; i < n; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := runTask(gctx, task, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// runBalanced feeds indices to a fixed set of workers over a channel: a
// worker takes the next index as soon as it finishes the previous one.
func (p Pool) runBalanced(ctx context.Context, n, workers int, task Task) error {
	indices := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			if err := p.initWorker(gctx, w); err != nil {
				return err
			}
			for i := range indices {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := runTask(gctx, task, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < n; i++ {
			select {
			case indices <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	return g.Wait()
}

// runTask guards a single task invocation: a panic escaping a task is a
// worker failure and must abort the batch as an error rather than kill the
// process.
func runTask(ctx context.Context, task Task, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: worker failure on task %d: %v", i, r)
		}
	}()
	return task(ctx, i)
}
