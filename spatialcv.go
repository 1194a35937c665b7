package spatialcv

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spatialcv/internal/config"
	"spatialcv/internal/dispatch"
	"spatialcv/internal/eval"
	"spatialcv/internal/result"
	"spatialcv/internal/rng"
)

// Engine assesses a model-fitting procedure over a resampling plan. All
// fields except Logger are required; the zero Options value is not valid,
// start from DefaultOptions.
type Engine struct {
	Data      *Dataset
	Plan      Plan
	Variables Variables
	Callbacks Callbacks
	Options   Options
	// WorkerInit, when set, runs on every pool worker before it takes its
	// first repetition (per-worker resources, library warmup).
	WorkerInit WorkerInitFunc
	Logger     *zap.Logger
}

// Run evaluates every repetition of the plan and returns the assembled
// bundle together with any configuration corrections that were applied.
//
// Run blocks until the whole batch completes. Output order always equals
// plan order; completion order of parallel workers is not observable in the
// bundle. In tolerant mode (the default) per-fold failures yield absent
// entries; in strict mode, and on worker failure, the batch aborts with no
// partial results.
func (e *Engine) Run(ctx context.Context) (*Bundle, []Warning, error) {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts, warns, err := e.Options.Normalize()
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warns {
		log.Warn("configuration corrected", zap.String("field", w.Field), zap.String("reason", w.Msg))
	}

	if err := e.validate(opts); err != nil {
		return nil, warns, err
	}

	// Substreams are fixed here, before any worker starts drawing: the
	// stream a repetition consumes is a pure function of (seed, index).
	streams := rng.Streams(opts.Seed, len(e.Plan))

	runner := &eval.Runner{
		Data:           e.Data,
		Vars:           e.Variables,
		Cb:             e.Callbacks,
		UnpooledError:  opts.UnpooledError,
		PooledError:    opts.PooledError,
		TrainError:     opts.TrainError,
		Importance:     opts.Importance,
		ImportanceVars: opts.ImportanceVariables,
		Trials:         opts.Trials,
		Strict:         opts.Strict,
		GCPerFold:      opts.GC == config.GCPerFold,
		Logger:         log,
	}

	backend, workers := pickBackend(opts, e.WorkerInit, len(e.Plan), log)
	results := make([]eval.RepResult, len(e.Plan))
	task := func(ctx context.Context, i int) error {
		rr, err := runner.RunRepetition(ctx, i, e.Plan[i], streams[i])
		if err != nil {
			return err
		}
		results[i] = rr
		if opts.GC == config.GCPerRepetition {
			runtime.GC()
		}
		return nil
	}

	log.Info("dispatching assessment",
		zap.Int("repetitions", len(e.Plan)),
		zap.String("backend", backend.Name()),
		zap.Int("workers", workers),
		zap.Uint64("seed", opts.Seed))

	start := time.Now()
	if err := backend.Run(ctx, len(e.Plan), task); err != nil {
		return nil, warns, err
	}
	end := time.Now()

	var bench *Benchmark
	if opts.Benchmarks {
		bench = &result.Benchmark{
			RunID:    uuid.NewString(),
			Start:    start,
			End:      end,
			Duration: end.Sub(start),
			Cores:    runtime.GOMAXPROCS(0),
			Backend:  backend.Name(),
			Policy:   string(opts.Policy),
			Workers:  workers,
		}
	}

	bundle, err := result.Assemble(e.Plan, results, opts.UnpooledError, opts.PooledError, opts.Importance, bench)
	if err != nil {
		return nil, warns, err
	}
	log.Info("assessment complete",
		zap.Int("repetitions", len(e.Plan)),
		zap.Duration("elapsed", end.Sub(start)))
	return bundle, warns, nil
}

// validate checks everything that can be caught before dispatch.
func (e *Engine) validate(opts Options) error {
	if e.Data == nil {
		return fmt.Errorf("%w: data set is required", ErrValidation)
	}
	if err := e.Callbacks.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if e.Variables.Response == "" {
		return fmt.Errorf("%w: response variable is required", ErrValidation)
	}
	if _, ok := e.Data.Column(e.Variables.Response); !ok {
		return fmt.Errorf("%w: response %q not in data set", ErrValidation, e.Variables.Response)
	}
	if opts.Importance {
		vars := opts.ImportanceVariables
		if len(vars) == 0 {
			vars = e.Variables.Predictors
		}
		if len(vars) == 0 {
			return fmt.Errorf("%w: importance requested but no predictors named", ErrValidation)
		}
		for _, v := range vars {
			if _, ok := e.Data.Column(v); !ok {
				return fmt.Errorf("%w: importance variable %q not in data set", ErrValidation, v)
			}
		}
	}
	if err := e.Plan.Validate(e.Data.NumRows(), opts.AllowOverlap); err != nil {
		return err
	}
	return nil
}

// pickBackend maps the configuration onto a dispatch backend and reports the
// effective worker count.
func pickBackend(opts Options, init WorkerInitFunc, n int, log *zap.Logger) (dispatch.Backend, int) {
	if opts.Backend == config.BackendSerial || opts.Workers == 1 {
		return dispatch.Serial{Init: init}, 1
	}
	pool := dispatch.Pool{
		Workers: opts.Workers,
		Policy:  dispatch.Policy(opts.Policy),
		Init:    init,
		Logger:  log,
	}
	return pool, pool.Size(n)
}

// Run is the convenience entry point over a one-shot Engine.
func Run(ctx context.Context, data *Dataset, p Plan, vars Variables, cb Callbacks, opts Options) (*Bundle, []Warning, error) {
	e := &Engine{Data: data, Plan: p, Variables: vars, Callbacks: cb, Options: opts}
	return e.Run(ctx)
}
