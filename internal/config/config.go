// Package config holds the recognized options of an assessment run and the
// normalization step that resolves inconsistent settings to the most
// restrictive safe default, reporting every correction instead of silently
// ignoring it.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrValidation tags configuration errors caught before dispatch.
var ErrValidation = errors.New("invalid configuration")

// Backend names a parallel execution backend.
type Backend string

const (
	BackendSerial Backend = "serial"
	BackendPool   Backend = "pool"
)

// Policy names a pool scheduling policy.
type Policy string

const (
	PolicyStatic   Policy = "static"
	PolicyBalanced Policy = "balanced"
)

// GCGranularity selects when workers force a bulk memory reclamation.
type GCGranularity string

const (
	GCNone          GCGranularity = "none"
	GCPerRepetition GCGranularity = "repetition"
	GCPerFold       GCGranularity = "fold"
)

// DefaultTrials is the permutation count used when importance is requested
// without one.
const DefaultTrials = 1000

// Options is the full configuration surface of a run.
type Options struct {
	// UnpooledError requests the per-fold error table.
	UnpooledError bool `yaml:"unpooled_error"`
	// PooledError requests the per-repetition pooled error table.
	PooledError bool `yaml:"pooled_error"`
	// TrainError additionally evaluates training subsets.
	TrainError bool `yaml:"train_error"`

	// Importance enables permutation importance.
	Importance bool `yaml:"importance"`
	// ImportanceVariables defaults to all predictors when empty.
	ImportanceVariables []string `yaml:"importance_variables"`
	// Trials is the permutation count per fold.
	Trials int `yaml:"trials"`

	// Strict promotes per-fold failures to fatal errors.
	Strict bool `yaml:"strict"`
	// GC selects bulk memory reclamation granularity.
	GC GCGranularity `yaml:"gc"`

	Backend Backend `yaml:"backend"`
	// Workers is the pool size; 0 means all available processing units.
	Workers int    `yaml:"workers"`
	Policy  Policy `yaml:"policy"`

	// Seed roots every permutation substream of the run.
	Seed uint64 `yaml:"seed"`

	// Benchmarks attaches wall-clock and backend metadata to the result.
	Benchmarks bool `yaml:"benchmarks"`

	// AllowOverlap accepts plans whose train and test sets intersect.
	AllowOverlap bool `yaml:"allow_overlap"`
}

// Default returns the baseline configuration: both error tables, tolerant
// failure mode, load-balanced pool over all processing units.
func Default() Options {
	return Options{
		UnpooledError: true,
		PooledError:   true,
		Trials:        DefaultTrials,
		GC:            GCNone,
		Backend:       BackendPool,
		Policy:        PolicyBalanced,
	}
}

// Warning reports a configuration correction applied by Normalize.
type Warning struct {
	Field string
	Msg   string
}

func (w Warning) String() string { return w.Field + ": " + w.Msg }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Normalize validates the options and resolves inconsistencies, returning
// the corrected options and one warning per correction. Hard errors are
// reserved for settings with no safe interpretation.
func (o Options) Normalize() (Options, []Warning, error) {
	var warns []Warning

	switch o.Backend {
	case BackendSerial, BackendPool:
	case "":
		o.Backend = BackendPool
	default:
		return o, nil, invalidf("unknown backend %q", o.Backend)
	}
	switch o.Policy {
	case PolicyStatic, PolicyBalanced:
	case "":
		o.Policy = PolicyBalanced
	default:
		return o, nil, invalidf("unknown scheduling policy %q", o.Policy)
	}
	switch o.GC {
	case GCNone, GCPerRepetition, GCPerFold:
	case "":
		o.GC = GCNone
	default:
		return o, nil, invalidf("unknown gc granularity %q", o.GC)
	}

	if o.Workers < 0 {
		warns = append(warns, Warning{Field: "workers", Msg: fmt.Sprintf("negative pool size %d treated as automatic", o.Workers)})
		o.Workers = 0
	}
	if o.Backend == BackendSerial && o.Workers > 1 {
		warns = append(warns, Warning{Field: "workers", Msg: "serial backend ignores the pool size"})
		o.Workers = 1
	}

	if !o.UnpooledError && !o.PooledError && !o.Importance {
		return o, nil, invalidf("nothing to compute: enable unpooled error, pooled error or importance")
	}

	// Importance needs the per-fold test error as its baseline.
	if o.Importance && !o.UnpooledError {
		warns = append(warns, Warning{Field: "unpooled_error", Msg: "enabled: importance requires per-fold test errors as baselines"})
		o.UnpooledError = true
	}
	// A train error record lives in the per-fold table.
	if o.TrainError && !o.UnpooledError && !o.PooledError {
		warns = append(warns, Warning{Field: "unpooled_error", Msg: "enabled: train error needs an error table to land in"})
		o.UnpooledError = true
	}

	if o.Importance {
		if o.Trials == 0 {
			warns = append(warns, Warning{Field: "trials", Msg: fmt.Sprintf("importance requested without a permutation count, using %d", DefaultTrials)})
			o.Trials = DefaultTrials
		}
		if o.Trials < 0 {
			return o, nil, invalidf("permutation count %d < 1", o.Trials)
		}
	}

	return o, warns, nil
}

// Load reads options from a YAML file over the defaults.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: %w", err)
	}
	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return opts, nil
}
