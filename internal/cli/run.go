package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spatialcv"
	"spatialcv/internal/frame"
	"spatialcv/internal/measure"
)

type runFlags struct {
	data       string
	config     string
	response   string
	predictors []string

	folds       int
	repetitions int
	bootstrap   bool
	seed        uint64
	importance  bool
}

func newRunCmd(getLogger func() *zap.Logger) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the builtin baseline model over a resampling plan",
		Long: `Run cross-validates the builtin baseline model on a CSV data set:
the training-mean predictor for a numeric response, the majority-level
predictor for a categorical one. Engine options come from an optional
YAML configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssessment(cmd, flags, getLogger())
		},
	}
	cmd.Flags().StringVar(&flags.data, "data", "", "CSV file with a header row (required)")
	cmd.Flags().StringVar(&flags.config, "config", "", "YAML engine configuration")
	cmd.Flags().StringVar(&flags.response, "response", "", "response column (required)")
	cmd.Flags().StringSliceVar(&flags.predictors, "predictors", nil, "predictor columns (default: all other columns)")
	cmd.Flags().IntVar(&flags.folds, "folds", 10, "folds per repetition")
	cmd.Flags().IntVar(&flags.repetitions, "repetitions", 1, "repetition count")
	cmd.Flags().BoolVar(&flags.bootstrap, "bootstrap", false, "bootstrap plan instead of k-fold")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "override the configured seed")
	cmd.Flags().BoolVar(&flags.importance, "importance", false, "estimate permutation importance")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("response")
	return cmd
}

func runAssessment(cmd *cobra.Command, flags *runFlags, logger *zap.Logger) error {
	data, err := loadCSV(flags.data)
	if err != nil {
		return err
	}
	response, ok := data.Column(flags.response)
	if !ok {
		return fmt.Errorf("response %q not in %s", flags.response, flags.data)
	}

	predictors := flags.predictors
	if len(predictors) == 0 {
		for _, name := range data.Names() {
			if name != flags.response {
				predictors = append(predictors, name)
			}
		}
	}

	opts := spatialcv.DefaultOptions()
	if flags.config != "" {
		opts, err = spatialcv.LoadOptions(flags.config)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = flags.seed
	}
	if flags.importance {
		opts.Importance = true
	}
	if flags.bootstrap {
		opts.AllowOverlap = true
	}

	var p spatialcv.Plan
	if flags.bootstrap {
		p, err = spatialcv.Bootstrap(data.NumRows(), flags.repetitions, opts.Seed)
	} else {
		p, err = spatialcv.KFold(data.NumRows(), flags.folds, flags.repetitions, opts.Seed)
	}
	if err != nil {
		return err
	}

	engine := &spatialcv.Engine{
		Data:      data,
		Plan:      p,
		Variables: spatialcv.Variables{Response: flags.response, Predictors: predictors},
		Callbacks: baselineCallbacks(response),
		Options:   opts,
		Logger:    logger,
	}
	bundle, warns, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}
	for _, w := range warns {
		cmd.PrintErrln("warning:", w.String())
	}
	renderBundle(cmd, bundle)
	return nil
}

// baselineCallbacks picks the builtin baseline by response kind.
func baselineCallbacks(response frame.Column) spatialcv.Callbacks {
	if response.Kind() == frame.KindFactor {
		return spatialcv.Callbacks{Fit: majorityFit, Predict: majorityPredict, Score: spatialcv.FactorSummary}
	}
	return spatialcv.Callbacks{Fit: meanFit, Predict: meanPredict, Score: spatialcv.NumericSummary}
}

func meanFit(vars spatialcv.Variables, train *spatialcv.Dataset, _ map[string]any) (any, error) {
	col, ok := train.Column(vars.Response)
	if !ok {
		return nil, fmt.Errorf("response %q missing from training subset", vars.Response)
	}
	vals := col.(*frame.Numeric).Values()
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), nil
}

func meanPredict(model any, data *spatialcv.Dataset, _ map[string]any) (spatialcv.Column, error) {
	out := make([]float64, data.NumRows())
	for i := range out {
		out[i] = model.(float64)
	}
	return frame.NewNumeric("prediction", out), nil
}

func majorityFit(vars spatialcv.Variables, train *spatialcv.Dataset, _ map[string]any) (any, error) {
	col, ok := train.Column(vars.Response)
	if !ok {
		return nil, fmt.Errorf("response %q missing from training subset", vars.Response)
	}
	counts := map[string]int{}
	for _, v := range col.(*frame.Factor).Values() {
		counts[v]++
	}
	// Ties break to the smaller level so the model is deterministic.
	var best string
	for level, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && level < best) {
			best = level
		}
	}
	return best, nil
}

func majorityPredict(model any, data *spatialcv.Dataset, _ map[string]any) (spatialcv.Column, error) {
	out := make([]string, data.NumRows())
	for i := range out {
		out[i] = model.(string)
	}
	return frame.NewFactor("prediction", out), nil
}

func renderBundle(cmd *cobra.Command, bundle *spatialcv.Bundle) {
	metrics := collectMetrics(bundle)

	if bundle.Errors != nil {
		cmd.Println("Per-fold test error")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "repetition\tfold\tstatus\t"+strings.Join(metrics, "\t"))
		for _, rep := range bundle.Errors {
			for fi, fold := range rep.Folds {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", rep.Label, fi, fold.Status, recordCells(fold.Test, metrics))
			}
		}
		w.Flush()
	}

	if bundle.Pooled != nil {
		cmd.Println("\nPooled test error")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "repetition\t"+strings.Join(metrics, "\t"))
		for i, pooled := range bundle.Pooled {
			fmt.Fprintf(w, "%s\t%s\n", bundle.Plan[i].Label, recordCells(pooled.Test, metrics))
		}
		w.Flush()
	}

	if bundle.Importance != nil {
		cmd.Println("\nPermutation importance (mean over folds)")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "repetition\tvariable\t"+strings.Join(metrics, "\t"))
		for _, rep := range bundle.Importance {
			for _, variable := range importanceVariables(rep) {
				mean := meanImportance(rep, variable)
				fmt.Fprintf(w, "%s\t%s\t%s\n", rep.Label, variable, recordCells(mean, metrics))
			}
		}
		w.Flush()
	}

	if b := bundle.Benchmark; b != nil {
		cmd.Printf("\nrun %s: %s on %s/%s, %d workers, %d cores\n",
			b.RunID, b.Duration, b.Backend, b.Policy, b.Workers, b.Cores)
	}
}

// collectMetrics gathers every metric name seen anywhere in the bundle so
// all tables share one column layout.
func collectMetrics(bundle *spatialcv.Bundle) []string {
	seen := map[string]struct{}{}
	add := func(rec spatialcv.Record) {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	for _, rep := range bundle.Errors {
		for _, fold := range rep.Folds {
			add(fold.Test)
			add(fold.Train)
		}
	}
	for _, pooled := range bundle.Pooled {
		add(pooled.Test)
		add(pooled.Train)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func recordCells(rec spatialcv.Record, metrics []string) string {
	cells := make([]string, len(metrics))
	for i, m := range metrics {
		if rec == nil {
			cells[i] = "-"
			continue
		}
		v, ok := rec[m]
		if !ok {
			cells[i] = "-"
			continue
		}
		cells[i] = fmt.Sprintf("%.6g", v)
	}
	return strings.Join(cells, "\t")
}

func importanceVariables(rep spatialcv.RepetitionImportance) []string {
	seen := map[string]struct{}{}
	for _, rec := range rep.Folds {
		for v := range rec {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// meanImportance averages a variable's importance over the folds that
// produced one.
func meanImportance(rep spatialcv.RepetitionImportance, variable string) spatialcv.Record {
	sums := measure.Record{}
	count := 0
	for _, rec := range rep.Folds {
		vr, ok := rec[variable]
		if !ok {
			continue
		}
		for m, v := range vr {
			sums[m] += v
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for m := range sums {
		sums[m] /= float64(count)
	}
	return sums
}
