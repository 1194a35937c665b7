package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spatialcv"
)

func newPlanCmd() *cobra.Command {
	var (
		rows        int
		folds       int
		repetitions int
		bootstrap   bool
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the partition layout a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   spatialcv.Plan
				err error
			)
			if bootstrap {
				p, err = spatialcv.Bootstrap(rows, repetitions, seed)
			} else {
				p, err = spatialcv.KFold(rows, folds, repetitions, seed)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "repetition\tfold\ttrain\ttest")
			for _, rep := range p {
				for fi, fold := range rep.Folds {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", rep.Label, fi, len(fold.Train), len(fold.Test))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "row count of the data set (required)")
	cmd.Flags().IntVar(&folds, "folds", 10, "folds per repetition")
	cmd.Flags().IntVar(&repetitions, "repetitions", 1, "repetition count")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", false, "bootstrap plan instead of k-fold")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "shuffle seed")
	_ = cmd.MarkFlagRequired("rows")
	return cmd
}
