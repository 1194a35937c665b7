// Package cli wires the spatialcv command tree. Commands canonicalize their
// inputs up front, run the engine, and render plain-text tables; all engine
// behavior stays in the library packages.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes reported by Main.
const (
	ExitOK            = 0
	ExitUsageError    = 2
	ExitRunError      = 1
	ExitInternalError = 70
)

type rootFlags struct {
	verbose bool
}

// NewRootCmd builds the command tree. The logger is constructed lazily so
// --verbose takes effect before any subcommand runs.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var logger *zap.Logger

	root := &cobra.Command{
		Use:           "spatialcv",
		Short:         "Assess model-fitting procedures by cross-validation and bootstrap",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if flags.verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger = zap.NewNop()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log engine progress to stderr")

	getLogger := func() *zap.Logger { return logger }
	root.AddCommand(newRunCmd(getLogger))
	root.AddCommand(newPlanCmd())
	return root
}

// Main runs the command tree against args and maps the outcome to an exit
// code. It never calls os.Exit itself.
func Main(args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		root.PrintErrln("spatialcv:", err)
		return ExitRunError
	}
	return ExitOK
}
