package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "claude-batch",
		Short: "Claude Batch Pipeline - Sequential feature batch runner",
		Long: `Claude Batch Pipeline drives a list of features through a Claude Code
pipeline one at a time. Every state transition is persisted, so an
interrupted batch resumes exactly where it left off, and the final
report accounts for every feature.`,
		SilenceUsage: true,
	}
)

// errNotClean marks a run that finished but left failed or pending
// features. The report has already been printed when it is returned.
var errNotClean = errors.New("batch finished with failed or pending features")

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotClean) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps errors to the documented exit codes: 1 when the
// batch itself has failed or pending features, 2 for state or
// infrastructure errors.
func exitCodeFor(err error) int {
	if errors.Is(err, errNotClean) {
		return 1
	}
	var stateErr *statestore.StateError
	if errors.As(err, &stateErr) {
		return 2
	}
	return 2
}
