package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	quiet   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "rarsim",
	Short: "Simulate the load-load ordering-violation queue",
	Long: `rarsim replays load traffic through the load-load ordering-violation
queue of an out-of-order core model. It reports admissions, refusals,
backpressure and detected violations, and can record per-step statistics
to a SQLite database for later analysis.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
