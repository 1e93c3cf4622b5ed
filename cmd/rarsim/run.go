package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/isaac2077/XiangShan/internal/lsq/rar"
	"github.com/isaac2077/XiangShan/internal/sim"
)

var runRecordPath string

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runRecordPath, "record", "", "Record per-step statistics to this SQLite database")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <trace>",
		Short: "Replay a trace through the queue",
		Long: `The run command loads a JSON trace, sizes a queue to match, and replays
the traffic step by step.

Example:
  rarsim run trace.json
  rarsim run trace.json --record stats.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(args[0])
		},
	}
}

func runTrace(path string) error {
	tr, err := sim.Load(path)
	if err != nil {
		return err
	}

	q, err := rar.New(tr.Config())
	if err != nil {
		return err
	}

	var rec sim.Recorder
	if runRecordPath != "" {
		rec, err = openSQLiteRecorder(runRecordPath)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	stats, err := sim.Run(q, tr, rec)
	if err != nil {
		return err
	}

	if !quiet {
		printSummary(path, tr, stats)
	}
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	valueStyle = lipgloss.NewStyle().Bold(true)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func printSummary(path string, tr *sim.Trace, stats sim.Stats) {
	if noColor {
		plain := lipgloss.NewStyle()
		titleStyle, labelStyle, valueStyle, alertStyle = plain, plain.Width(16), plain, plain
	}

	row := func(label, value string) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(value))
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("rarsim: %s (%d entries, %d lanes)",
		path, tr.Entries, tr.Lanes)))
	row("steps", strconv.Itoa(stats.Steps))
	row("admits", strconv.Itoa(stats.Admits))
	row("refusals", strconv.Itoa(stats.Refusals))
	row("releases", strconv.Itoa(stats.Releases))
	row("flushes", strconv.Itoa(stats.Flushes))
	row("max occupancy", strconv.Itoa(stats.MaxOccupancy))
	row("full steps", strconv.Itoa(stats.FullSteps))

	violations := strconv.Itoa(stats.Violations)
	if stats.Violations > 0 {
		violations = alertStyle.Render(violations + " (replay from fetch)")
	}
	row("violations", violations)
}
