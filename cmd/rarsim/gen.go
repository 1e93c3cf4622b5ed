package main

import (
	"github.com/spf13/cobra"

	"github.com/isaac2077/XiangShan/internal/sim"
)

var genCfg = sim.DefaultGenConfig()

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genCfg.Entries, "entries", genCfg.Entries, "Queue slot count")
	cmd.Flags().IntVar(&genCfg.Lanes, "lanes", genCfg.Lanes, "Load lane count")
	cmd.Flags().IntVar(&genCfg.Steps, "steps", genCfg.Steps, "Trace length in steps")
	cmd.Flags().IntVar(&genCfg.Lines, "lines", genCfg.Lines, "Distinct cache lines in the address pool")
	cmd.Flags().IntVar(&genCfg.LoadRate, "load-rate", genCfg.LoadRate, "Per-lane load chance (%)")
	cmd.Flags().IntVar(&genCfg.ExemptRate, "exempt-rate", genCfg.ExemptRate, "Uncached load chance (%)")
	cmd.Flags().IntVar(&genCfg.ReleaseRate, "release-rate", genCfg.ReleaseRate, "Per-step release chance (%)")
	cmd.Flags().IntVar(&genCfg.FlushRate, "flush-rate", genCfg.FlushRate, "Per-step flush chance (%)")
	cmd.Flags().IntVar(&genCfg.RevokeRate, "revoke-rate", genCfg.RevokeRate, "Per-lane revoke chance (%)")
	cmd.Flags().IntVar(&genCfg.Window, "window", genCfg.Window, "Retirement frontier lag in sequence numbers")
	cmd.Flags().Int64Var(&genCfg.Seed, "seed", genCfg.Seed, "Generator seed")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen <trace>",
		Short: "Generate a synthetic trace",
		Long: `The gen command emits a synthetic trace of load traffic: per-lane loads
drawn from a small cache-line pool, release events, an advancing
retirement frontier, and occasional flushes and revokes. The same seed
always produces the same trace.

Example:
  rarsim gen trace.json
  rarsim gen trace.json --steps 5000 --lines 8 --seed 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sim.Save(args[0], sim.Generate(genCfg))
		},
	}
}
