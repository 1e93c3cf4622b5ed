package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isaac2077/XiangShan/rar"
)

var version = rar.Version

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := rar.GetInfo()
		fmt.Printf("rarsim %s\n", info.Version)
		fmt.Printf("  hazard: %s\n", info.Hazard)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
