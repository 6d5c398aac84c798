// Package cli implements the command-line interface using Cobra: one
// subcommand per operator-facing capability (§6 CLI surface).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ssecore",
	Short: "sse-core — SETI observation control plane",
	Long: `sse-core coordinates telescope, IF-chain, and detector hardware to run
a continuous program of radio SETI observations: it chooses targets,
tunes detectors onto unobserved bandwidth, drives each observation through
to completion, and records what was seen.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
