// Package cmd provides CLI commands for the drover tool.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is the drover version, overridable at build time with
// -ldflags "-X .../internal/cmd.Version=...".
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:     "drover",
	Short:   "Drover - durable mailbox and recovery for agent fleets",
	Version: Version,
	Long: `Drover coordinates a fleet of agents through a durable, sequenced
file mailbox and keeps them alive with heartbeat monitoring and
automatic recovery.

A workspace ("yard") is any directory containing drover.toml; all
mailbox, status, and recovery state lives under it.`,
}

// Execute runs the root command and returns an exit code for main.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error.
		return 1
	}
	return 0
}
