// Package cmd wires the mordomo command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mordomo",
	Short: "Home Assistant bridge with a persistent job scheduler",
	Long: `mordomo keeps a store of cron-scheduled jobs and fires their action
lists against a Home Assistant instance: service calls, state reads,
area listings, and automation management.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
