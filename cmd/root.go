// Package cmd defines the CLI commands for the carharvest executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carharvest",
		Short: "A resumable used-vehicle marketplace harvester.",
		Long: `carharvest walks a marketplace city by city, renders each city's
listing page, extracts every vehicle's detail record, and appends the
results to a checkpoint store. Cities already present in the store are
skipped, so an interrupted run picks up where it left off.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults plus CARHARVEST_* env)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newPlanCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
