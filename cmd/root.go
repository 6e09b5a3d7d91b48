// Package cmd defines and implements the CLI commands for the
// gutenberg-pipeline executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gutenberg-pipeline",
		Short: "Mirrors the Project Gutenberg catalog into Postgres.",
		Long: `gutenberg-pipeline ingests the Project Gutenberg RDF catalog, parses
per-book metadata, fetches and cleans each book's plain text, and
upserts structured records into a relational store keyed by book id.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with prefix GUTENBERG also apply)")

	cmd.AddCommand(newRunCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
