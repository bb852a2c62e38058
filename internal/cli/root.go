// Package cli provides the Cobra command structure for kotoba.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/kotoba/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the root kotoba command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	var debug bool
	var configPath string
	var color string

	rootCmd := &cobra.Command{
		Use:   "kotoba",
		Short: "A fast, plugin-driven natural-language linter",
		Long: `kotoba lints Markdown and plain-text documents with rules packaged as
sandboxed WebAssembly modules.

Rules receive the parsed document tree, morphological tokens, and sentence
boundaries, and report diagnostics against byte ranges of the source --
optionally with machine-applicable fixes. Results are cached incrementally,
so unchanged files and unmoved paragraphs cost nothing on re-runs.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debug {
				logging.SetLevel("debug")
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&color, "color", "auto",
		"colorize output: auto, always, never")

	// Add subcommands.
	rootCmd.AddCommand(newLintCommand(&configPath, &color))
	rootCmd.AddCommand(newRulesCommand(&configPath))
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newVersionCommand(info))

	// Apply styled help formatting.
	helpFormatter := NewHelpFormatter(color, os.Stdout)
	helpFormatter.ApplyToCommand(rootCmd)

	return rootCmd
}
