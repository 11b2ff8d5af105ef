// Package cmd provides the CLI commands for KeywordScout.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/keywordscout/keywordscout/internal/logging"
	"github.com/keywordscout/keywordscout/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the keywordscout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywordscout",
		Short: "Keyword discovery pipeline for Spanish-language SEO research",
		Long: `KeywordScout expands seed queries into scored, clustered keyword lists.

It harvests autocomplete, video, and related-search suggestions through an
adaptive rate limiter, deduplicates them, scores them with a percentile-rank
ensemble (or a frozen standardized formula), and groups them into semantic
clusters.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("keywordscout version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newExpandCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
