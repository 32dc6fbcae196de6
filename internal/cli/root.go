// Package cli provides the command-line interface for plagscan.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/plagscan/internal/config"
	"github.com/raphaelgruber/plagscan/internal/service"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and service
	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
	batchSvc    *service.BatchService
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "plagscan",
	Short: "Find similar submissions in an assignment archive",
	Long: `Plagscan extracts an archive of student submissions, scores every pair
of submissions for similarity and reports the pairs that cross a threshold.

Pairs scoring 90% or more are Identical, 75% to 90% Flagged, and anything
between the threshold and 75% Suspicious.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip service setup for version, help and shell completion
		switch cmd.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd:
			return nil
		}
		if cmd.HasParent() && cmd.Parent().Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// The report goes to stdout; keep the console quiet unless asked.
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		batchSvc, err = service.NewFromConfig(cfg, logger)
		if err != nil {
			return fmt.Errorf("init service: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(versionCmd)
}
