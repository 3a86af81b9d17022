// Package cmd provides the CLI commands for bmdb.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/logging"
	"github.com/Aman-CERP/bmdb/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()

	configDir string
)

// NewRootCmd creates the root command for the bmdb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bmdb",
		Short: "A schemaless document database with pluggable storage",
		Long: `bmdb stores schemaless documents with field, full-text, and vector
indexing over a pluggable storage backend (in-memory, binary, JSON, SQLite,
or write-ahead-logged).

Run 'bmdb init' in a directory to create a bmdb.yaml, then 'bmdb insert',
'bmdb get', 'bmdb search', 'bmdb explain', and 'bmdb browse' operate against
it.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("bmdb version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.bmdb/logs/")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory to load bmdb.yaml from")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newInsertCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newExplainCmd())
	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newBrowseCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
