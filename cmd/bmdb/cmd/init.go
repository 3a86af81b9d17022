package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/config"
)

func newInitCmd() *cobra.Command {
	var storageKind string
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a bmdb.yaml configuration file",
		Long: `Write a bmdb.yaml configuration file into --config-dir with the
requested storage backend, ready for 'bmdb insert'/'get'/'search' to use.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewConfig()
			if storageKind != "" {
				cfg.StorageKind = config.StorageKind(storageKind)
			}
			if path != "" {
				cfg.Path = path
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := filepath.Join(configDir, "bmdb.yaml")
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", out)
			}

			if err := cfg.WriteYAML(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (storage_kind: %s, path: %s)\n", out, cfg.StorageKind, cfg.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&storageKind, "storage-kind", "", "memory|binary|json|sqlite|wal (default: binary)")
	cmd.Flags().StringVar(&path, "path", "", "Database file path (default: bmdb.db)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing bmdb.yaml")

	return cmd
}
