package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/config"
	"github.com/Aman-CERP/bmdb/internal/wal"
)

func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Checkpoint the write-ahead log, collapsing old MVCC versions",
		Long: `compact only applies to storage_kind: wal. It truncates every key's
version chain down to what is still reachable from an open snapshot, then
rewrites the WAL file to its header and a single checkpoint record.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StorageKind != config.StorageWAL {
				fmt.Fprintf(cmd.OutOrStdout(), "storage_kind is %q, nothing to compact\n", cfg.StorageKind)
				return nil
			}

			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			st, ok := db.Storage.(*wal.Store)
			if !ok {
				return fmt.Errorf("compact: storage_kind wal did not produce a *wal.Store")
			}
			if err := st.Checkpoint(); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "checkpoint complete")
			return nil
		},
	}
	return cmd
}
