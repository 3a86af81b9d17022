package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statusInfo is the status command's renderable summary.
type statusInfo struct {
	StorageKind string `json:"storage_kind"`
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	TableName   string `json:"table,omitempty"`
	DocCount    int    `json:"doc_count,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var tableName string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the configured storage backend and, optionally, a table's size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			info := statusInfo{
				StorageKind: string(cfg.StorageKind),
				Path:        cfg.Path,
				SizeBytes:   fileSize(cfg.Path),
			}

			if tableName != "" {
				db, tbl, err := openTable(cmd.Context(), tableName)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				info.TableName = tableName
				info.DocCount = tbl.Len()
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "storage_kind: %s\n", info.StorageKind)
			fmt.Fprintf(out, "path:         %s\n", info.Path)
			fmt.Fprintf(out, "size:         %d bytes\n", info.SizeBytes)
			if info.TableName != "" {
				fmt.Fprintf(out, "table:        %s (%d documents)\n", info.TableName, info.DocCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&tableName, "table", "", "Also report this table's document count")

	return cmd
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
