package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func newSearchCmd() *cobra.Command {
	var qf queryFlags
	var limit int

	cmd := &cobra.Command{
		Use:   "search <table>",
		Short: "Search a table, printing matching documents as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, err := qf.build()
			if err != nil {
				return err
			}

			db, tbl, err := openTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			results, err := tbl.Search(cmd.Context(), pred)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			for _, doc := range results {
				out, err := value.ToJSON(doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}

	addQueryFlags(cmd, &qf)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results to print (0 = no limit)")

	return cmd
}
