package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <table> <doc-id>",
		Short: "Fetch a single document by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid doc-id %q: %w", args[1], err)
			}

			db, tbl, err := openTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			doc, ok, err := tbl.Get(cmd.Context(), uint32(id))
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if !ok {
				return fmt.Errorf("no document %d in %q", id, args[0])
			}

			out, err := value.ToJSON(doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
