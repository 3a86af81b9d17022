package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/value"
)

func newInsertCmd() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "insert <table> [json]",
		Short: "Insert a JSON document into a table",
		Long: `Insert a JSON document into <table>, assigning it a fresh document id.

The document may be given as a trailing JSON argument, via --file, or piped
on stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocumentInput(cmd, args, fromFile)
			if err != nil {
				return err
			}
			doc, err := value.FromJSON(data)
			if err != nil {
				return fmt.Errorf("parse document: %w", err)
			}

			db, tbl, err := openTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			id, err := tbl.Insert(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted document %d into %q\n", id, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "file", "", "Read the document from a file instead of an argument")

	return cmd
}

// readDocumentInput resolves the document JSON from, in order of
// precedence: the trailing positional argument, --file, or stdin.
func readDocumentInput(cmd *cobra.Command, args []string, fromFile string) ([]byte, error) {
	if len(args) == 2 {
		return []byte(args[1]), nil
	}
	if fromFile != "" {
		return os.ReadFile(fromFile)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no document given: pass it as an argument, --file, or via stdin")
	}
	return data, nil
}
