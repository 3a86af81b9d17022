package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bmdb/internal/ui"
)

func newBrowseCmd() *cobra.Command {
	var qf queryFlags
	var columns string
	var limit int

	cmd := &cobra.Command{
		Use:   "browse <table>",
		Short: "Browse a table's rows in a terminal UI",
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

			docs, err := tbl.Search(cmd.Context(), pred)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if limit > 0 && len(docs) > limit {
				docs = docs[:limit]
			}

			var cols []string
			if columns != "" {
				cols = strings.Split(columns, ",")
			}

			model := ui.NewBrowseModel(fmt.Sprintf("%s (%d rows)", args[0], len(docs)), docs, cols, ui.DetectNoColor())
			program := tea.NewProgram(model, tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
	}

	addQueryFlags(cmd, &qf)
	cmd.Flags().StringVar(&columns, "columns", "", "Comma-separated dotted field paths to show as columns")
	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum number of rows to load into the browser")

	return cmd
}
