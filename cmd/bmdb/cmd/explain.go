package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "explain <table>",
		Short: "Show the plan a search would use, without running it",
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

			plan := tbl.Explain(pred)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strategy:            %s\n", plan.Strategy)
			if plan.IndexField != "" {
				fmt.Fprintf(out, "index field:         %s\n", plan.IndexField)
			}
			fmt.Fprintf(out, "estimated cost:      %.1f\n", plan.EstimatedCost)
			fmt.Fprintf(out, "estimated selectivity: %.4f\n", plan.EstimatedSelectivity)
			fmt.Fprintf(out, "expected row count:  %d\n", plan.ExpectedRowCount)
			fmt.Fprintf(out, "confidence:          %.2f\n", plan.Confidence)
			fmt.Fprintf(out, "use index:           %v\n", plan.UseIndex)
			fmt.Fprintf(out, "fallback to scan:    %v\n", plan.FallbackToScan)
			if len(plan.Conditions) > 0 {
				fmt.Fprintln(out, "conditions:")
				for _, c := range plan.Conditions {
					fmt.Fprintf(out, "  - %+v\n", c)
				}
			}
			return nil
		},
	}

	addQueryFlags(cmd, &qf)
	return cmd
}
