package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newLearningShowCommand creates the 'learning show' subcommand
func newLearningShowCommand() *cobra.Command {
	var dirFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show recent execution attempt records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLearningStore(dirFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Records(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded yet")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, rec := range records {
				outcome := "FAIL"
				if rec.Success {
					outcome = "PASS"
				}
				fmt.Fprintf(out, "[%s] %s story=%s attempt=%d model=%s cost=$%.4f duration=%s criteria=%d/%d\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"), outcome,
					rec.StoryID, rec.Attempt, rec.Model, rec.CostUSD,
					rec.Duration.Round(time.Second), rec.CriteriaPass, rec.CriteriaTotal)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "project", ".", "project directory")
	cmd.Flags().IntVar(&limitFlag, "limit", 20, "maximum records to show (0 = all)")
	return cmd
}
