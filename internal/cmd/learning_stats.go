package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newLearningStatsCommand creates the 'learning stats' subcommand
func newLearningStatsCommand() *cobra.Command {
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-(model, task type) performance aggregation",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLearningStore(dirFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No learning data recorded yet")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %-20s %8s %12s %12s %10s\n",
				"MODEL", "TASK TYPE", "ATTEMPTS", "RELIABILITY", "COST/SUCCESS", "AVG TIME")
			for _, m := range stats {
				fmt.Fprintf(out, "%-20s %-20s %8d %11.0f%% %11.4f$ %10s\n",
					m.Model, m.TaskType, m.Attempts,
					m.Reliability()*100, m.Efficiency(),
					m.AvgDuration().Round(time.Second))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "project", ".", "project directory")
	return cmd
}
