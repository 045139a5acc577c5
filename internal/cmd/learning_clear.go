package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newLearningClearCommand creates the 'learning clear' subcommand
func newLearningClearCommand() *cobra.Command {
	var dirFlag string
	var yesFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded performance history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yesFlag {
				fmt.Fprint(cmd.OutOrStdout(), "Delete all learning data? [y/N]: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			store, err := openLearningStore(dirFlag)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Learning data cleared")
			return nil
		},
	}

	cmd.Flags().StringVar(&dirFlag, "project", ".", "project directory")
	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "skip confirmation")
	return cmd
}
