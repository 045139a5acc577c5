package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/prd"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <prd.json>",
		Short: "Validate a PRD without running it",
		Long: `Validate a PRD file's structure and invariants: unique story and
criterion ids, recognized complexity values, and passes-consistency
(a passing story must have every criterion passing).

Exits non-zero when validation fails; never modifies the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := prd.Load(args[0])
			if err != nil {
				return err
			}

			testable := 0
			for _, story := range doc.UserStories {
				if story.Testable() {
					testable++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PRD is valid: project %q, %d stories (%d testable)\n",
				doc.Project, len(doc.UserStories), testable)
			if testable < len(doc.UserStories) {
				fmt.Fprintf(out, "Note: %d stories have untestable criteria and will not be auto-verified\n",
					len(doc.UserStories)-testable)
			}
			return nil
		},
	}
}
