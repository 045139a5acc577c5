package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/prd"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <prd.json>",
		Short: "Show per-story and per-criterion pass state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := prd.Load(args[0])
			if err != nil {
				return err
			}

			useColor := isatty.IsTerminal(os.Stdout.Fd())
			pass := func(s string) string { return s }
			fail := pass
			dim := pass
			if useColor {
				passSprint := color.New(color.FgGreen).SprintFunc()
				failSprint := color.New(color.FgRed).SprintFunc()
				dimSprint := color.New(color.FgHiBlack).SprintFunc()
				pass = func(s string) string { return passSprint(s) }
				fail = func(s string) string { return failSprint(s) }
				dim = func(s string) string { return dimSprint(s) }
			}

			out := cmd.OutOrStdout()
			passed := 0
			fmt.Fprintf(out, "Project: %s\n\n", doc.Project)
			for _, story := range doc.UserStories {
				marker := fail("✗")
				if story.Passes {
					marker = pass("✓")
					passed++
				}
				fmt.Fprintf(out, "%s %s - %s\n", marker, story.ID, story.Title)

				for i := range story.AcceptanceCriteria.Criteria {
					criterion := &story.AcceptanceCriteria.Criteria[i]
					cm := fail("✗")
					if criterion.Passes {
						cm = pass("✓")
					}
					last := "never run"
					if criterion.LastRun != nil {
						last = criterion.LastRun.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(out, "  %s %s: %s %s\n", cm, criterion.ID, criterion.Text, dim("("+last+")"))
				}
				for _, text := range story.AcceptanceCriteria.Legacy {
					fmt.Fprintf(out, "  %s %s\n", dim("?"), text)
				}
			}

			fmt.Fprintf(out, "\n%d/%d stories passing\n", passed, len(doc.UserStories))
			return nil
		},
	}
}
