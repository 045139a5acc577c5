package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/prd"
)

// NewImportCommand creates the import command
func NewImportCommand() *cobra.Command {
	var outputFlag string
	var forceFlag bool

	cmd := &cobra.Command{
		Use:   "import <stories.md>",
		Short: "Convert a markdown story list into a PRD",
		Long: `Convert a markdown story list into prd.json.

Expected markdown shape: a level-1 heading for the project name, a
"## Story: <title>" heading per story with optional [simple|medium|complex]
suffix, description paragraphs, and a bullet list of acceptance criteria.
A fenced "test" code block inside a bullet becomes that criterion's test
command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}

			doc, err := prd.ImportMarkdown(source)
			if err != nil {
				return err
			}

			if !forceFlag {
				if _, err := os.Stat(outputFlag); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outputFlag)
				}
			}

			if err := prd.Save(doc, outputFlag); err != nil {
				return err
			}

			testable := 0
			for _, story := range doc.UserStories {
				if story.Testable() {
					testable++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d stories (%d testable)\n",
				outputFlag, len(doc.UserStories), testable)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "prd.json", "output PRD path")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "overwrite an existing output file")

	return cmd
}
