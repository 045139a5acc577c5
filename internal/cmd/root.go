package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for autodev
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autodev",
		Short: "Unattended execution of PRD user stories via AI coding CLIs",
		Long: `Autodev works through a Project Requirements Document (PRD) of user
stories by delegating each story to an external AI coding-assistant CLI,
verifying the result against acceptance-test commands, and retrying or
advancing automatically.

Model routing honors the configured execution mode (balanced, super-saver,
fast-delivery), live provider quota state, and learned per-model
performance history.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewQuotaCommand())
	cmd.AddCommand(NewLearningCommand())

	return cmd
}
