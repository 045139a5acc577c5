package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/config"
	"github.com/harrison/autodev/internal/learning"
)

// NewLearningCommand creates the 'autodev learning' parent command
func NewLearningCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Model performance history commands",
		Long: `Commands for viewing and managing model performance history.

Every execution attempt is recorded with its cost, duration, and outcome,
and aggregated per (model, task type) to inform future routing.`,
	}

	// Add subcommands
	cmd.AddCommand(newLearningStatsCommand())
	cmd.AddCommand(newLearningShowCommand())
	cmd.AddCommand(newLearningClearCommand())

	return cmd
}

// openLearningStore opens the project's learning database.
func openLearningStore(projectDir string) (*learning.Store, error) {
	cfg, err := config.LoadConfigFromDir(projectDir)
	if err != nil {
		return nil, err
	}
	if !cfg.Learning.Enabled {
		return nil, fmt.Errorf("learning is disabled in configuration")
	}
	return learning.NewStore(joinStatePath(projectDir, cfg.Learning.DBPath))
}
