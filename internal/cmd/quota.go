package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/config"
	"github.com/harrison/autodev/internal/logger"
	"github.com/harrison/autodev/internal/quota"
)

// NewQuotaCommand creates the quota command
func NewQuotaCommand() *cobra.Command {
	var refreshFlag bool
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show provider quota state",
		Long: `Show the tracked quota snapshot per model provider. Quota state is
advisory: routing prefers available providers, but availability is never a
guarantee the next invocation succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigFromDir(dirFlag)
			if err != nil {
				return err
			}

			log := logger.NewConsoleLogger(nil, cfg.LogLevel)
			tracker := quota.NewTracker(
				joinStatePath(dirFlag, cfg.Quota.StatePath),
				log,
				&quota.LocalProbe{ProviderID: "local", Executable: "ollama"},
				&quota.FileProbe{ProviderID: "anthropic", Path: usagePath(dirFlag, "anthropic"), QuotaType: quota.TypeSubscription},
				&quota.FileProbe{ProviderID: "openai", Path: usagePath(dirFlag, "openai"), QuotaType: quota.TypeCredits},
				&quota.FileProbe{ProviderID: "google", Path: usagePath(dirFlag, "google"), QuotaType: quota.TypeRateLimit},
			)

			if refreshFlag {
				tracker.Refresh(context.Background())
			}

			quotas := tracker.Snapshot()
			if len(quotas) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No quota data; run with --refresh to poll providers")
				return nil
			}
			sort.Slice(quotas, func(i, j int) bool { return quotas[i].Provider < quotas[j].Provider })

			out := cmd.OutOrStdout()
			for _, q := range quotas {
				fmt.Fprintf(out, "%-12s %-12s %-12s %5.0f%% available",
					q.Provider, q.Type, q.Status, q.AvailablePercent())
				if q.ResetAt != nil {
					fmt.Fprintf(out, "  resets %s", q.ResetAt.Format(time.RFC3339))
				}
				if q.Error != "" {
					fmt.Fprintf(out, "  (%s)", q.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refreshFlag, "refresh", false, "poll providers before printing")
	cmd.Flags().StringVar(&dirFlag, "project", ".", "project directory")

	return cmd
}
