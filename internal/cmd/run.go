package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/autodev/internal/cliselect"
	"github.com/harrison/autodev/internal/config"
	"github.com/harrison/autodev/internal/learning"
	"github.com/harrison/autodev/internal/logger"
	"github.com/harrison/autodev/internal/orchestrator"
	"github.com/harrison/autodev/internal/quota"
	"github.com/harrison/autodev/internal/router"
	"github.com/harrison/autodev/internal/runner"
	"github.com/harrison/autodev/internal/verify"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	var (
		modeFlag       string
		cliFlag        string
		archiveFlag    string
		logLevelFlag   string
		showOutputFlag bool
	)

	cmd := &cobra.Command{
		Use:   "run <project-dir-or-prd.json>",
		Short: "Execute a PRD's pending user stories",
		Long: `Execute every pending story in a PRD by delegating to an external AI
coding CLI, verifying acceptance-test commands, and retrying up to the
attempt cap.

The argument is a project directory containing prd.json, or a path to the
PRD file itself. Configuration is loaded from .autodev/config.yaml in the
project directory; flags override file settings.

Examples:
  autodev run .
  autodev run path/to/project --mode super-saver
  autodev run project/prd.json --cli claude --show-output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, prdPath, err := resolvePRDPath(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfigFromDir(projectDir)
			if err != nil {
				return err
			}

			var cliPtr, modePtr, archivePtr, levelPtr *string
			if cmd.Flags().Changed("cli") {
				cliPtr = &cliFlag
			}
			if cmd.Flags().Changed("mode") {
				modePtr = &modeFlag
			}
			if cmd.Flags().Changed("archive-dir") {
				archivePtr = &archiveFlag
			}
			if cmd.Flags().Changed("log-level") {
				levelPtr = &logLevelFlag
			}
			cfg.MergeWithFlags(cliPtr, modePtr, archivePtr, levelPtr)
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runProject(cmd, projectDir, prdPath, cfg, showOutputFlag)
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "balanced", "execution mode: balanced, super-saver, fast-delivery")
	cmd.Flags().StringVar(&cliFlag, "cli", "", "preferred CLI (overrides settings, not the PRD)")
	cmd.Flags().StringVar(&archiveFlag, "archive-dir", "", "directory for completed PRD archives")
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")
	cmd.Flags().BoolVar(&showOutputFlag, "show-output", false, "print the coding tool's output stream")

	return cmd
}

// resolvePRDPath accepts a project directory or a PRD file path and returns
// both.
func resolvePRDPath(arg string) (projectDir, prdPath string, err error) {
	info, err := os.Stat(arg)
	if err != nil {
		return "", "", fmt.Errorf("cannot access %s: %w", arg, err)
	}
	if info.IsDir() {
		return arg, filepath.Join(arg, "prd.json"), nil
	}
	return filepath.Dir(arg), arg, nil
}

// runProject wires the orchestrator's collaborators and drives the run with
// graceful shutdown on SIGINT/SIGTERM.
func runProject(cmd *cobra.Command, projectDir, prdPath string, cfg *config.Config, showOutput bool) error {
	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	health := cliselect.NewHealthCache(log)
	selector := cliselect.NewSelector(health, log)

	proc := runner.New(log)
	proc.SetGracePeriod(cfg.ProcessGracePeriod)
	proc.OnStateChange(func(state runner.ProcessState, err error) {
		if err != nil {
			log.Warnf("process state: %s (%v)", state, err)
			return
		}
		log.Debugf("process state: %s", state)
	})

	verifier := verify.NewVerifier(nil, log)

	tracker := quota.NewTracker(
		joinStatePath(projectDir, cfg.Quota.StatePath),
		log,
		&quota.LocalProbe{ProviderID: "local", Executable: "ollama"},
		&quota.FileProbe{ProviderID: "anthropic", Path: usagePath(projectDir, "anthropic"), QuotaType: quota.TypeSubscription},
		&quota.FileProbe{ProviderID: "openai", Path: usagePath(projectDir, "openai"), QuotaType: quota.TypeCredits},
		&quota.FileProbe{ProviderID: "google", Path: usagePath(projectDir, "google"), QuotaType: quota.TypeRateLimit},
	)

	var store *learning.Store
	var advisor router.Advisor
	var recorder orchestrator.Recorder
	if cfg.Learning.Enabled {
		var err error
		store, err = learning.NewStore(joinStatePath(projectDir, cfg.Learning.DBPath))
		if err != nil {
			log.Warnf("learning disabled: %v", err)
		} else {
			defer store.Close()
			advisor = store
			recorder = store
		}
	}

	var onOutput func(runner.OutputEvent)
	if showOutput {
		out := cmd.OutOrStdout()
		onOutput = func(ev runner.OutputEvent) {
			switch ev.Kind {
			case runner.EventToolStart:
				fmt.Fprintf(out, "  → %s %s\n", ev.Tool, ev.ToolInput)
			case runner.EventText:
				fmt.Fprintln(out, indent(ev.Text))
			case runner.EventResult:
				fmt.Fprintf(out, "  ✓ result (%d turns, $%.4f)\n", ev.NumTurns, ev.CostUSD)
			}
		}
	}

	controller, err := orchestrator.New(orchestrator.Options{
		ProjectDir: projectDir,
		PRDPath:    prdPath,
		Config:     cfg,
		Logger:     log,
		Selector:   selector,
		Runner:     proc,
		Verifier:   verifier,
		Router:     router.NewRouter(advisor, log),
		Quotas:     tracker,
		Recorder:   recorder,
		OnOutput:   onOutput,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// Graceful first, forced after the grace period; persisted PRD
		// state is already on disk after every verification.
		_ = controller.Stop()
	}()

	if cfg.Quota.PollInterval > 0 {
		go tracker.Poll(ctx, cfg.Quota.PollInterval)
	}

	summary, err := controller.Run(ctx)
	if summary != nil {
		printSummary(cmd, summary)
	}
	return err
}

func printSummary(cmd *cobra.Command, summary *orchestrator.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun Summary (%s):\n", summary.RunID)
	fmt.Fprintf(out, "  Completed: %d\n", summary.Completed)
	fmt.Fprintf(out, "  Failed: %d\n", summary.Failed)
	if summary.Unverifiable > 0 {
		fmt.Fprintf(out, "  Unverifiable (left pending): %d\n", summary.Unverifiable)
	}
	fmt.Fprintf(out, "  Duration: %s\n", summary.Duration.Round(time.Second))
	if summary.ArchivePath != "" {
		fmt.Fprintf(out, "  Archived to: %s\n", summary.ArchivePath)
	}
}

// joinStatePath anchors relative state paths at the project directory.
func joinStatePath(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

func usagePath(projectDir, provider string) string {
	return filepath.Join(projectDir, ".autodev", "usage", provider+".json")
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
