// Package orchestrator drives a full PRD run: for each pending story it
// resolves a CLI, routes to a model, executes the external tool, verifies
// acceptance criteria, and retries or advances under a hard attempt cap.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/autodev/internal/cliselect"
	"github.com/harrison/autodev/internal/config"
	"github.com/harrison/autodev/internal/learning"
	"github.com/harrison/autodev/internal/prd"
	"github.com/harrison/autodev/internal/router"
	"github.com/harrison/autodev/internal/runner"
	"github.com/harrison/autodev/internal/verify"
)

// MaxAttempts is the hard retry cap per story. A deliberate bound against
// unbounded cost accrual on an unsolvable task.
const MaxAttempts = 3

// StoryState is the per-story state machine position.
type StoryState string

// Story states. retrying transitions back to running with an incremented
// attempt counter.
const (
	StoryPending   StoryState = "pending"
	StoryRunning   StoryState = "running"
	StoryVerifying StoryState = "verifying"
	StoryComplete  StoryState = "complete"
	StoryRetrying  StoryState = "retrying"
	StoryFailed    StoryState = "failed"
)

// Logger is the logging interface the controller needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// CLIResolver resolves the concrete CLI executable for a run.
type CLIResolver interface {
	Resolve(ctx context.Context, req cliselect.Request) (*cliselect.Selection, error)
}

// ProcessRunner owns the external subprocess lifecycle.
type ProcessRunner interface {
	Run(ctx context.Context, executable string, args []string, cwd string) (<-chan runner.OutputEvent, <-chan runner.ExitResult, error)
	Stop() error
	State() runner.ProcessState
}

// StoryVerifier checks a story's acceptance criteria against the tree.
type StoryVerifier interface {
	VerifyStory(ctx context.Context, story *prd.UserStory, workdir string) *verify.Result
}

// ModelRouter recommends a model for a task.
type ModelRouter interface {
	Recommend(taskType router.TaskType, mode router.Mode, quotas router.QuotaReader) router.Recommendation
}

// QuotaSource is the quota tracker as the controller sees it.
type QuotaSource interface {
	router.QuotaReader
	Refresh(ctx context.Context)
}

// Recorder persists attempt outcomes for the learning system.
type Recorder interface {
	RecordAttempt(ctx context.Context, rec *learning.PerformanceRecord) error
}

// Options wires a Controller. Selector, Runner, and Verifier are required;
// the rest may be nil (router falls back to a fresh static router).
type Options struct {
	ProjectDir string
	PRDPath    string
	Config     *config.Config
	Logger     Logger

	Selector CLIResolver
	Runner   ProcessRunner
	Verifier StoryVerifier
	Router   ModelRouter
	Quotas   QuotaSource
	Recorder Recorder

	// OnOutput observes every subprocess output event. Must not block for
	// long: it runs on the event-drain goroutine. Process state changes
	// are observed by registering a listener on the runner itself.
	OnOutput func(runner.OutputEvent)
}

// Progress is the controller's explicit structured state, exposed so
// consumers never have to reconstruct it from log lines.
type Progress struct {
	RunID        string
	CurrentStory string
	Attempt      int
	Phase        StoryState
	States       map[string]StoryState
	Attempts     map[string]int
}

// RunSummary is the terminal report for one PRD run.
type RunSummary struct {
	RunID        string
	Completed    int
	Failed       int
	Unverifiable int
	ArchivePath  string
	Duration     time.Duration
}

// Controller is the retry state machine for one project. One active child
// process at a time; a run request while one is active is a no-op.
type Controller struct {
	opts   Options
	cfg    *config.Config
	logger Logger

	mu           sync.Mutex
	runID        string
	currentStory string
	attempt      int
	phase        StoryState
	states       map[string]StoryState
	attempts     map[string]int
	running      bool
}

// New creates a Controller from options.
func New(opts Options) (*Controller, error) {
	if opts.Selector == nil || opts.Runner == nil || opts.Verifier == nil {
		return nil, fmt.Errorf("selector, runner, and verifier are required")
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Router == nil {
		opts.Router = router.NewRouter(nil, nil)
	}
	return &Controller{
		opts:     opts,
		cfg:      opts.Config,
		logger:   opts.Logger,
		states:   make(map[string]StoryState),
		attempts: make(map[string]int),
		phase:    StoryPending,
	}, nil
}

// Progress returns a snapshot of the structured run state.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]StoryState, len(c.states))
	for k, v := range c.states {
		states[k] = v
	}
	attempts := make(map[string]int, len(c.attempts))
	for k, v := range c.attempts {
		attempts[k] = v
	}
	return Progress{
		RunID:        c.runID,
		CurrentStory: c.currentStory,
		Attempt:      c.attempt,
		Phase:        c.phase,
		States:       states,
		Attempts:     attempts,
	}
}

// Stop requests termination of the active subprocess. Idempotent.
func (c *Controller) Stop() error {
	return c.opts.Runner.Stop()
}

// Run executes the whole PRD. Failures local to one story never abort the
// run; a malformed PRD or no usable CLI does.
func (c *Controller) Run(ctx context.Context) (*RunSummary, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, runner.ErrAlreadyRunning
	}
	c.running = true
	c.runID = uuid.NewString()
	runID := c.runID
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	start := time.Now()
	summary := &RunSummary{RunID: runID}

	doc, err := prd.Load(c.opts.PRDPath)
	if err != nil {
		// Validation happens before any mutation, so the on-disk PRD is
		// untouched.
		return summary, err
	}
	c.infof("starting run %s for project %q (%d stories)", runID, doc.Project, len(doc.UserStories))

	if c.opts.Quotas != nil {
		c.opts.Quotas.Refresh(ctx)
	}

	mode := router.ParseMode(c.cfg.ExecutionMode)

	for _, story := range doc.OrderedStories() {
		if ctx.Err() != nil {
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}

		if story.Passes {
			c.setStoryState(story.ID, StoryComplete)
			summary.Completed++
			continue
		}

		if !story.Testable() {
			// Untestable stories are never auto-verified and never
			// guessed complete; they stay pending until an external
			// signal marks them.
			c.warnf("story %s has untestable acceptance criteria; leaving pending", story.ID)
			c.setStoryState(story.ID, StoryPending)
			summary.Unverifiable++
			continue
		}

		done, err := c.runStory(ctx, doc, story, mode, runID)
		if err != nil {
			// Fatal to the whole run: no usable CLI, or context gone.
			summary.Duration = time.Since(start)
			return summary, err
		}
		if done {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	if doc.AllComplete() {
		archivePath, err := prd.Archive(c.opts.PRDPath, c.cfg.ArchiveDir)
		if err != nil {
			c.errorf("failed to archive completed PRD: %v", err)
		} else {
			summary.ArchivePath = archivePath
			c.infof("all stories passed; archived PRD to %s", archivePath)
		}
	}

	summary.Duration = time.Since(start)
	c.infof("run %s finished: %d complete, %d failed, %d unverifiable (%v)",
		runID, summary.Completed, summary.Failed, summary.Unverifiable,
		summary.Duration.Round(time.Second))
	return summary, nil
}

// runStory drives one story through the attempt loop. Returns (true, nil)
// when the story completed, (false, nil) when it exhausted its retries, and
// a non-nil error only for run-fatal conditions.
func (c *Controller) runStory(ctx context.Context, doc *prd.Document, story *prd.UserStory, mode router.Mode, runID string) (bool, error) {
	taskType := router.ClassifyTask(story.Title, story.Description)
	failureDetail := ""

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		c.setPhase(story.ID, StoryRunning, attempt)
		c.infof("story %s attempt %d/%d (%s)", story.ID, attempt, MaxAttempts, taskType)

		selection, err := c.opts.Selector.Resolve(ctx, cliselect.Request{
			ProjectOverride:  doc.CLI,
			GlobalPreference: c.cfg.PreferredCLI,
			ProjectFallback:  doc.CLIFallbackOrder,
			GlobalFallback:   c.cfg.CLIFallbackOrder,
		})
		if err != nil {
			if errors.Is(err, cliselect.ErrNoCLIAvailable) {
				c.errorf("run aborted: %v", err)
			}
			return false, err
		}

		rec := c.opts.Router.Recommend(taskType, mode, c.opts.Quotas)
		c.debugf("routing story %s to %s/%s (%s)", story.ID, rec.Provider, rec.Model, rec.Reason)

		prompt := BuildPrompt(story, attempt, failureDetail)
		args := argsForCLI(selection.CLI, prompt, rec.Model)

		attemptRec := &learning.PerformanceRecord{
			AttemptID: uuid.NewString(),
			RunID:     runID,
			StoryID:   story.ID,
			TaskType:  string(taskType),
			Model:     rec.Model,
			Provider:  rec.Provider,
			Attempt:   attempt,
		}

		exit, metrics, runErr := c.executeAttempt(ctx, selection.CLI, args)
		if runErr != nil {
			// Spawn failure counts as a failed attempt under the same
			// retry accounting as a verification failure.
			c.warnf("story %s attempt %d spawn failed: %v", story.ID, attempt, runErr)
			attemptRec.ExitCode = -1
			c.record(ctx, attemptRec)
			failureDetail = fmt.Sprintf("The previous attempt could not start the tool: %v", runErr)
			if c.retryOrFail(story.ID, attempt) {
				continue
			}
			return false, nil
		}

		attemptRec.ExitCode = exit.Code
		attemptRec.Duration = exit.Duration
		attemptRec.InputTokens = metrics.inputTokens
		attemptRec.OutputTokens = metrics.outputTokens
		attemptRec.CostUSD = metrics.costUSD
		if attemptRec.CostUSD == 0 {
			attemptRec.CostUSD = learning.Cost(rec.Model, metrics.inputTokens, metrics.outputTokens)
		}

		if exit.Code != 0 {
			c.warnf("story %s attempt %d: tool exited with code %d", story.ID, attempt, exit.Code)
			c.record(ctx, attemptRec)
			failureDetail = fmt.Sprintf("The previous attempt's tool exited with code %d before verification.", exit.Code)
			if c.retryOrFail(story.ID, attempt) {
				continue
			}
			return false, nil
		}

		// Exit 0 is never trusted as completion; verification is always a
		// separate explicit step.
		c.setPhase(story.ID, StoryVerifying, attempt)
		result := c.opts.Verifier.VerifyStory(ctx, story, c.opts.ProjectDir)

		attemptRec.CriteriaTotal = len(result.Criteria)
		for _, cr := range result.Criteria {
			if cr.Passed {
				attemptRec.CriteriaPass++
			}
		}

		if result.AllPassed() {
			story.Passes = true
			if err := prd.Save(doc, c.opts.PRDPath); err != nil {
				c.errorf("failed to persist PRD after story %s: %v", story.ID, err)
			}
			attemptRec.Success = true
			c.record(ctx, attemptRec)
			c.setPhase(story.ID, StoryComplete, attempt)
			c.infof("story %s complete on attempt %d", story.ID, attempt)
			return true, nil
		}

		// Persist criterion pass/fail state immediately so a crash
		// mid-run does not lose verified progress.
		if err := prd.Save(doc, c.opts.PRDPath); err != nil {
			c.errorf("failed to persist PRD after story %s verification: %v", story.ID, err)
		}

		c.record(ctx, attemptRec)
		failureDetail = verify.FailureDetail(result)
		c.warnf("story %s attempt %d failed verification", story.ID, attempt)
		if !c.retryOrFail(story.ID, attempt) {
			return false, nil
		}
	}

	return false, nil
}

// attemptMetrics carries usage data pulled from the output stream.
type attemptMetrics struct {
	inputTokens  int
	outputTokens int
	costUSD      float64
}

// executeAttempt spawns the CLI and drains its event stream, forwarding
// events to the observer and capturing result metrics.
func (c *Controller) executeAttempt(ctx context.Context, cli string, args []string) (runner.ExitResult, attemptMetrics, error) {
	var metrics attemptMetrics

	events, exitCh, err := c.opts.Runner.Run(ctx, cli, args, c.opts.ProjectDir)
	if err != nil {
		return runner.ExitResult{}, metrics, err
	}

	for ev := range events {
		if ev.Kind == runner.EventResult {
			metrics.inputTokens = ev.InputTokens
			metrics.outputTokens = ev.OutputTokens
			metrics.costUSD = ev.CostUSD
		}
		if c.opts.OnOutput != nil {
			c.opts.OnOutput(ev)
		}
	}

	exit := <-exitCh
	return exit, metrics, nil
}

// retryOrFail advances the state machine after a failed attempt. Returns
// true when another attempt is allowed.
func (c *Controller) retryOrFail(storyID string, attempt int) bool {
	if attempt < MaxAttempts {
		c.setPhase(storyID, StoryRetrying, attempt)
		return true
	}
	c.setPhase(storyID, StoryFailed, attempt)
	c.errorf("story %s failed after %d attempts; continuing with remaining stories", storyID, MaxAttempts)
	return false
}

// record persists an attempt outcome; recording failures are logged, never
// fatal.
func (c *Controller) record(ctx context.Context, rec *learning.PerformanceRecord) {
	if c.opts.Recorder == nil {
		return
	}
	if err := c.opts.Recorder.RecordAttempt(ctx, rec); err != nil {
		c.warnf("failed to record attempt for story %s: %v", rec.StoryID, err)
	}
}

func (c *Controller) setStoryState(storyID string, state StoryState) {
	c.mu.Lock()
	c.states[storyID] = state
	c.mu.Unlock()
}

func (c *Controller) setPhase(storyID string, state StoryState, attempt int) {
	c.mu.Lock()
	c.states[storyID] = state
	c.attempts[storyID] = attempt
	c.currentStory = storyID
	c.attempt = attempt
	c.phase = state
	c.mu.Unlock()
}

func (c *Controller) debugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

func (c *Controller) infof(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Infof(format, args...)
	}
}

func (c *Controller) warnf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warnf(format, args...)
	}
}

func (c *Controller) errorf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Errorf(format, args...)
	}
}
