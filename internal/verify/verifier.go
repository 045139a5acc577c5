// Package verify runs a story's acceptance-test commands against the
// working tree and records per-criterion pass/fail state.
//
// A command's exit code 0 is the only pass signal. Stories whose criteria
// are legacy strings (or lack test commands) are never auto-verified; their
// outcome is reported as unknown and advancing them needs an explicit
// external signal.
package verify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/autodev/internal/prd"
)

// DefaultCommandTimeout bounds a single acceptance-test command.
const DefaultCommandTimeout = 10 * time.Minute

// Logger is the logging interface the verifier needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// CommandRunner executes one shell command in a directory and returns its
// combined output. A nil error means exit code 0.
type CommandRunner interface {
	Run(ctx context.Context, command, dir string) (string, error)
}

// ShellRunner runs commands through "sh -c".
type ShellRunner struct {
	// Timeout bounds each command; zero means DefaultCommandTimeout.
	Timeout time.Duration
}

// Run executes command via sh -c in dir.
func (sr *ShellRunner) Run(ctx context.Context, command, dir string) (string, error) {
	timeout := sr.Timeout
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// Outcome summarizes a story verification.
type Outcome string

// Verification outcomes. OutcomeUnknown means the story has untestable
// criteria and was not verified either way.
const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// CriterionResult is the result of running one criterion's test command.
type CriterionResult struct {
	CriterionID string
	Text        string
	Command     string
	Passed      bool
	Output      string
	Duration    time.Duration
	Err         error
}

// Result is the outcome of verifying one story.
type Result struct {
	StoryID  string
	Outcome  Outcome
	Criteria []CriterionResult
}

// AllPassed reports whether the story verified clean. Unknown outcomes are
// not passes.
func (r *Result) AllPassed() bool {
	return r.Outcome == OutcomePassed
}

// Verifier checks stories against their acceptance-test commands.
type Verifier struct {
	runner CommandRunner
	logger Logger
}

// NewVerifier creates a Verifier. A nil runner defaults to ShellRunner;
// logger may be nil.
func NewVerifier(runner CommandRunner, logger Logger) *Verifier {
	if runner == nil {
		runner = &ShellRunner{}
	}
	return &Verifier{runner: runner, logger: logger}
}

func (v *Verifier) infof(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Infof(format, args...)
	}
}

func (v *Verifier) warnf(format string, args ...interface{}) {
	if v.logger != nil {
		v.logger.Warnf(format, args...)
	}
}

// VerifyStory runs every testable criterion's command in sequence from
// workdir, updating each criterion's Passes and LastRun in place. The story's
// own passes flag is left to the caller. Commands are expected to be
// idempotent, so execution order does not affect correctness.
//
// Stories that are not fully testable are not run at all and report
// OutcomeUnknown.
func (v *Verifier) VerifyStory(ctx context.Context, story *prd.UserStory, workdir string) *Result {
	result := &Result{StoryID: story.ID}

	if !story.Testable() {
		v.warnf("story %s has untestable criteria, skipping auto-verification", story.ID)
		result.Outcome = OutcomeUnknown
		return result
	}

	allPassed := true
	for i := range story.AcceptanceCriteria.Criteria {
		criterion := &story.AcceptanceCriteria.Criteria[i]

		if ctx.Err() != nil {
			allPassed = false
			break
		}

		start := time.Now()
		output, err := v.runner.Run(ctx, criterion.TestCommand, workdir)
		duration := time.Since(start)

		now := time.Now().UTC()
		criterion.Passes = err == nil
		criterion.LastRun = &now

		cr := CriterionResult{
			CriterionID: criterion.ID,
			Text:        criterion.Text,
			Command:     criterion.TestCommand,
			Passed:      err == nil,
			Output:      output,
			Duration:    duration,
			Err:         err,
		}
		result.Criteria = append(result.Criteria, cr)

		if err == nil {
			v.infof("criterion %s passed (%v)", criterion.ID, duration.Round(time.Millisecond))
		} else {
			allPassed = false
			v.warnf("criterion %s failed after %v: %v", criterion.ID, duration.Round(time.Millisecond), err)
		}
	}

	if allPassed {
		result.Outcome = OutcomePassed
	} else {
		result.Outcome = OutcomeFailed
	}
	return result
}

// FailureDetail formats the failing criteria for injection into a retry
// prompt so the coding tool can self-correct.
func FailureDetail(result *Result) string {
	if result == nil || result.Outcome != OutcomeFailed {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("The following acceptance criteria FAILED on the previous attempt:\n")
	for _, cr := range result.Criteria {
		if cr.Passed {
			continue
		}
		fmt.Fprintf(&sb, "\n- [%s] %s\n  Command: %s\n", cr.CriterionID, cr.Text, cr.Command)
		if output := strings.TrimSpace(cr.Output); output != "" {
			sb.WriteString("  Output:\n")
			for _, line := range strings.Split(truncate(output, 2000), "\n") {
				sb.WriteString("    " + line + "\n")
			}
		}
	}
	return sb.String()
}

// truncate caps s at n bytes with a marker.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
