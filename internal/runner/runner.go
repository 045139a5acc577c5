package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned by Run while a process is active. A new run
// request during running/stopping is a no-op, never queued.
var ErrAlreadyRunning = errors.New("a process is already running")

// DefaultGracePeriod is how long Stop waits after SIGTERM before SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Logger is the logging interface the runner needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ExitResult is the terminal outcome of one subprocess run.
type ExitResult struct {
	// Code is the process exit code. -1 when the process was killed or
	// failed in a way that produced no code.
	Code int

	// Duration is wall-clock time from spawn to exit.
	Duration time.Duration

	// Err is set for wait failures that are not plain non-zero exits.
	Err error
}

// StateListener observes process state transitions. err is non-nil only
// when the transition was caused by a failure.
type StateListener func(state ProcessState, err error)

// Runner manages at most one child process at a time. Output is parsed into
// OutputEvents and delivered on a channel; the spawning call never blocks on
// the stream. Stop is idempotent and escalates SIGTERM to SIGKILL after a
// grace period.
type Runner struct {
	mu          sync.Mutex
	state       ProcessState
	cmd         *exec.Cmd
	done        chan struct{}
	gracePeriod time.Duration
	logger      Logger
	onState     StateListener
}

// New creates an idle Runner. logger may be nil.
func New(logger Logger) *Runner {
	return &Runner{
		state:       StateIdle,
		gracePeriod: DefaultGracePeriod,
		logger:      logger,
	}
}

// SetGracePeriod overrides the SIGTERM-to-SIGKILL escalation delay.
func (r *Runner) SetGracePeriod(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.gracePeriod = d
	}
}

// OnStateChange registers a listener for state transitions.
func (r *Runner) OnStateChange(fn StateListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onState = fn
}

// State returns the current process state.
func (r *Runner) State() ProcessState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// setState transitions state and notifies the listener outside the lock.
func (r *Runner) setState(state ProcessState, err error) {
	r.mu.Lock()
	r.state = state
	listener := r.onState
	r.mu.Unlock()

	if listener != nil {
		listener(state, err)
	}
}

// Run spawns executable with args in cwd and streams its output.
//
// The returned event channel carries parsed OutputEvents and closes when
// the process exits; the exit channel then delivers exactly one ExitResult.
// Consumers must drain the event channel: a full buffer blocks the stdout
// pump, not the caller, and events are never dropped.
//
// Returns ErrAlreadyRunning when a process is active.
func (r *Runner) Run(ctx context.Context, executable string, args []string, cwd string) (<-chan OutputEvent, <-chan ExitResult, error) {
	r.mu.Lock()
	if r.state == StateRunning || r.state == StateStopping || r.state == StatePaused {
		r.mu.Unlock()
		return nil, nil, ErrAlreadyRunning
	}

	cmd := exec.CommandContext(ctx, executable, args...)
	cmd.Dir = cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to spawn %s: %w", executable, err)
	}

	done := make(chan struct{})
	r.cmd = cmd
	r.done = done
	r.mu.Unlock()

	r.setState(StateRunning, nil)
	r.debugf("spawned %s (pid %d) in %s", executable, cmd.Process.Pid, cwd)

	events := make(chan OutputEvent, 256)
	exitCh := make(chan ExitResult, 1)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go pump(stdout, events, &pumps)
	go pump(stderr, events, &pumps)

	go func() {
		pumps.Wait()
		waitErr := cmd.Wait()

		code := 0
		var resultErr error
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
				resultErr = waitErr
			}
		}

		r.mu.Lock()
		r.cmd = nil
		r.mu.Unlock()
		close(done)

		r.setState(StateIdle, resultErr)
		r.debugf("%s exited with code %d after %v", executable, code, time.Since(start).Round(time.Millisecond))

		close(events)
		exitCh <- ExitResult{Code: code, Duration: time.Since(start), Err: resultErr}
		close(exitCh)
	}()

	return events, exitCh, nil
}

// pump reads lines from a pipe and forwards parsed events. The send blocks
// when the consumer falls behind, applying backpressure to the child's
// output instead of dropping events.
func pump(pipe io.Reader, events chan<- OutputEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, ev := range ParseLine(scanner.Text()) {
			events <- ev
		}
	}
}

// Stop requests termination of the active process. It sends SIGTERM, waits
// the grace period, then SIGKILLs. Safe to call when nothing is running and
// safe to call repeatedly.
func (r *Runner) Stop() error {
	r.mu.Lock()
	// Paused children are still live children; stop applies to them too.
	if r.state != StateRunning && r.state != StateStopping && r.state != StatePaused {
		r.mu.Unlock()
		return nil
	}
	cmd := r.cmd
	done := r.done
	grace := r.gracePeriod
	alreadyStopping := r.state == StateStopping
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if !alreadyStopping {
		r.setState(StateStopping, nil)
		r.infof("stopping process (pid %d)", cmd.Process.Pid)
		// Signal errors mean the process already exited; the wait
		// goroutine handles the rest.
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		r.warnf("process did not exit within %v, killing", grace)
		_ = cmd.Process.Kill()
	}

	<-done
	return nil
}

// MarkExternal records that a process we did not spawn is active (found via
// an out-of-band session scan). Only valid from idle.
func (r *Runner) MarkExternal() {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.setState(StateExternal, nil)
}

// ClearExternal returns from external tracking to idle.
func (r *Runner) ClearExternal() {
	r.mu.Lock()
	if r.state != StateExternal {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.setState(StateIdle, nil)
}

// Pause marks a running process as paused for observers. The child keeps
// running; this is a display state, not a SIGSTOP.
func (r *Runner) Pause() {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.setState(StatePaused, nil)
}

// Resume returns a paused process to running.
func (r *Runner) Resume() {
	r.mu.Lock()
	if r.state != StatePaused {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.setState(StateRunning, nil)
}

func (r *Runner) debugf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, args...)
	}
}

func (r *Runner) infof(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof(format, args...)
	}
}

func (r *Runner) warnf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warnf(format, args...)
	}
}
