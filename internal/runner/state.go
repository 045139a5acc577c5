// Package runner owns the lifecycle of one external coding-CLI subprocess:
// spawn, structured output streaming, and graceful-then-forced termination.
package runner

// ProcessState is the observable lifecycle state of the managed process.
type ProcessState string

// Process states. "external" marks a process discovered out-of-band that
// this runner did not spawn; it is tracked but not owned.
const (
	StateIdle     ProcessState = "idle"
	StateRunning  ProcessState = "running"
	StateStopping ProcessState = "stopping"
	StateExternal ProcessState = "external"
	StatePaused   ProcessState = "paused"
)
