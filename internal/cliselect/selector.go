package cliselect

import (
	"context"
	"errors"
	"os/exec"
)

// ErrNoCLIAvailable indicates no whitelisted CLI is installed and healthy.
// Fatal to the run that hit it; never retried automatically.
var ErrNoCLIAvailable = errors.New("no supported CLI is installed and healthy")

// Source identifies which step of the priority chain produced a selection.
type Source string

// Selection sources, in priority order.
const (
	SourceProjectOverride  Source = "project-override"
	SourceGlobalPreference Source = "global-preference"
	SourceFallbackChain    Source = "fallback-chain"
	SourceAutoDetect       Source = "auto-detect"
)

// Selection is a resolved CLI and how it was chosen.
type Selection struct {
	CLI    string
	Source Source
}

// Request carries the inputs to one resolution: the PRD's override, the
// settings-level preference, and the two fallback chains.
type Request struct {
	ProjectOverride  string
	GlobalPreference string
	ProjectFallback  []string
	GlobalFallback   []string
}

// Selector resolves the concrete CLI for a run.
type Selector struct {
	health *HealthCache
	logger Logger

	// lookPath is injectable for tests; defaults to exec.LookPath.
	lookPath func(string) (string, error)
}

// NewSelector creates a Selector using the given health cache.
// logger may be nil.
func NewSelector(health *HealthCache, logger Logger) *Selector {
	return &Selector{
		health:   health,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

// Resolve walks the priority chain and returns the first whitelisted and
// healthy CLI:
//
//  1. project override (PRD "cli" field)
//  2. global preference (settings)
//  3. project fallback chain, then global fallback chain, in order
//  4. auto-detect: whitelist in canonical order, installed and healthy
//
// Identifiers outside the whitelist are rejected before any health probe,
// so PRD or settings content can never reach an exec call.
func (s *Selector) Resolve(ctx context.Context, req Request) (*Selection, error) {
	if cli := req.ProjectOverride; cli != "" {
		if !IsSupported(cli) {
			s.warnf("project CLI override %q is not a supported CLI, ignoring", cli)
		} else if s.health.IsHealthy(ctx, cli) {
			s.infof("using project CLI override: %s", cli)
			return &Selection{CLI: cli, Source: SourceProjectOverride}, nil
		} else {
			s.warnf("project CLI override %s failed health check, falling back", cli)
		}
	}

	if cli := req.GlobalPreference; cli != "" {
		if !IsSupported(cli) {
			s.warnf("preferred CLI %q is not a supported CLI, ignoring", cli)
		} else if s.health.IsHealthy(ctx, cli) {
			s.infof("using preferred CLI: %s", cli)
			return &Selection{CLI: cli, Source: SourceGlobalPreference}, nil
		} else {
			s.warnf("preferred CLI %s failed health check, falling back", cli)
		}
	}

	for _, chain := range [][]string{req.ProjectFallback, req.GlobalFallback} {
		for _, cli := range chain {
			if !IsSupported(cli) {
				s.warnf("fallback entry %q is not a supported CLI, skipping", cli)
				continue
			}
			if s.health.IsHealthy(ctx, cli) {
				s.infof("using fallback CLI: %s", cli)
				return &Selection{CLI: cli, Source: SourceFallbackChain}, nil
			}
			s.debugf("fallback CLI %s unhealthy, trying next", cli)
		}
	}

	for _, cli := range supportedCLIs {
		if _, err := s.lookPath(cli); err != nil {
			s.debugf("auto-detect: %s not installed", cli)
			continue
		}
		if s.health.IsHealthy(ctx, cli) {
			s.infof("auto-detected CLI: %s", cli)
			return &Selection{CLI: cli, Source: SourceAutoDetect}, nil
		}
		s.debugf("auto-detect: %s installed but unhealthy", cli)
	}

	return nil, ErrNoCLIAvailable
}

func (s *Selector) debugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

func (s *Selector) infof(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Infof(format, args...)
	}
}

func (s *Selector) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}
