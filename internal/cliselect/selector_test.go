package cliselect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProbe returns canned health per CLI and counts invocations.
type stubProbe struct {
	mu      sync.Mutex
	healthy map[string]bool
	calls   map[string]int
}

func newStubProbe(healthy map[string]bool) *stubProbe {
	return &stubProbe{healthy: healthy, calls: make(map[string]int)}
}

func (p *stubProbe) probe(ctx context.Context, cli string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[cli]++
	if p.healthy[cli] {
		return nil
	}
	return fmt.Errorf("%s: unhealthy", cli)
}

func (p *stubProbe) callCount(cli string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[cli]
}

func newTestSelector(probe *stubProbe, installed ...string) *Selector {
	health := NewHealthCache(nil)
	health.SetProbe(probe.probe)
	s := NewSelector(health, nil)
	s.lookPath = func(name string) (string, error) {
		for _, cli := range installed {
			if cli == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	return s
}

func TestResolveProjectOverrideWins(t *testing.T) {
	probe := newStubProbe(map[string]bool{"aider": true, "claude": true})
	s := newTestSelector(probe, "aider", "claude")

	// A healthy whitelisted project override is always chosen regardless
	// of global preference or fallback chain contents.
	sel, err := s.Resolve(context.Background(), Request{
		ProjectOverride:  "aider",
		GlobalPreference: "claude",
		ProjectFallback:  []string{"claude"},
		GlobalFallback:   []string{"claude"},
	})
	require.NoError(t, err)
	assert.Equal(t, "aider", sel.CLI)
	assert.Equal(t, SourceProjectOverride, sel.Source)
}

func TestResolvePriorityChain(t *testing.T) {
	t.Run("unhealthy override falls through to preference", func(t *testing.T) {
		probe := newStubProbe(map[string]bool{"claude": true})
		s := newTestSelector(probe, "claude")

		sel, err := s.Resolve(context.Background(), Request{
			ProjectOverride:  "aider",
			GlobalPreference: "claude",
		})
		require.NoError(t, err)
		assert.Equal(t, "claude", sel.CLI)
		assert.Equal(t, SourceGlobalPreference, sel.Source)
	})

	t.Run("project fallback before global fallback", func(t *testing.T) {
		probe := newStubProbe(map[string]bool{"gemini": true, "codex": true})
		s := newTestSelector(probe, "gemini", "codex")

		sel, err := s.Resolve(context.Background(), Request{
			ProjectFallback: []string{"gemini"},
			GlobalFallback:  []string{"codex"},
		})
		require.NoError(t, err)
		assert.Equal(t, "gemini", sel.CLI)
		assert.Equal(t, SourceFallbackChain, sel.Source)
	})

	t.Run("auto-detect walks canonical order", func(t *testing.T) {
		probe := newStubProbe(map[string]bool{"codex": true})
		s := newTestSelector(probe, "codex")

		sel, err := s.Resolve(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "codex", sel.CLI)
		assert.Equal(t, SourceAutoDetect, sel.Source)
	})
}

func TestResolveInjectionSafety(t *testing.T) {
	// Identifiers outside the whitelist never reach a probe or exec,
	// whatever the PRD or settings contain.
	probe := newStubProbe(map[string]bool{"claude": true})
	s := newTestSelector(probe, "claude")

	sel, err := s.Resolve(context.Background(), Request{
		ProjectOverride:  "rm -rf /; claude",
		GlobalPreference: "../../evil",
		ProjectFallback:  []string{"$(curl attacker)", "claude"},
	})
	require.NoError(t, err)
	assert.Equal(t, "claude", sel.CLI)

	assert.Zero(t, probe.callCount("rm -rf /; claude"))
	assert.Zero(t, probe.callCount("../../evil"))
	assert.Zero(t, probe.callCount("$(curl attacker)"))
}

func TestResolveNoCLIAvailable(t *testing.T) {
	probe := newStubProbe(nil)
	s := newTestSelector(probe) // nothing installed

	sel, err := s.Resolve(context.Background(), Request{})
	assert.Nil(t, sel)
	assert.ErrorIs(t, err, ErrNoCLIAvailable)

	// Nothing installed means auto-detect never probed at all.
	for _, cli := range Supported() {
		assert.Zero(t, probe.callCount(cli), "auto-detect should not probe %s", cli)
	}
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("claude"))
	assert.True(t, IsSupported("aider"))
	assert.False(t, IsSupported("claude "))
	assert.False(t, IsSupported("CLAUDE"))
	assert.False(t, IsSupported(""))
	assert.False(t, IsSupported("bash"))
}
