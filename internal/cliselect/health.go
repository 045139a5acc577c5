package cliselect

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// HealthCheckTimeout is the hard timeout for a single --version probe.
const HealthCheckTimeout = 3 * time.Second

// HealthCacheTTL is how long a health result stays valid. Expired entries
// are indistinguishable from absent ones.
const HealthCacheTTL = 5 * time.Minute

// Logger is the logging interface the selector needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ProbeFunc runs a health probe for a CLI. A nil error means healthy.
// Injectable for tests; the default runs "<cli> --version".
type ProbeFunc func(ctx context.Context, cli string) error

// healthEntry is one cached probe result. Process-lifetime only, never
// persisted.
type healthEntry struct {
	healthy   bool
	checkedAt time.Time
}

// HealthCache caches CLI health probes with a TTL. Concurrent checks for
// the same CLI are collapsed into a single in-flight probe; the second
// caller waits for the first probe's result instead of spawning another
// --version process.
type HealthCache struct {
	mu      sync.Mutex
	entries map[string]healthEntry
	ttl     time.Duration
	probe   ProbeFunc
	group   singleflight.Group
	logger  Logger
}

// NewHealthCache creates a cache with the default TTL and probe.
// logger may be nil.
func NewHealthCache(logger Logger) *HealthCache {
	return &HealthCache{
		entries: make(map[string]healthEntry),
		ttl:     HealthCacheTTL,
		probe:   defaultProbe,
		logger:  logger,
	}
}

// defaultProbe runs "<cli> --version" with the hard timeout. Exit 0 within
// the timeout is the only healthy signal.
func defaultProbe(ctx context.Context, cli string) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cli, "--version")
	return cmd.Run()
}

// SetProbe replaces the probe function. Intended for tests.
func (hc *HealthCache) SetProbe(probe ProbeFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.probe = probe
}

// SetTTL overrides the entry lifetime. Intended for tests.
func (hc *HealthCache) SetTTL(ttl time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.ttl = ttl
}

// IsHealthy reports whether cli currently passes its health check,
// consulting the cache first. A valid cache entry short-circuits the probe.
func (hc *HealthCache) IsHealthy(ctx context.Context, cli string) bool {
	hc.mu.Lock()
	entry, ok := hc.entries[cli]
	ttl := hc.ttl
	probe := hc.probe
	hc.mu.Unlock()

	if ok && time.Since(entry.checkedAt) < ttl {
		hc.debugf("health cache hit for %s: healthy=%v", cli, entry.healthy)
		return entry.healthy
	}

	// singleflight collapses concurrent probes for the same CLI.
	result, _, _ := hc.group.Do(cli, func() (interface{}, error) {
		// Re-check under the group: a racing caller may have just filled
		// the entry while we waited our turn.
		hc.mu.Lock()
		entry, ok := hc.entries[cli]
		hc.mu.Unlock()
		if ok && time.Since(entry.checkedAt) < ttl {
			return entry.healthy, nil
		}

		err := probe(ctx, cli)
		healthy := err == nil
		if healthy {
			hc.infof("health check passed for %s", cli)
		} else {
			hc.warnf("health check failed for %s: %v", cli, err)
		}

		hc.mu.Lock()
		hc.entries[cli] = healthEntry{healthy: healthy, checkedAt: time.Now()}
		hc.mu.Unlock()

		return healthy, nil
	})

	healthy, _ := result.(bool)
	return healthy
}

// Invalidate drops the cached entry for cli, forcing a fresh probe on the
// next check.
func (hc *HealthCache) Invalidate(cli string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.entries, cli)
}

// backdate rewinds an entry's timestamp. Test hook for TTL expiry.
func (hc *HealthCache) backdate(cli string, age time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if entry, ok := hc.entries[cli]; ok {
		entry.checkedAt = entry.checkedAt.Add(-age)
		hc.entries[cli] = entry
	}
}

func (hc *HealthCache) debugf(format string, args ...interface{}) {
	if hc.logger != nil {
		hc.logger.Debugf(format, args...)
	}
}

func (hc *HealthCache) infof(format string, args ...interface{}) {
	if hc.logger != nil {
		hc.logger.Infof(format, args...)
	}
}

func (hc *HealthCache) warnf(format string, args ...interface{}) {
	if hc.logger != nil {
		hc.logger.Warnf(format, args...)
	}
}
