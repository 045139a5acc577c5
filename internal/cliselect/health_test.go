package cliselect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthCacheTTL(t *testing.T) {
	probe := newStubProbe(map[string]bool{"claude": true})
	hc := NewHealthCache(nil)
	hc.SetProbe(probe.probe)

	ctx := context.Background()

	// Two checks inside the TTL spawn exactly one probe.
	assert.True(t, hc.IsHealthy(ctx, "claude"))
	assert.True(t, hc.IsHealthy(ctx, "claude"))
	assert.Equal(t, 1, probe.callCount("claude"))

	// Expired entry forces a fresh probe.
	hc.backdate("claude", HealthCacheTTL+time.Second)
	assert.True(t, hc.IsHealthy(ctx, "claude"))
	assert.Equal(t, 2, probe.callCount("claude"))
}

func TestHealthCacheCachesFailures(t *testing.T) {
	probe := newStubProbe(nil)
	hc := NewHealthCache(nil)
	hc.SetProbe(probe.probe)

	ctx := context.Background()
	assert.False(t, hc.IsHealthy(ctx, "codex"))
	assert.False(t, hc.IsHealthy(ctx, "codex"))
	assert.Equal(t, 1, probe.callCount("codex"), "unhealthy results are cached too")
}

func TestHealthCacheInvalidate(t *testing.T) {
	probe := newStubProbe(map[string]bool{"claude": true})
	hc := NewHealthCache(nil)
	hc.SetProbe(probe.probe)

	ctx := context.Background()
	assert.True(t, hc.IsHealthy(ctx, "claude"))
	hc.Invalidate("claude")
	assert.True(t, hc.IsHealthy(ctx, "claude"))
	assert.Equal(t, 2, probe.callCount("claude"))
}

func TestHealthCacheSingleFlight(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	release := make(chan struct{})

	hc := NewHealthCache(nil)
	hc.SetProbe(func(ctx context.Context, cli string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = hc.IsHealthy(ctx, "claude")
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight probe.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "concurrent checks share one probe")
	for _, healthy := range results {
		assert.True(t, healthy)
	}
}

func TestHealthCacheProbeError(t *testing.T) {
	hc := NewHealthCache(nil)
	hc.SetProbe(func(ctx context.Context, cli string) error {
		return errors.New("exec format error")
	})
	assert.False(t, hc.IsHealthy(context.Background(), "gemini"))
}
