package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/harrison/autodev/internal/filelock"
)

// Logger is the logging interface the tracker needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Probe checks one provider's current quota state.
type Probe interface {
	// Provider returns the provider id this probe reports on.
	Provider() string

	// Check polls the provider-specific source. Implementations return a
	// quota with StatusError and the Error field set rather than an error
	// when the source itself is unreachable.
	Check(ctx context.Context) *ProviderQuota
}

// Tracker holds one ProviderQuota per provider. Refresh is the only writer;
// any number of selector/router calls may read concurrently. The snapshot
// persists across runs as a JSON file.
type Tracker struct {
	mu     sync.RWMutex
	quotas map[string]*ProviderQuota
	probes []Probe
	path   string
	logger Logger
}

// NewTracker creates a Tracker that persists to path (empty disables
// persistence) and loads any prior snapshot. logger may be nil.
func NewTracker(path string, logger Logger, probes ...Probe) *Tracker {
	t := &Tracker{
		quotas: make(map[string]*ProviderQuota),
		probes: probes,
		path:   path,
		logger: logger,
	}
	t.load()
	return t
}

// load restores the persisted snapshot. Missing or corrupt files are
// ignored; quotas refresh on the next poll anyway.
func (t *Tracker) load() {
	if t.path == "" {
		return
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	var quotas map[string]*ProviderQuota
	if err := json.Unmarshal(data, &quotas); err != nil {
		t.warnf("ignoring corrupt quota snapshot %s: %v", t.path, err)
		return
	}
	t.mu.Lock()
	t.quotas = quotas
	t.mu.Unlock()
}

// save persists the current snapshot atomically.
func (t *Tracker) save() error {
	if t.path == "" {
		return nil
	}
	t.mu.RLock()
	data, err := json.MarshalIndent(t.quotas, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal quota snapshot: %w", err)
	}
	return filelock.AtomicWrite(t.path, data)
}

// Refresh polls every probe and replaces the tracked quota per provider.
func (t *Tracker) Refresh(ctx context.Context) {
	for _, probe := range t.probes {
		q := probe.Check(ctx)
		if q == nil {
			continue
		}
		q.CheckedAt = time.Now().UTC()

		t.mu.Lock()
		t.quotas[probe.Provider()] = q
		t.mu.Unlock()

		t.debugf("quota for %s: status=%s available=%.0f%%", q.Provider, q.Status, q.AvailablePercent())
	}

	if err := t.save(); err != nil {
		t.warnf("failed to persist quota snapshot: %v", err)
	}
}

// Poll refreshes on an interval until ctx is done. Run it in its own
// goroutine.
func (t *Tracker) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh(ctx)
		}
	}
}

// StatusFor returns the tracked status for a provider, or StatusUnknown
// when the provider has never been polled.
func (t *Tracker) StatusFor(provider string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if q, ok := t.quotas[provider]; ok {
		return q.Status
	}
	return StatusUnknown
}

// Snapshot returns a copy of all tracked quotas.
func (t *Tracker) Snapshot() []ProviderQuota {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ProviderQuota, 0, len(t.quotas))
	for _, q := range t.quotas {
		out = append(out, *q)
	}
	return out
}

func (t *Tracker) debugf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Debugf(format, args...)
	}
}

func (t *Tracker) warnf(format string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Warnf(format, args...)
	}
}

// LocalProbe reports availability of an on-device model runtime by checking
// that its executable is installed. Binary available/unavailable, never
// limited.
type LocalProbe struct {
	ProviderID string
	Executable string

	// lookPath is injectable for tests; defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// Provider returns the provider id.
func (p *LocalProbe) Provider() string { return p.ProviderID }

// Check reports available when the executable is on PATH.
func (p *LocalProbe) Check(ctx context.Context) *ProviderQuota {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	q := &ProviderQuota{
		Provider: p.ProviderID,
		Type:     TypeLocal,
		Status:   StatusAvailable,
	}
	if _, err := lookPath(p.Executable); err != nil {
		q.Status = StatusUnavailable
		q.Error = fmt.Sprintf("%s not installed", p.Executable)
	}
	return q
}

// FileProbe reads a provider-written usage file (a credential store or a
// usage snapshot dropped by the provider's own tooling). The file content is
// a ProviderQuota JSON object minus the provider field.
type FileProbe struct {
	ProviderID string
	Path       string
	QuotaType  Type
}

// Provider returns the provider id.
func (p *FileProbe) Provider() string { return p.ProviderID }

// Check reads and classifies the usage file. A missing or unreadable file
// yields StatusUnknown rather than an error: quota is advisory.
func (p *FileProbe) Check(ctx context.Context) *ProviderQuota {
	q := &ProviderQuota{
		Provider: p.ProviderID,
		Type:     p.QuotaType,
		Status:   StatusUnknown,
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return q
	}
	if err := json.Unmarshal(data, q); err != nil {
		q.Status = StatusError
		q.Error = fmt.Sprintf("unparseable usage file: %v", err)
		return q
	}

	q.Provider = p.ProviderID
	if p.QuotaType != "" {
		q.Type = p.QuotaType
	}
	if q.Status == "" || q.Status == StatusUnknown {
		q.Status = classify(q.AvailablePercent())
	}
	return q
}

// classify maps an availability percentage to a status.
func classify(availablePercent float64) Status {
	switch {
	case availablePercent <= 0:
		return StatusExhausted
	case availablePercent < 20:
		return StatusLimited
	default:
		return StatusAvailable
	}
}
