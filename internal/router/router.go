package router

import (
	"fmt"

	"github.com/harrison/autodev/internal/quota"
)

// Logger is the logging interface the router needs.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// QuotaReader exposes the quota tracker to the router. Read-only.
type QuotaReader interface {
	StatusFor(provider string) quota.Status
}

// Advisor exposes learned model performance. Implemented by the learning
// store; ok is false when no history exists for the pair.
type Advisor interface {
	Reliability(model, taskType string) (score float64, samples int, ok bool)
}

// Reliability thresholds for blending learned history into routing.
// A model needs enough samples before its history outranks the static
// matrix, and only a clearly bad track record triggers a down-rank.
const (
	minAdvisorSamples   = 5
	downRankReliability = 0.3
)

// Recommendation is the router's answer for one task.
type Recommendation struct {
	Model    string
	Provider string
	Reason   string
}

// Router selects models from the capability matrix.
type Router struct {
	advisor Advisor
	logger  Logger
}

// NewRouter creates a Router. advisor and logger may be nil.
func NewRouter(advisor Advisor, logger Logger) *Router {
	return &Router{advisor: advisor, logger: logger}
}

// Recommend picks a model for (taskType, mode) honoring quota state.
//
// The matrix row's primary is preferred; if its provider quota is not
// usable, the fallbacks are walked in order. When nothing is usable the
// best-ranked candidate is returned anyway with the reason noting
// exhaustion; the caller must treat a subsequent invocation failure as a
// normal attempt failure.
//
// Learned history may down-rank the primary: with enough samples and a
// reliability below the threshold, the first fallback with a better (or
// unknown) track record is promoted.
func (r *Router) Recommend(taskType TaskType, mode Mode, quotas QuotaReader) Recommendation {
	cell := routeFor(mode, taskType)
	candidates := append([]ModelRef{cell.Primary}, cell.Fallbacks...)
	reason := fmt.Sprintf("%s matrix primary for %s", mode, taskType)

	if promoted, why := r.applyAdvice(candidates, taskType); promoted != nil {
		candidates = promoted
		reason = why
	}

	for i, candidate := range candidates {
		if !usable(quotas, candidate.Provider) {
			r.debugf("skipping %s: provider %s quota is %s",
				candidate.Model, candidate.Provider, statusFor(quotas, candidate.Provider))
			continue
		}
		if i > 0 {
			reason = fmt.Sprintf("fallback #%d for %s: earlier choices quota-blocked", i, taskType)
		}
		return Recommendation{Model: candidate.Model, Provider: candidate.Provider, Reason: reason}
	}

	// Nothing usable: return the best-ranked candidate anyway and say so.
	// After applyAdvice this may be a promoted fallback rather than the
	// matrix primary. The attempt may still succeed if quota state was
	// stale.
	best := candidates[0]
	return Recommendation{
		Model:    best.Model,
		Provider: best.Provider,
		Reason:   fmt.Sprintf("all candidates for %s quota-exhausted; returning best candidate", taskType),
	}
}

// applyAdvice reorders candidates when learned history disqualifies the
// primary. Returns nil when no reorder applies.
func (r *Router) applyAdvice(candidates []ModelRef, taskType TaskType) ([]ModelRef, string) {
	if r.advisor == nil || len(candidates) < 2 {
		return nil, ""
	}

	score, samples, ok := r.advisor.Reliability(candidates[0].Model, string(taskType))
	if !ok || samples < minAdvisorSamples || score >= downRankReliability {
		return nil, ""
	}

	for i := 1; i < len(candidates); i++ {
		fbScore, fbSamples, fbOK := r.advisor.Reliability(candidates[i].Model, string(taskType))
		if fbOK && fbSamples >= minAdvisorSamples && fbScore <= score {
			continue
		}

		reordered := make([]ModelRef, 0, len(candidates))
		reordered = append(reordered, candidates[i])
		for j, c := range candidates {
			if j != i {
				reordered = append(reordered, c)
			}
		}
		why := fmt.Sprintf("down-ranked %s for %s: reliability %.2f over %d attempts",
			candidates[0].Model, taskType, score, samples)
		r.infof("%s", why)
		return reordered, why
	}

	return nil, ""
}

// usable treats available and unknown as routable; quota is advisory and an
// unpolled provider should not be excluded.
func usable(quotas QuotaReader, provider string) bool {
	if quotas == nil {
		return true
	}
	switch quotas.StatusFor(provider) {
	case quota.StatusAvailable, quota.StatusUnknown:
		return true
	}
	return false
}

func statusFor(quotas QuotaReader, provider string) quota.Status {
	if quotas == nil {
		return quota.StatusUnknown
	}
	return quotas.StatusFor(provider)
}

func (r *Router) debugf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, args...)
	}
}

func (r *Router) infof(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof(format, args...)
	}
}
