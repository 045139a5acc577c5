// Package quota tracks per-provider usage availability. Quota state is
// advisory: routing reads it to prefer available providers, but a model
// invocation may still fail after quota reported available.
package quota

import "time"

// Type classifies how a provider accounts for usage.
type Type string

// Quota types.
const (
	TypePercentage   Type = "percentage"
	TypeCredits      Type = "credits"
	TypeRateLimit    Type = "rate-limit"
	TypeSubscription Type = "subscription"
	TypeLocal        Type = "local"
	TypeUnlimited    Type = "unlimited"
)

// Status is the provider's current availability.
type Status string

// Quota statuses.
const (
	StatusAvailable   Status = "available"
	StatusLimited     Status = "limited"
	StatusExhausted   Status = "exhausted"
	StatusUnavailable Status = "unavailable"
	StatusUnknown     Status = "unknown"
	StatusError       Status = "error"
)

// ProviderQuota is the tracked quota state for one provider.
type ProviderQuota struct {
	Provider string `json:"provider"`
	Type     Type   `json:"type"`
	Status   Status `json:"status"`

	// UsedPercent is set directly for percentage-type providers.
	UsedPercent float64 `json:"usedPercent,omitempty"`

	// Credit accounting.
	CreditsRemaining float64 `json:"creditsRemaining,omitempty"`
	CreditsTotal     float64 `json:"creditsTotal,omitempty"`

	// Rate-limit accounting. Token fields take precedence; request fields
	// are the fallback when tokens are not tracked.
	TokensRemaining   int64 `json:"tokensRemaining,omitempty"`
	TokensLimit       int64 `json:"tokensLimit,omitempty"`
	RequestsRemaining int64 `json:"requestsRemaining,omitempty"`
	RequestsLimit     int64 `json:"requestsLimit,omitempty"`

	ResetAt   *time.Time `json:"resetAt,omitempty"`
	Error     string     `json:"error,omitempty"`
	CheckedAt time.Time  `json:"checkedAt"`
}

// AvailablePercent computes remaining availability as a percentage,
// according to the provider's quota type:
//
//   - percentage: 100 - UsedPercent
//   - credits/subscription: remaining/total
//   - rate-limit: tokensRemaining/tokensLimit, or requests when tokens
//     are not tracked
//   - local: binary 100 or 0 by status
//   - unlimited: always 100
func (q *ProviderQuota) AvailablePercent() float64 {
	switch q.Type {
	case TypePercentage:
		return clampPercent(100 - q.UsedPercent)

	case TypeCredits, TypeSubscription:
		if q.CreditsTotal <= 0 {
			return 0
		}
		return clampPercent(q.CreditsRemaining / q.CreditsTotal * 100)

	case TypeRateLimit:
		if q.TokensLimit > 0 {
			return clampPercent(float64(q.TokensRemaining) / float64(q.TokensLimit) * 100)
		}
		if q.RequestsLimit > 0 {
			return clampPercent(float64(q.RequestsRemaining) / float64(q.RequestsLimit) * 100)
		}
		return 0

	case TypeLocal:
		if q.Status == StatusAvailable {
			return 100
		}
		return 0

	case TypeUnlimited:
		return 100
	}
	return 0
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
