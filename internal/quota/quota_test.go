package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailablePercent(t *testing.T) {
	tests := []struct {
		name  string
		quota ProviderQuota
		want  float64
	}{
		{"percentage", ProviderQuota{Type: TypePercentage, UsedPercent: 35}, 65},
		{"percentage over 100 clamps", ProviderQuota{Type: TypePercentage, UsedPercent: 140}, 0},
		{"credits", ProviderQuota{Type: TypeCredits, CreditsRemaining: 25, CreditsTotal: 100}, 25},
		{"credits without total", ProviderQuota{Type: TypeCredits, CreditsRemaining: 25}, 0},
		{"subscription", ProviderQuota{Type: TypeSubscription, CreditsRemaining: 3, CreditsTotal: 4}, 75},
		{"rate limit by tokens", ProviderQuota{Type: TypeRateLimit, TokensRemaining: 5000, TokensLimit: 10000}, 50},
		{
			"rate limit falls back to requests",
			ProviderQuota{Type: TypeRateLimit, RequestsRemaining: 10, RequestsLimit: 100},
			10,
		},
		{
			"tokens take precedence over requests",
			ProviderQuota{Type: TypeRateLimit, TokensRemaining: 0, TokensLimit: 100, RequestsRemaining: 100, RequestsLimit: 100},
			0,
		},
		{"rate limit without limits", ProviderQuota{Type: TypeRateLimit}, 0},
		{"local available", ProviderQuota{Type: TypeLocal, Status: StatusAvailable}, 100},
		{"local unavailable", ProviderQuota{Type: TypeLocal, Status: StatusUnavailable}, 0},
		{"unlimited", ProviderQuota{Type: TypeUnlimited}, 100},
		{"unset type", ProviderQuota{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quota.AvailablePercent())
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StatusExhausted, classify(0))
	assert.Equal(t, StatusExhausted, classify(-5))
	assert.Equal(t, StatusLimited, classify(19.9))
	assert.Equal(t, StatusAvailable, classify(20))
	assert.Equal(t, StatusAvailable, classify(100))
}
