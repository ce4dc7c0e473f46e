package metering

import "github.com/toolforge/backend/internal/domain/shared"

// Unlimited marks a tier whose calls are never counted or denied
const Unlimited = -1

// Default daily limits
const (
	DefaultAnonymousLimit = 10
	DefaultFreeLimit      = 50
)

// QuotaPolicy maps tiers to daily call limits. Limits are fixed at
// construction; there is no per-request override path.
type QuotaPolicy struct {
	limits map[Tier]int
}

// NewQuotaPolicy creates a policy with the given anonymous and free limits.
// The paid tier is always unlimited.
func NewQuotaPolicy(anonymousLimit, freeLimit int) (*QuotaPolicy, error) {
	if anonymousLimit <= 0 || freeLimit <= 0 {
		return nil, shared.ErrInvalidInput
	}
	return &QuotaPolicy{
		limits: map[Tier]int{
			TierAnonymous: anonymousLimit,
			TierFree:      freeLimit,
			TierPaid:      Unlimited,
		},
	}, nil
}

// DefaultQuotaPolicy returns the standard 10/50/unlimited policy
func DefaultQuotaPolicy() *QuotaPolicy {
	p, _ := NewQuotaPolicy(DefaultAnonymousLimit, DefaultFreeLimit)
	return p
}

// Limit returns the daily limit for a tier. Unknown tiers fall back to the
// anonymous limit so a bad tier value can never widen access.
func (p *QuotaPolicy) Limit(tier Tier) int {
	if limit, ok := p.limits[tier]; ok {
		return limit
	}
	return p.limits[TierAnonymous]
}

// IsUnlimited reports whether a tier bypasses the ledger entirely
func (p *QuotaPolicy) IsUnlimited(tier Tier) bool {
	return p.Limit(tier) == Unlimited
}
