package metering

import (
	"time"

	"github.com/google/uuid"

	"github.com/toolforge/backend/internal/domain/shared"
)

// Tier is the effective access level of a caller
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierPaid      Tier = "paid"
)

// PlanKind is the stored plan variant. Lifetime is its own variant rather
// than a far-future expiration date; expiration only exists for timed plans.
type PlanKind string

const (
	PlanFree        PlanKind = "free"
	PlanTimedPro    PlanKind = "timed_pro"
	PlanLifetimePro PlanKind = "lifetime_pro"
)

// IsValid checks if the plan kind is one of the known variants
func (k PlanKind) IsValid() bool {
	switch k {
	case PlanFree, PlanTimedPro, PlanLifetimePro:
		return true
	}
	return false
}

// PlanRecord is the stored plan assignment for one account.
// Accounts without a record are free; expiry is never written back on read.
type PlanRecord struct {
	shared.BaseEntity
	AccountID uuid.UUID
	Kind      PlanKind
	ExpiresAt *time.Time
}

// NewFreePlan creates a free plan record for an account
func NewFreePlan(accountID uuid.UUID) (*PlanRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	return &PlanRecord{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  accountID,
		Kind:       PlanFree,
	}, nil
}

// NewTimedProPlan creates a pro plan record that expires at the given time
func NewTimedProPlan(accountID uuid.UUID, expiresAt time.Time) (*PlanRecord, error) {
	if accountID == uuid.Nil || expiresAt.IsZero() {
		return nil, shared.ErrInvalidInput
	}
	exp := expiresAt.UTC()
	return &PlanRecord{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  accountID,
		Kind:       PlanTimedPro,
		ExpiresAt:  &exp,
	}, nil
}

// NewLifetimeProPlan creates a pro plan record that never expires
func NewLifetimeProPlan(accountID uuid.UUID) (*PlanRecord, error) {
	if accountID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	return &PlanRecord{
		BaseEntity: shared.NewBaseEntity(),
		AccountID:  accountID,
		Kind:       PlanLifetimePro,
	}, nil
}

// EffectiveTier derives the tier from the stored variant at the given
// instant. A timed plan past its expiration reads as free without touching
// the record. A nil record (no assignment) is free.
func (p *PlanRecord) EffectiveTier(now time.Time) Tier {
	if p == nil {
		return TierFree
	}
	switch p.Kind {
	case PlanLifetimePro:
		return TierPaid
	case PlanTimedPro:
		if p.ExpiresAt != nil && p.ExpiresAt.After(now) {
			return TierPaid
		}
		return TierFree
	default:
		return TierFree
	}
}

// AssignFree downgrades the record to free and clears any expiration
func (p *PlanRecord) AssignFree() {
	p.Kind = PlanFree
	p.ExpiresAt = nil
	p.Touch()
}

// AssignTimedPro switches the record to a timed pro plan
func (p *PlanRecord) AssignTimedPro(expiresAt time.Time) error {
	if expiresAt.IsZero() {
		return shared.ErrInvalidInput
	}
	exp := expiresAt.UTC()
	p.Kind = PlanTimedPro
	p.ExpiresAt = &exp
	p.Touch()
	return nil
}

// AssignLifetimePro switches the record to a lifetime pro plan
func (p *PlanRecord) AssignLifetimePro() {
	p.Kind = PlanLifetimePro
	p.ExpiresAt = nil
	p.Touch()
}
