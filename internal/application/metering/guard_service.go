package metering

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// DenyReason explains why the gate refused a call
type DenyReason string

const (
	ReasonIdentityUnavailable DenyReason = "identity_unavailable"
	ReasonQuotaExceeded       DenyReason = "quota_exceeded"
	ReasonStoreUnavailable    DenyReason = "store_unavailable"
)

// GuardInput carries the raw identity material of one request
type GuardInput struct {
	AccountID    *uuid.UUID
	ForwardedFor string
	RealIP       string
}

// Verdict is the gate's answer for one tool call
type Verdict struct {
	Allowed bool
	Tier    metering.Tier
	Used    int
	Limit   int
	Reason  DenyReason
	ResetAt time.Time
}

// GuardService is the single admission point for tool calls: it resolves the
// caller's identity and tier, looks up the policy limit and performs the one
// atomic ledger increment. Any persistence failure denies the call; the
// conditional increment is never retried.
type GuardService struct {
	plans  metering.PlanRecordRepository
	ledger metering.UsageLedgerRepository
	policy *metering.QuotaPolicy
	logger *zap.Logger

	now func() time.Time
}

// NewGuardService creates a new GuardService
func NewGuardService(
	plans metering.PlanRecordRepository,
	ledger metering.UsageLedgerRepository,
	policy *metering.QuotaPolicy,
	logger *zap.Logger,
) *GuardService {
	return &GuardService{
		plans:  plans,
		ledger: ledger,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Check decides whether one tool call is admitted. It never returns an
// error: every failure mode is a deny verdict with a reason.
func (s *GuardService) Check(ctx context.Context, input GuardInput) Verdict {
	now := s.now()

	identity, err := metering.ResolveIdentity(input.AccountID, input.ForwardedFor, input.RealIP)
	if err != nil {
		s.logger.Info("Rejected unmeterable request",
			zap.String("forwarded_for", input.ForwardedFor),
			zap.String("real_ip", input.RealIP))
		return Verdict{Reason: ReasonIdentityUnavailable, ResetAt: metering.EndOfDay(now)}
	}

	tier, err := s.resolveTier(ctx, identity, now)
	if err != nil {
		s.logger.Error("Plan lookup failed, denying call",
			zap.String("key", identity.Key()),
			zap.Error(err))
		return Verdict{Reason: ReasonStoreUnavailable, ResetAt: metering.EndOfDay(now)}
	}

	limit := s.policy.Limit(tier)
	verdict := Verdict{
		Tier:    tier,
		Limit:   limit,
		ResetAt: metering.EndOfDay(now),
	}

	// Unlimited tiers are admitted without touching the ledger.
	if limit == metering.Unlimited {
		verdict.Allowed = true
		return verdict
	}

	decision, err := s.ledger.CheckAndIncrement(ctx, identity.Key(), metering.DayKey(now), limit)
	if err != nil {
		s.logger.Error("Ledger increment failed, denying call",
			zap.String("key", identity.Key()),
			zap.Error(err))
		verdict.Reason = ReasonStoreUnavailable
		return verdict
	}

	verdict.Used = decision.Used
	if !decision.Allowed {
		verdict.Reason = ReasonQuotaExceeded
		s.logger.Info("Quota exceeded",
			zap.String("key", identity.Key()),
			zap.String("tier", string(tier)),
			zap.Int("used", decision.Used),
			zap.Int("limit", limit))
		return verdict
	}

	verdict.Allowed = true
	return verdict
}

// resolveTier derives the caller's effective tier at the given instant
func (s *GuardService) resolveTier(ctx context.Context, identity metering.Identity, now time.Time) (metering.Tier, error) {
	accountID, ok := identity.AccountID()
	if !ok {
		return metering.TierAnonymous, nil
	}

	record, err := s.plans.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// No assignment means free, not an error.
			return metering.TierFree, nil
		}
		return "", err
	}
	return record.EffectiveTier(now), nil
}
