package metering

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// UsageSummaryDTO describes a caller's standing for the current day
type UsageSummaryDTO struct {
	Tier    string    `json:"tier"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// UsageQueryService answers "where do I stand today" for a caller's own
// identity. It reads the same tier authority and ledger as the guard but
// never mutates anything.
type UsageQueryService struct {
	plans  metering.PlanRecordRepository
	ledger metering.UsageLedgerRepository
	policy *metering.QuotaPolicy
	logger *zap.Logger

	now func() time.Time
}

// NewUsageQueryService creates a new UsageQueryService
func NewUsageQueryService(
	plans metering.PlanRecordRepository,
	ledger metering.UsageLedgerRepository,
	policy *metering.QuotaPolicy,
	logger *zap.Logger,
) *UsageQueryService {
	return &UsageQueryService{
		plans:  plans,
		ledger: ledger,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Summary returns the caller's tier, usage and limit for the current UTC day
func (s *UsageQueryService) Summary(ctx context.Context, input GuardInput) (*UsageSummaryDTO, error) {
	now := s.now()

	identity, err := metering.ResolveIdentity(input.AccountID, input.ForwardedFor, input.RealIP)
	if err != nil {
		return nil, shared.ErrIdentityUnavailable
	}

	tier, err := s.resolveTier(ctx, identity, now)
	if err != nil {
		s.logger.Error("Plan lookup failed", zap.String("key", identity.Key()), zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}

	summary := &UsageSummaryDTO{
		Tier:    string(tier),
		Limit:   s.policy.Limit(tier),
		ResetAt: metering.EndOfDay(now),
	}

	// Unlimited tiers never write the ledger, so there is nothing to read.
	if summary.Limit == metering.Unlimited {
		return summary, nil
	}

	used, err := s.ledger.UsedOn(ctx, identity.Key(), metering.DayKey(now))
	if err != nil {
		s.logger.Error("Ledger read failed", zap.String("key", identity.Key()), zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}
	summary.Used = used
	return summary, nil
}

func (s *UsageQueryService) resolveTier(ctx context.Context, identity metering.Identity, now time.Time) (metering.Tier, error) {
	accountID, ok := identity.AccountID()
	if !ok {
		return metering.TierAnonymous, nil
	}

	record, err := s.plans.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return metering.TierFree, nil
		}
		return "", err
	}
	return record.EffectiveTier(now), nil
}
