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

// Plan assignment actions
const (
	PlanActionFree     = "free"
	PlanActionTimed    = "timed"
	PlanActionLifetime = "lifetime"
)

// AssignPlanInput describes one plan override
type AssignPlanInput struct {
	AccountID    uuid.UUID
	Action       string
	DurationDays int
}

// PlanAssignmentDTO is the state of a plan after an override
type PlanAssignmentDTO struct {
	AccountID uuid.UUID  `json:"account_id"`
	Tier      string     `json:"tier"`
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AccountPlanDTO is one row of the admin account listing
type AccountPlanDTO struct {
	AccountID uuid.UUID  `json:"account_id"`
	Tier      string     `json:"tier"`
	Kind      string     `json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ResetUsageInput selects the cohort and day range of a bulk ledger reset.
// Empty days default to the current UTC day.
type ResetUsageInput struct {
	Cohort  metering.Cohort
	FromDay string
	ToDay   string
}

// AdminService implements operator overrides: plan assignment, bulk ledger
// resets and the account listing. Persistence errors are surfaced to the
// caller, never retried.
type AdminService struct {
	plans  metering.PlanRecordRepository
	ledger metering.UsageLedgerRepository
	logger *zap.Logger

	now func() time.Time
}

// NewAdminService creates a new AdminService
func NewAdminService(
	plans metering.PlanRecordRepository,
	ledger metering.UsageLedgerRepository,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		plans:  plans,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// AssignPlan applies a plan override to an account, creating the record if
// the account never had one.
func (s *AdminService) AssignPlan(ctx context.Context, input AssignPlanInput) (*PlanAssignmentDTO, error) {
	if input.AccountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Account ID cannot be empty")
	}

	now := s.now()

	record, err := s.plans.FindByAccountID(ctx, input.AccountID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("Plan lookup failed", zap.String("account_id", input.AccountID.String()), zap.Error(err))
			return nil, shared.ErrStoreUnavailable
		}
		record, err = metering.NewFreePlan(input.AccountID)
		if err != nil {
			return nil, err
		}
	}

	switch input.Action {
	case PlanActionFree:
		record.AssignFree()
	case PlanActionTimed:
		if input.DurationDays <= 0 {
			return nil, shared.NewDomainError("INVALID_INPUT", "Timed plans need a positive duration in days")
		}
		if err := record.AssignTimedPro(now.AddDate(0, 0, input.DurationDays)); err != nil {
			return nil, err
		}
	case PlanActionLifetime:
		record.AssignLifetimePro()
	default:
		return nil, shared.NewDomainError("INVALID_INPUT", "Unknown plan action")
	}

	if err := s.plans.Save(ctx, record); err != nil {
		s.logger.Error("Plan save failed", zap.String("account_id", input.AccountID.String()), zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}

	s.logger.Info("Plan assigned",
		zap.String("account_id", input.AccountID.String()),
		zap.String("action", input.Action),
		zap.String("kind", string(record.Kind)))

	return &PlanAssignmentDTO{
		AccountID: record.AccountID,
		Tier:      string(record.EffectiveTier(now)),
		Kind:      string(record.Kind),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ResetUsage deletes ledger rows for one cohort in a day range. Paid
// accounts and plan records are never touched. Returns the rows removed.
func (s *AdminService) ResetUsage(ctx context.Context, input ResetUsageInput) (int64, error) {
	if !input.Cohort.IsValid() {
		return 0, shared.NewDomainError("INVALID_INPUT", "Unknown reset cohort")
	}

	now := s.now()
	fromDay, toDay, err := resolveDayRange(input.FromDay, input.ToDay, now)
	if err != nil {
		return 0, err
	}

	var removed int64
	switch input.Cohort {
	case metering.CohortAnonymous:
		removed, err = s.ledger.DeleteAnonymousRows(ctx, fromDay, toDay)

	case metering.CohortFree:
		// Accounts without a plan record are free, so the reset deletes
		// every account-keyed row except those of effectively paid accounts.
		var spared []string
		spared, err = s.paidAccountKeys(ctx, now)
		if err == nil {
			removed, err = s.ledger.DeleteAccountRowsExcept(ctx, spared, fromDay, toDay)
		}
	}
	if err != nil {
		s.logger.Error("Usage reset failed",
			zap.String("cohort", string(input.Cohort)),
			zap.String("from", fromDay),
			zap.String("to", toDay),
			zap.Error(err))
		return 0, shared.ErrStoreUnavailable
	}

	s.logger.Info("Usage reset",
		zap.String("cohort", string(input.Cohort)),
		zap.String("from", fromDay),
		zap.String("to", toDay),
		zap.Int64("rows_removed", removed))
	return removed, nil
}

// ListAccounts returns plan records with their effective tier at call time
func (s *AdminService) ListAccounts(ctx context.Context, limit, offset int) ([]AccountPlanDTO, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.plans.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Account listing failed", zap.Error(err))
		return nil, 0, shared.ErrStoreUnavailable
	}

	now := s.now()
	accounts := make([]AccountPlanDTO, 0, len(records))
	for _, r := range records {
		accounts = append(accounts, AccountPlanDTO{
			AccountID: r.AccountID,
			Tier:      string(r.EffectiveTier(now)),
			Kind:      string(r.Kind),
			ExpiresAt: r.ExpiresAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return accounts, total, nil
}

// paidAccountKeys returns the ledger keys of accounts whose effective tier
// is paid right now
func (s *AdminService) paidAccountKeys(ctx context.Context, now time.Time) ([]string, error) {
	records, err := s.plans.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		if r.EffectiveTier(now) == metering.TierPaid {
			keys = append(keys, metering.AccountKey(r.AccountID))
		}
	}
	return keys, nil
}

// resolveDayRange validates an optional day range, defaulting to today
func resolveDayRange(fromDay, toDay string, now time.Time) (string, string, error) {
	today := metering.DayKey(now)
	if fromDay == "" {
		fromDay = today
	}
	if toDay == "" {
		toDay = today
	}
	from, err := time.Parse(metering.DayLayout, fromDay)
	if err != nil {
		return "", "", shared.NewDomainError("INVALID_INPUT", "Invalid from day, want YYYY-MM-DD")
	}
	to, err := time.Parse(metering.DayLayout, toDay)
	if err != nil {
		return "", "", shared.NewDomainError("INVALID_INPUT", "Invalid to day, want YYYY-MM-DD")
	}
	if to.Before(from) {
		return "", "", shared.NewDomainError("INVALID_INPUT", "Day range is inverted")
	}
	return fromDay, toDay, nil
}
