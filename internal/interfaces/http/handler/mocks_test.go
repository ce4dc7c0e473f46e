package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// stubPlanRepo is a minimal in-memory plan store for handler tests
type stubPlanRepo struct {
	records map[uuid.UUID]*metering.PlanRecord
	err     error
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{records: make(map[uuid.UUID]*metering.PlanRecord)}
}

func (s *stubPlanRepo) FindByAccountID(_ context.Context, accountID uuid.UUID) (*metering.PlanRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[accountID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return record, nil
}

func (s *stubPlanRepo) Save(_ context.Context, record *metering.PlanRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records[record.AccountID] = record
	return nil
}

func (s *stubPlanRepo) List(_ context.Context, limit, offset int) ([]*metering.PlanRecord, int64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	all := make([]*metering.PlanRecord, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	return all, int64(len(all)), nil
}

func (s *stubPlanRepo) FindAll(_ context.Context) ([]*metering.PlanRecord, error) {
	records, _, err := s.List(context.Background(), 0, 0)
	return records, err
}

// stubLedgerRepo returns canned answers for every ledger operation
type stubLedgerRepo struct {
	decision metering.Decision
	used     int
	totals   metering.DayTotals
	series   []metering.DayTotals
	removed  int64
	err      error
}

func (s *stubLedgerRepo) CheckAndIncrement(_ context.Context, key, day string, limit int) (metering.Decision, error) {
	return s.decision, s.err
}

func (s *stubLedgerRepo) UsedOn(_ context.Context, key, day string) (int, error) {
	return s.used, s.err
}

func (s *stubLedgerRepo) TotalsForDay(_ context.Context, day string) (metering.DayTotals, error) {
	return s.totals, s.err
}

func (s *stubLedgerRepo) SeriesBetween(_ context.Context, fromDay, toDay string) ([]metering.DayTotals, error) {
	return s.series, s.err
}

func (s *stubLedgerRepo) DeleteAccountRowsExcept(_ context.Context, sparedKeys []string, fromDay, toDay string) (int64, error) {
	return s.removed, s.err
}

func (s *stubLedgerRepo) DeleteAnonymousRows(_ context.Context, fromDay, toDay string) (int64, error) {
	return s.removed, s.err
}

var (
	_ metering.PlanRecordRepository  = (*stubPlanRepo)(nil)
	_ metering.UsageLedgerRepository = (*stubLedgerRepo)(nil)
)
