package metering

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/toolforge/backend/internal/domain/metering"
)

// Mock implementations

type mockPlanRecordRepository struct {
	mock.Mock
}

func (m *mockPlanRecordRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*metering.PlanRecord, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.PlanRecord), args.Error(1)
}

func (m *mockPlanRecordRepository) Save(ctx context.Context, record *metering.PlanRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockPlanRecordRepository) List(ctx context.Context, limit, offset int) ([]*metering.PlanRecord, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*metering.PlanRecord), args.Get(1).(int64), args.Error(2)
}

func (m *mockPlanRecordRepository) FindAll(ctx context.Context) ([]*metering.PlanRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*metering.PlanRecord), args.Error(1)
}

type mockUsageLedgerRepository struct {
	mock.Mock
}

func (m *mockUsageLedgerRepository) CheckAndIncrement(ctx context.Context, key, day string, limit int) (metering.Decision, error) {
	args := m.Called(ctx, key, day, limit)
	return args.Get(0).(metering.Decision), args.Error(1)
}

func (m *mockUsageLedgerRepository) UsedOn(ctx context.Context, key, day string) (int, error) {
	args := m.Called(ctx, key, day)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageLedgerRepository) TotalsForDay(ctx context.Context, day string) (metering.DayTotals, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(metering.DayTotals), args.Error(1)
}

func (m *mockUsageLedgerRepository) SeriesBetween(ctx context.Context, fromDay, toDay string) ([]metering.DayTotals, error) {
	args := m.Called(ctx, fromDay, toDay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]metering.DayTotals), args.Error(1)
}

func (m *mockUsageLedgerRepository) DeleteAccountRowsExcept(ctx context.Context, sparedKeys []string, fromDay, toDay string) (int64, error) {
	args := m.Called(ctx, sparedKeys, fromDay, toDay)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageLedgerRepository) DeleteAnonymousRows(ctx context.Context, fromDay, toDay string) (int64, error) {
	args := m.Called(ctx, fromDay, toDay)
	return args.Get(0).(int64), args.Error(1)
}
