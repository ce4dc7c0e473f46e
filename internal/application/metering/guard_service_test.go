package metering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newGuardFixture(t *testing.T) (*GuardService, *mockPlanRecordRepository, *mockUsageLedgerRepository) {
	t.Helper()
	plans := new(mockPlanRecordRepository)
	ledger := new(mockUsageLedgerRepository)
	svc := NewGuardService(plans, ledger, metering.DefaultQuotaPolicy(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, plans, ledger
}

func TestGuardService_Check_Anonymous(t *testing.T) {
	t.Run("allows anonymous caller under limit", func(t *testing.T) {
		svc, _, ledger := newGuardFixture(t)
		ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-15", 10).
			Return(metering.Decision{Allowed: true, Used: 3}, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{ForwardedFor: "203.0.113.7"})

		assert.True(t, verdict.Allowed)
		assert.Equal(t, metering.TierAnonymous, verdict.Tier)
		assert.Equal(t, 3, verdict.Used)
		assert.Equal(t, 10, verdict.Limit)
		assert.Empty(t, verdict.Reason)
		assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), verdict.ResetAt)
		ledger.AssertExpectations(t)
	})

	t.Run("denies anonymous caller at limit", func(t *testing.T) {
		svc, _, ledger := newGuardFixture(t)
		ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-15", 10).
			Return(metering.Decision{Allowed: false, Used: 10}, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{ForwardedFor: "203.0.113.7"})

		assert.False(t, verdict.Allowed)
		assert.Equal(t, ReasonQuotaExceeded, verdict.Reason)
		assert.Equal(t, 10, verdict.Used)
		ledger.AssertExpectations(t)
	})

	t.Run("anonymous callers never hit the plan store", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-15", 10).
			Return(metering.Decision{Allowed: true, Used: 1}, nil).Once()

		svc.Check(context.Background(), GuardInput{ForwardedFor: "203.0.113.7"})

		plans.AssertNotCalled(t, "FindByAccountID", mock.Anything, mock.Anything)
	})

	t.Run("rejects request with no identity at all", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)

		verdict := svc.Check(context.Background(), GuardInput{})

		assert.False(t, verdict.Allowed)
		assert.Equal(t, ReasonIdentityUnavailable, verdict.Reason)
		plans.AssertNotCalled(t, "FindByAccountID", mock.Anything, mock.Anything)
		ledger.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGuardService_Check_Accounts(t *testing.T) {
	accountID := uuid.New()
	acctKey := "acct:" + accountID.String()

	t.Run("account without plan record is free tier", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		plans.On("FindByAccountID", mock.Anything, accountID).Return(nil, shared.ErrNotFound).Once()
		ledger.On("CheckAndIncrement", mock.Anything, acctKey, "2026-03-15", 50).
			Return(metering.Decision{Allowed: true, Used: 12}, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{AccountID: &accountID})

		assert.True(t, verdict.Allowed)
		assert.Equal(t, metering.TierFree, verdict.Tier)
		assert.Equal(t, 50, verdict.Limit)
		plans.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})

	t.Run("account identity ignores address headers", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		plans.On("FindByAccountID", mock.Anything, accountID).Return(nil, shared.ErrNotFound).Once()
		ledger.On("CheckAndIncrement", mock.Anything, acctKey, "2026-03-15", 50).
			Return(metering.Decision{Allowed: true, Used: 1}, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{
			AccountID:    &accountID,
			ForwardedFor: "203.0.113.7",
		})

		assert.True(t, verdict.Allowed)
		ledger.AssertExpectations(t)
	})

	t.Run("paid account skips the ledger entirely", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		record, err := metering.NewLifetimeProPlan(accountID)
		require.NoError(t, err)
		plans.On("FindByAccountID", mock.Anything, accountID).Return(record, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{AccountID: &accountID})

		assert.True(t, verdict.Allowed)
		assert.Equal(t, metering.TierPaid, verdict.Tier)
		assert.Equal(t, metering.Unlimited, verdict.Limit)
		ledger.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired timed pro is metered as free", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		record, err := metering.NewTimedProPlan(accountID, testNow.Add(-time.Hour))
		require.NoError(t, err)
		plans.On("FindByAccountID", mock.Anything, accountID).Return(record, nil).Once()
		ledger.On("CheckAndIncrement", mock.Anything, acctKey, "2026-03-15", 50).
			Return(metering.Decision{Allowed: true, Used: 1}, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{AccountID: &accountID})

		assert.True(t, verdict.Allowed)
		assert.Equal(t, metering.TierFree, verdict.Tier)
		ledger.AssertExpectations(t)
	})

	t.Run("active timed pro is paid until expiry", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		record, err := metering.NewTimedProPlan(accountID, testNow.Add(time.Hour))
		require.NoError(t, err)
		plans.On("FindByAccountID", mock.Anything, accountID).Return(record, nil).Once()

		verdict := svc.Check(context.Background(), GuardInput{AccountID: &accountID})

		assert.True(t, verdict.Allowed)
		assert.Equal(t, metering.TierPaid, verdict.Tier)
		ledger.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGuardService_Check_FailClosed(t *testing.T) {
	accountID := uuid.New()

	t.Run("plan lookup failure denies the call", func(t *testing.T) {
		svc, plans, ledger := newGuardFixture(t)
		plans.On("FindByAccountID", mock.Anything, accountID).
			Return(nil, errors.New("connection refused")).Once()

		verdict := svc.Check(context.Background(), GuardInput{AccountID: &accountID})

		assert.False(t, verdict.Allowed)
		assert.Equal(t, ReasonStoreUnavailable, verdict.Reason)
		ledger.AssertNotCalled(t, "CheckAndIncrement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ledger failure denies the call without retry", func(t *testing.T) {
		svc, _, ledger := newGuardFixture(t)
		ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-15", 10).
			Return(metering.Decision{}, errors.New("connection refused")).Once()

		verdict := svc.Check(context.Background(), GuardInput{ForwardedFor: "203.0.113.7"})

		assert.False(t, verdict.Allowed)
		assert.Equal(t, ReasonStoreUnavailable, verdict.Reason)
		ledger.AssertNumberOfCalls(t, "CheckAndIncrement", 1)
	})
}

func TestGuardService_Check_DayRollover(t *testing.T) {
	svc, _, ledger := newGuardFixture(t)

	ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-15", 10).
		Return(metering.Decision{Allowed: false, Used: 10}, nil).Once()
	ledger.On("CheckAndIncrement", mock.Anything, "ip:203.0.113.7", "2026-03-16", 10).
		Return(metering.Decision{Allowed: true, Used: 1}, nil).Once()

	input := GuardInput{ForwardedFor: "203.0.113.7"}

	verdict := svc.Check(context.Background(), input)
	assert.False(t, verdict.Allowed)

	// Cross UTC midnight; the same caller is metered against a fresh day key.
	svc.now = func() time.Time { return testNow.Add(13 * time.Hour) }
	verdict = svc.Check(context.Background(), input)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, 1, verdict.Used)
	ledger.AssertExpectations(t)
}
