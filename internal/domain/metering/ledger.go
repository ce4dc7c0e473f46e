package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DayLayout is the calendar-day ledger key format, always in UTC
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar-day key for an instant
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// EndOfDay returns the next UTC midnight after t, when the day key rolls over
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Decision is the outcome of one conditional ledger increment.
// Used is the count after the increment when allowed, or the count that
// already stood when denied.
type Decision struct {
	Allowed bool
	Used    int
}

// Cohort selects which callers a bulk ledger reset applies to
type Cohort string

const (
	CohortFree      Cohort = "free"
	CohortAnonymous Cohort = "anonymous"
)

// IsValid checks if the cohort is one of the resettable groups
func (c Cohort) IsValid() bool {
	return c == CohortFree || c == CohortAnonymous
}

// DayTotals aggregates one day's ledger split by identity kind
type DayTotals struct {
	Day       string
	Anonymous int64
	Accounts  int64
}

// UsageLedgerRepository is the contract for per-day usage counters
type UsageLedgerRepository interface {
	// CheckAndIncrement atomically admits one call under the limit for the
	// (key, day) counter, creating it at 1 if absent. It must be a single
	// conditional statement so concurrent callers can never over-admit.
	CheckAndIncrement(ctx context.Context, key, day string, limit int) (Decision, error)

	// UsedOn returns the counter value for a key on a day, zero if absent
	UsedOn(ctx context.Context, key, day string) (int, error)

	// TotalsForDay sums a day's counters split anonymous vs account
	TotalsForDay(ctx context.Context, day string) (DayTotals, error)

	// SeriesBetween returns per-day totals for fromDay..toDay inclusive,
	// ordered by day ascending; days without rows are omitted
	SeriesBetween(ctx context.Context, fromDay, toDay string) ([]DayTotals, error)

	// DeleteAccountRowsExcept removes account-keyed rows in the day range,
	// sparing the given keys. Returns the number of rows removed.
	DeleteAccountRowsExcept(ctx context.Context, sparedKeys []string, fromDay, toDay string) (int64, error)

	// DeleteAnonymousRows removes address-keyed rows in the day range
	DeleteAnonymousRows(ctx context.Context, fromDay, toDay string) (int64, error)
}

// PlanRecordRepository is the contract for stored plan assignments
type PlanRecordRepository interface {
	// FindByAccountID returns the plan record for an account, or
	// shared.ErrNotFound when no assignment exists
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*PlanRecord, error)

	// Save upserts a plan record keyed by account id
	Save(ctx context.Context, record *PlanRecord) error

	// List returns plan records ordered by update time with the total count
	List(ctx context.Context, limit, offset int) ([]*PlanRecord, int64, error)

	// FindAll returns every plan record
	FindAll(ctx context.Context) ([]*PlanRecord, error)
}
