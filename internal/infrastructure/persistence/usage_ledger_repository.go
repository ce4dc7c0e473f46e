package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// UsageLogModel is the GORM model for per-day usage counters.
// The unique (identity_key, day) index is what the conditional upsert
// in CheckAndIncrement conflicts against.
type UsageLogModel struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	IdentityKey string    `gorm:"type:varchar(64);uniqueIndex:idx_usage_logs_key_day;not null"`
	Day         string    `gorm:"type:varchar(10);uniqueIndex:idx_usage_logs_key_day;not null"`
	Count       int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageLogModel) TableName() string {
	return "usage_logs"
}

// checkAndIncrementSQL admits one call under the limit in a single
// statement. The insert seeds a new counter at 1; on conflict the update
// only fires while the standing count is below the limit, so concurrent
// callers racing on the same counter can never push it past the limit.
// Valid on both PostgreSQL and SQLite.
const checkAndIncrementSQL = `
INSERT INTO usage_logs (id, identity_key, day, count, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (identity_key, day) DO UPDATE
SET count = usage_logs.count + 1, updated_at = excluded.updated_at
WHERE usage_logs.count < ?
RETURNING count`

// UsageLedgerRepository implements the metering.UsageLedgerRepository interface
type UsageLedgerRepository struct {
	db *gorm.DB
}

// NewUsageLedgerRepository creates a new usage ledger repository
func NewUsageLedgerRepository(db *gorm.DB) *UsageLedgerRepository {
	return &UsageLedgerRepository{db: db}
}

// CheckAndIncrement atomically admits one call for the (key, day) counter.
// The limit must be positive: a fresh insert always lands at 1, so a
// non-positive limit cannot be expressed by the conditional statement.
// Unlimited tiers are decided before the ledger is ever consulted.
func (r *UsageLedgerRepository) CheckAndIncrement(ctx context.Context, key, day string, limit int) (metering.Decision, error) {
	if limit <= 0 {
		return metering.Decision{}, shared.ErrInvalidInput
	}

	now := time.Now().UTC()
	var count int
	result := r.db.WithContext(ctx).
		Raw(checkAndIncrementSQL, uuid.New().String(), key, day, now, now, limit).
		Scan(&count)
	if result.Error != nil {
		return metering.Decision{}, result.Error
	}

	if result.RowsAffected == 0 {
		// The conditional update declined; report the standing count.
		used, err := r.UsedOn(ctx, key, day)
		if err != nil {
			return metering.Decision{}, err
		}
		return metering.Decision{Allowed: false, Used: used}, nil
	}

	return metering.Decision{Allowed: true, Used: count}, nil
}

// UsedOn returns the counter value for a key on a day, zero if absent
func (r *UsageLedgerRepository) UsedOn(ctx context.Context, key, day string) (int, error) {
	var result struct {
		Used int
	}
	err := r.db.WithContext(ctx).
		Model(&UsageLogModel{}).
		Select("COALESCE(SUM(count), 0) as used").
		Where("identity_key = ?", key).
		Where("day = ?", day).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.Used, nil
}

// TotalsForDay sums a day's counters split anonymous vs account
func (r *UsageLedgerRepository) TotalsForDay(ctx context.Context, day string) (metering.DayTotals, error) {
	var result struct {
		Anonymous int64
		Accounts  int64
	}
	err := r.db.WithContext(ctx).
		Model(&UsageLogModel{}).
		Select(`
			COALESCE(SUM(CASE WHEN identity_key LIKE ? THEN count ELSE 0 END), 0) as anonymous,
			COALESCE(SUM(CASE WHEN identity_key LIKE ? THEN count ELSE 0 END), 0) as accounts
		`, anonymousKeyPattern, accountKeyPattern).
		Where("day = ?", day).
		Scan(&result).Error
	if err != nil {
		return metering.DayTotals{}, err
	}

	return metering.DayTotals{
		Day:       day,
		Anonymous: result.Anonymous,
		Accounts:  result.Accounts,
	}, nil
}

// SeriesBetween returns per-day totals for the inclusive day range,
// ordered by day ascending. Days with no rows are omitted.
func (r *UsageLedgerRepository) SeriesBetween(ctx context.Context, fromDay, toDay string) ([]metering.DayTotals, error) {
	type seriesRow struct {
		Day       string
		Anonymous int64
		Accounts  int64
	}

	var rows []seriesRow
	err := r.db.WithContext(ctx).
		Model(&UsageLogModel{}).
		Select(`
			day,
			COALESCE(SUM(CASE WHEN identity_key LIKE ? THEN count ELSE 0 END), 0) as anonymous,
			COALESCE(SUM(CASE WHEN identity_key LIKE ? THEN count ELSE 0 END), 0) as accounts
		`, anonymousKeyPattern, accountKeyPattern).
		Where("day >= ?", fromDay).
		Where("day <= ?", toDay).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	series := make([]metering.DayTotals, len(rows))
	for i, row := range rows {
		series[i] = metering.DayTotals{
			Day:       row.Day,
			Anonymous: row.Anonymous,
			Accounts:  row.Accounts,
		}
	}
	return series, nil
}

// DeleteAccountRowsExcept removes account-keyed rows in the inclusive day
// range, sparing the given keys. Returns the number of rows removed.
func (r *UsageLedgerRepository) DeleteAccountRowsExcept(ctx context.Context, sparedKeys []string, fromDay, toDay string) (int64, error) {
	query := r.db.WithContext(ctx).
		Where("identity_key LIKE ?", accountKeyPattern).
		Where("day >= ?", fromDay).
		Where("day <= ?", toDay)
	if len(sparedKeys) > 0 {
		query = query.Where("identity_key NOT IN ?", sparedKeys)
	}

	result := query.Delete(&UsageLogModel{})
	return result.RowsAffected, result.Error
}

// DeleteAnonymousRows removes address-keyed rows in the inclusive day range
func (r *UsageLedgerRepository) DeleteAnonymousRows(ctx context.Context, fromDay, toDay string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("identity_key LIKE ?", anonymousKeyPattern).
		Where("day >= ?", fromDay).
		Where("day <= ?", toDay).
		Delete(&UsageLogModel{})
	return result.RowsAffected, result.Error
}

// LIKE patterns for the two ledger key spaces. The prefixes contain no
// SQL wildcard characters.
const (
	accountKeyPattern   = metering.AccountKeyPrefix + "%"
	anonymousKeyPattern = metering.AnonymousKeyPrefix + "%"
)

// Ensure UsageLedgerRepository implements the interface
var _ metering.UsageLedgerRepository = (*UsageLedgerRepository)(nil)
