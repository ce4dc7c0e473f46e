package metering

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/toolforge/backend/internal/domain/metering"
	"github.com/toolforge/backend/internal/domain/shared"
)

// DayTotalsDTO aggregates one day's calls split by identity kind
type DayTotalsDTO struct {
	Day       string `json:"day"`
	Anonymous int64  `json:"anonymous"`
	Accounts  int64  `json:"accounts"`
	Total     int64  `json:"total"`
}

// ReportService builds the admin usage reports from the ledger
type ReportService struct {
	ledger metering.UsageLedgerRepository
	logger *zap.Logger

	now func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(ledger metering.UsageLedgerRepository, logger *zap.Logger) *ReportService {
	return &ReportService{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// TodayTotals returns the current UTC day's call totals
func (s *ReportService) TodayTotals(ctx context.Context) (*DayTotalsDTO, error) {
	day := metering.DayKey(s.now())

	totals, err := s.ledger.TotalsForDay(ctx, day)
	if err != nil {
		s.logger.Error("Day totals query failed", zap.String("day", day), zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}

	return &DayTotalsDTO{
		Day:       day,
		Anonymous: totals.Anonymous,
		Accounts:  totals.Accounts,
		Total:     totals.Anonymous + totals.Accounts,
	}, nil
}

// LastSevenDays returns per-day totals for the trailing week including
// today, oldest first. Days without ledger rows report zeros.
func (s *ReportService) LastSevenDays(ctx context.Context) ([]DayTotalsDTO, error) {
	now := s.now().UTC()
	from := now.AddDate(0, 0, -6)
	fromDay := metering.DayKey(from)
	toDay := metering.DayKey(now)

	rows, err := s.ledger.SeriesBetween(ctx, fromDay, toDay)
	if err != nil {
		s.logger.Error("Usage series query failed",
			zap.String("from", fromDay),
			zap.String("to", toDay),
			zap.Error(err))
		return nil, shared.ErrStoreUnavailable
	}

	byDay := make(map[string]metering.DayTotals, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r
	}

	series := make([]DayTotalsDTO, 0, 7)
	for i := 0; i < 7; i++ {
		day := metering.DayKey(from.AddDate(0, 0, i))
		totals := byDay[day]
		series = append(series, DayTotalsDTO{
			Day:       day,
			Anonymous: totals.Anonymous,
			Accounts:  totals.Accounts,
			Total:     totals.Anonymous + totals.Accounts,
		})
	}
	return series, nil
}
