package reports

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	totals    map[time.Time]*Totals
	fallback  Totals
	series    []MonthlyPoint
	slices    []CategorySlice
	split     []CustomerSplitPoint
	retention RetentionCounts
}

func (s *stubRepo) Totals(ctx context.Context, from, to time.Time) (*Totals, error) {
	if t, ok := s.totals[from]; ok {
		return t, nil
	}
	totals := s.fallback
	return &totals, nil
}

func (s *stubRepo) MonthlySeries(ctx context.Context, from, to time.Time) ([]MonthlyPoint, error) {
	return s.series, nil
}

func (s *stubRepo) CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySlice, error) {
	return s.slices, nil
}

func (s *stubRepo) CustomerSplit(ctx context.Context, from, to time.Time) ([]CustomerSplitPoint, error) {
	return s.split, nil
}

func (s *stubRepo) Retention(ctx context.Context) (*RetentionCounts, error) {
	retention := s.retention
	return &retention, nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestReportRejectsUnknownRange(t *testing.T) {
	svc, err := NewService(&stubRepo{}, 15)
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), Range("decade"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestReportComparesWithPreviousPeriod(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-RangeMonth.duration())
	prevFrom := from.Add(-RangeMonth.duration())

	repo := &stubRepo{
		totals: map[time.Time]*Totals{
			from:     {SaleCount: 4, Revenue: dec("400.00"), UnitsSold: 6},
			prevFrom: {SaleCount: 2, Revenue: dec("100.00"), UnitsSold: 3},
		},
	}
	svc, err := NewService(repo, 15)
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return now }

	report, err := svc.Report(context.Background(), RangeMonth)
	require.NoError(t, err)

	assert.True(t, report.AvgOrderValue.Equal(dec("100.00")), "avg order value: %s", report.AvgOrderValue)
	assert.True(t, report.EstimatedProfit.Equal(dec("60.00")), "estimated profit: %s", report.EstimatedProfit)
	assert.True(t, report.Comparison.SaleCountChange.Equal(dec("100")), "sale count change: %s", report.Comparison.SaleCountChange)
	assert.True(t, report.Comparison.RevenueChange.Equal(dec("300")), "revenue change: %s", report.Comparison.RevenueChange)
	assert.True(t, report.Comparison.AvgOrderChange.Equal(dec("100")), "avg order change: %s", report.Comparison.AvgOrderChange)
}

func TestReportDefaultsToMonth(t *testing.T) {
	svc, err := NewService(&stubRepo{}, 15)
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, RangeMonth, report.Range)
}

func TestDashboardBestAndWorstMonth(t *testing.T) {
	repo := &stubRepo{
		fallback: Totals{SaleCount: 10, Revenue: dec("5000.00"), UnitsSold: 12},
		series: []MonthlyPoint{
			{Month: "2026-06", SaleCount: 3, Revenue: dec("900.00")},
			{Month: "2026-07", SaleCount: 5, Revenue: dec("2600.00")},
			{Month: "2026-08", SaleCount: 2, Revenue: dec("1500.00")},
		},
		retention: RetentionCounts{Buyers: 8, RepeatBuyers: 2},
	}
	svc, err := NewService(repo, 15)
	require.NoError(t, err)

	dashboard, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	require.NotNil(t, dashboard.BestMonth)
	require.NotNil(t, dashboard.WorstMonth)
	assert.Equal(t, "2026-07", dashboard.BestMonth.Month)
	assert.Equal(t, "2026-06", dashboard.WorstMonth.Month)
	assert.True(t, dashboard.AvgOrderValue.Equal(dec("500.00")), "avg order value: %s", dashboard.AvgOrderValue)
	assert.True(t, dashboard.EstimatedProfit.Equal(dec("750.00")), "estimated profit: %s", dashboard.EstimatedProfit)
	assert.True(t, dashboard.RetentionRate.Equal(dec("25")), "retention rate: %s", dashboard.RetentionRate)
}

func TestPercentChangeEdgeCases(t *testing.T) {
	assert.True(t, percentChange(decimal.Zero, decimal.Zero).IsZero())
	assert.True(t, percentChange(dec("50"), decimal.Zero).Equal(dec("100")))
	assert.True(t, percentChange(dec("50"), dec("100")).Equal(dec("-50")))
}

func TestAvgOrderValueZeroSales(t *testing.T) {
	assert.True(t, avgOrderValue(Totals{}).IsZero())
}
