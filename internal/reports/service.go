package reports

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Range selects the reporting window.
type Range string

const (
	RangeWeek    Range = "week"
	RangeMonth   Range = "month"
	RangeQuarter Range = "quarter"
	RangeYear    Range = "year"

	// DefaultRange is used when the caller does not pick one.
	DefaultRange = RangeMonth
)

// IsValid reports whether the value is a known Range.
func (r Range) IsValid() bool {
	switch r {
	case RangeWeek, RangeMonth, RangeQuarter, RangeYear:
		return true
	}
	return false
}

func (r Range) duration() time.Duration {
	switch r {
	case RangeWeek:
		return 7 * 24 * time.Hour
	case RangeQuarter:
		return 90 * 24 * time.Hour
	case RangeYear:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Comparison holds period-over-period percent changes.
type Comparison struct {
	SaleCountChange decimal.Decimal `json:"sale_count_change"`
	RevenueChange   decimal.Decimal `json:"revenue_change"`
	AvgOrderChange  decimal.Decimal `json:"avg_order_change"`
}

// Report is the range-scoped reporting payload.
type Report struct {
	Range           Range                `json:"range"`
	From            time.Time            `json:"from"`
	To              time.Time            `json:"to"`
	Totals          Totals               `json:"totals"`
	AvgOrderValue   decimal.Decimal      `json:"avg_order_value"`
	EstimatedProfit decimal.Decimal      `json:"estimated_profit"`
	Comparison      Comparison           `json:"comparison"`
	MonthlySeries   []MonthlyPoint       `json:"monthly_series"`
	Categories      []CategorySlice      `json:"categories"`
	CustomerSplit   []CustomerSplitPoint `json:"customer_split"`
}

// Dashboard is the all-time overview payload.
type Dashboard struct {
	Totals          Totals          `json:"totals"`
	AvgOrderValue   decimal.Decimal `json:"avg_order_value"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
	RetentionRate   decimal.Decimal `json:"retention_rate"`
	BestMonth       *MonthlyPoint   `json:"best_month,omitempty"`
	WorstMonth      *MonthlyPoint   `json:"worst_month,omitempty"`
	MonthlySeries   []MonthlyPoint  `json:"monthly_series"`
}

// Service serves the read-only reporting surfaces.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Report(ctx context.Context, rng Range) (*Report, error)
}

type service struct {
	repo         Repository
	profitMargin decimal.Decimal
	now          func() time.Time
}

// NewService builds the reports service. profitMarginPercent estimates gross
// profit as a flat share of revenue.
func NewService(repo Repository, profitMarginPercent float64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{
		repo:         repo,
		profitMargin: decimal.NewFromFloat(profitMarginPercent).Div(decimal.NewFromInt(100)),
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	yearAgo := now.AddDate(-1, 0, 0)

	totals, err := s.repo.Totals(ctx, time.Time{}, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dashboard totals")
	}
	series, err := s.repo.MonthlySeries(ctx, yearAgo, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dashboard series")
	}
	retention, err := s.repo.Retention(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dashboard retention")
	}

	dashboard := &Dashboard{
		Totals:          *totals,
		AvgOrderValue:   avgOrderValue(*totals),
		EstimatedProfit: totals.Revenue.Mul(s.profitMargin).Round(2),
		RetentionRate:   retentionRate(retention),
		MonthlySeries:   series,
	}
	dashboard.BestMonth, dashboard.WorstMonth = bestAndWorst(series)
	return dashboard, nil
}

func (s *service) Report(ctx context.Context, rng Range) (*Report, error) {
	if rng == "" {
		rng = DefaultRange
	}
	if !rng.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid report range").
			WithDetails(map[string]any{"range": rng})
	}

	to := s.now()
	from := to.Add(-rng.duration())
	prevFrom := from.Add(-rng.duration())

	totals, err := s.repo.Totals(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report totals")
	}
	previous, err := s.repo.Totals(ctx, prevFrom, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report previous totals")
	}
	series, err := s.repo.MonthlySeries(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report series")
	}
	categories, err := s.repo.CategoryBreakdown(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report categories")
	}
	split, err := s.repo.CustomerSplit(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "report customer split")
	}

	return &Report{
		Range:           rng,
		From:            from,
		To:              to,
		Totals:          *totals,
		AvgOrderValue:   avgOrderValue(*totals),
		EstimatedProfit: totals.Revenue.Mul(s.profitMargin).Round(2),
		Comparison: Comparison{
			SaleCountChange: percentChange(decimal.NewFromInt(totals.SaleCount), decimal.NewFromInt(previous.SaleCount)),
			RevenueChange:   percentChange(totals.Revenue, previous.Revenue),
			AvgOrderChange:  percentChange(avgOrderValue(*totals), avgOrderValue(*previous)),
		},
		MonthlySeries: series,
		Categories:    categories,
		CustomerSplit: split,
	}, nil
}

func avgOrderValue(totals Totals) decimal.Decimal {
	if totals.SaleCount == 0 {
		return decimal.Zero
	}
	return totals.Revenue.Div(decimal.NewFromInt(totals.SaleCount)).Round(2)
}

func retentionRate(counts *RetentionCounts) decimal.Decimal {
	if counts == nil || counts.Buyers == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(counts.RepeatBuyers).
		Div(decimal.NewFromInt(counts.Buyers)).
		Mul(decimal.NewFromInt(100)).
		Round(1)
}

// percentChange is relative to the previous value. A move from zero counts
// as a flat 100% increase when anything was sold at all.
func percentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(100)
	}
	return current.Sub(previous).
		Div(previous).
		Mul(decimal.NewFromInt(100)).
		Round(1)
}

func bestAndWorst(series []MonthlyPoint) (best, worst *MonthlyPoint) {
	for i := range series {
		point := series[i]
		if best == nil || point.Revenue.GreaterThan(best.Revenue) {
			best = &series[i]
		}
		if worst == nil || point.Revenue.LessThan(worst.Revenue) {
			worst = &series[i]
		}
	}
	return best, worst
}
