package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Totals aggregates non-cancelled sales over a period.
type Totals struct {
	SaleCount int64           `json:"sale_count"`
	Revenue   decimal.Decimal `json:"revenue"`
	UnitsSold int64           `json:"units_sold"`
}

// MonthlyPoint is one month of the sales series.
type MonthlyPoint struct {
	Month     string          `json:"month"`
	SaleCount int64           `json:"sale_count"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// CategorySlice is one vehicle category's share of sold units and revenue.
type CategorySlice struct {
	Category  string          `json:"category"`
	UnitsSold int64           `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// CustomerSplitPoint counts first-time versus returning buyers per month.
type CustomerSplitPoint struct {
	Month     string `json:"month"`
	New       int64  `json:"new"`
	Returning int64  `json:"returning"`
}

// RetentionCounts feed the repeat-buyer ratio.
type RetentionCounts struct {
	Buyers       int64
	RepeatBuyers int64
}

// Repository runs the read-only aggregation queries. Cancelled sales are
// excluded everywhere.
type Repository interface {
	Totals(ctx context.Context, from, to time.Time) (*Totals, error)
	MonthlySeries(ctx context.Context, from, to time.Time) ([]MonthlyPoint, error)
	CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySlice, error)
	CustomerSplit(ctx context.Context, from, to time.Time) ([]CustomerSplitPoint, error)
	Retention(ctx context.Context) (*RetentionCounts, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Totals(ctx context.Context, from, to time.Time) (*Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*)                        AS sale_count,
		       COALESCE(SUM(total_amount), 0) AS revenue,
		       COALESCE(SUM(item_count), 0)   AS units_sold
		FROM sales
		WHERE status != 'Cancelled'
		  AND created_at >= ? AND created_at < ?`,
		from, to,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *repository) MonthlySeries(ctx context.Context, from, to time.Time) ([]MonthlyPoint, error) {
	var points []MonthlyPoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COUNT(*)                                            AS sale_count,
		       COALESCE(SUM(total_amount), 0)                      AS revenue
		FROM sales
		WHERE status != 'Cancelled'
		  AND created_at >= ? AND created_at < ?
		GROUP BY 1
		ORDER BY 1`,
		from, to,
	).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *repository) CategoryBreakdown(ctx context.Context, from, to time.Time) ([]CategorySlice, error) {
	var slices []CategorySlice
	err := r.db.WithContext(ctx).Raw(`
		SELECT vehicles.category                        AS category,
		       COALESCE(SUM(sale_items.quantity), 0)    AS units_sold,
		       COALESCE(SUM(sale_items.total_price), 0) AS revenue
		FROM sale_items
		JOIN sales    ON sales.id = sale_items.sale_id
		JOIN vehicles ON vehicles.id = sale_items.vehicle_id
		WHERE sales.status != 'Cancelled'
		  AND sales.created_at >= ? AND sales.created_at < ?
		GROUP BY vehicles.category
		ORDER BY revenue DESC`,
		from, to,
	).Scan(&slices).Error
	if err != nil {
		return nil, err
	}
	return slices, nil
}

// CustomerSplit classifies each sale's buyer as new when the sale is that
// customer's earliest non-cancelled sale.
func (r *repository) CustomerSplit(ctx context.Context, from, to time.Time) ([]CustomerSplitPoint, error) {
	var points []CustomerSplitPoint
	err := r.db.WithContext(ctx).Raw(`
		WITH ranked AS (
			SELECT created_at,
			       ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY created_at) AS nth
			FROM sales
			WHERE status != 'Cancelled'
		)
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COUNT(*) FILTER (WHERE nth = 1)                     AS "new",
		       COUNT(*) FILTER (WHERE nth > 1)                     AS "returning"
		FROM ranked
		WHERE created_at >= ? AND created_at < ?
		GROUP BY 1
		ORDER BY 1`,
		from, to,
	).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *repository) Retention(ctx context.Context) (*RetentionCounts, error) {
	var counts RetentionCounts
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FILTER (WHERE purchase_count > 0) AS buyers,
		       COUNT(*) FILTER (WHERE purchase_count > 1) AS repeat_buyers
		FROM customers`,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
