package sales

import (
	"context"
	"fmt"

	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilters narrows sale listings.
type ListFilters struct {
	Search string
	Status enums.SaleStatus
}

// SaleList is one page of sales plus the cursor for the next page.
type SaleList struct {
	Sales      []models.Sale `json:"sales"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Repository exposes sale persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	Save(ctx context.Context, sale *models.Sale) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*SaleList, error)
	MaxOrderSequence(ctx context.Context, year int) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the sale and its items in one insert graph.
func (r *repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items").
		Preload("Items.Vehicle").
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) Save(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).
		Omit("Customer", "Items").
		Save(sale).Error
}

// Delete removes the sale; items follow via the ON DELETE CASCADE constraint.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Sale{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*SaleList, error) {
	limit := pagination.LimitWithBuffer(params.Limit, pagination.DefaultLimit)

	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Joins("JOIN customers ON customers.id = sales.customer_id")

	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where(
			"sales.order_id ILIKE ? OR customers.name ILIKE ?",
			like, like,
		)
	}
	if filters.Status != "" && filters.Status != "all" {
		query = query.Where("sales.status = ?", filters.Status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(sales.created_at, sales.id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var records []models.Sale
	if err := query.
		Preload("Customer").
		Preload("Items").
		Preload("Items.Vehicle").
		Order("sales.created_at DESC, sales.id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	list := &SaleList{}
	pageSize := pagination.NormalizeLimit(params.Limit, pagination.DefaultLimit)
	if len(records) > pageSize {
		records = records[:pageSize]
		last := records[len(records)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Sales = records
	return list, nil
}

// MaxOrderSequence returns the highest numeric suffix issued for the given
// year, 0 when none exist.
func (r *repository) MaxOrderSequence(ctx context.Context, year int) (int, error) {
	var max int
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(%s), 0) FROM sales WHERE order_id LIKE ?",
		orderIDSequenceExpr(year),
	)
	err := r.db.WithContext(ctx).
		Raw(query, orderIDPattern(year)).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}
