package customers

import (
	"context"
	"time"

	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes customer persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*CustomerList, error)
	LatestPurchaseAt(ctx context.Context, customerID, excludeSaleID uuid.UUID) (*time.Time, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) Save(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*CustomerList, error) {
	limit := pagination.LimitWithBuffer(params.Limit, pagination.DefaultLimit)

	query := r.db.WithContext(ctx).Model(&models.Customer{})

	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where(
			"name ILIKE ? OR email ILIKE ? OR phone ILIKE ?",
			like, like, like,
		)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	var records []models.Customer
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}

	list := &CustomerList{}
	pageSize := pagination.NormalizeLimit(params.Limit, pagination.DefaultLimit)
	if len(records) > pageSize {
		records = records[:pageSize]
		last := records[len(records)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Customers = records
	return list, nil
}

// LatestPurchaseAt returns the creation time of the customer's most recent
// non-cancelled sale, excluding the given sale. Nil when no such sale exists.
func (r *repository) LatestPurchaseAt(ctx context.Context, customerID, excludeSaleID uuid.UUID) (*time.Time, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("id != ?", excludeSaleID).
		Where("status != ?", enums.SaleStatusCancelled).
		Order("created_at DESC").
		First(&sale).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	at := sale.CreatedAt
	return &at, nil
}
