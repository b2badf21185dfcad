package inventory

import (
	"context"

	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes vehicle persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	Save(ctx context.Context, vehicle *models.Vehicle) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*VehicleList, error)
	CountSaleReferences(ctx context.Context, vehicleID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if err := r.db.WithContext(ctx).Create(vehicle).Error; err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *repository) Save(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Vehicle{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*VehicleList, error) {
	limit := pagination.LimitWithBuffer(params.Limit, pagination.InventoryDefaultLimit)

	query := r.db.WithContext(ctx).Model(&models.Vehicle{})

	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where(
			"name ILIKE ? OR make ILIKE ? OR model ILIKE ? OR description ILIKE ?",
			like, like, like, like,
		)
	}
	if filters.Category != "" && filters.Category != "all" {
		query = query.Where("category = ?", filters.Category)
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

	var vehicles []models.Vehicle
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&vehicles).Error; err != nil {
		return nil, err
	}

	list := &VehicleList{}
	pageSize := pagination.NormalizeLimit(params.Limit, pagination.InventoryDefaultLimit)
	if len(vehicles) > pageSize {
		vehicles = vehicles[:pageSize]
		last := vehicles[len(vehicles)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Vehicles = vehicles
	return list, nil
}

func (r *repository) CountSaleReferences(ctx context.Context, vehicleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SaleItem{}).
		Where("vehicle_id = ?", vehicleID).
		Count(&count).Error
	return count, err
}
