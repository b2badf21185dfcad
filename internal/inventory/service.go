package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListFilters narrows vehicle listings.
type ListFilters struct {
	Search   string
	Category string
}

// VehicleList is one page of vehicles plus the cursor for the next page.
type VehicleList struct {
	Vehicles   []models.Vehicle `json:"vehicles"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// VehicleInput carries the directly editable vehicle fields. Status is not
// accepted; it is derived from Stock at this boundary.
type VehicleInput struct {
	Name        string
	Category    string
	Year        int
	Make        string
	Model       string
	Stock       int
	Price       decimal.Decimal
	Description *string
	ImageURL    string
}

// Service covers direct vehicle CRUD plus the stock ledger operations the
// sales lifecycle drives.
type Service interface {
	CreateVehicle(ctx context.Context, input VehicleInput) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id uuid.UUID, input VehicleInput) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, params pagination.Params, filters ListFilters) (*VehicleList, error)

	FindVehicle(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Vehicle, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
}

type service struct {
	repo Repository
}

// NewService builds the inventory service with the required repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateVehicle(ctx context.Context, input VehicleInput) (*models.Vehicle, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	vehicle := &models.Vehicle{
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Year:        input.Year,
		Make:        strings.TrimSpace(input.Make),
		Model:       strings.TrimSpace(input.Model),
		Stock:       input.Stock,
		Price:       input.Price,
		Status:      enums.VehicleStatusForStock(input.Stock),
		Description: input.Description,
		ImageURL:    strings.TrimSpace(input.ImageURL),
	}

	created, err := s.repo.Create(ctx, vehicle)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vehicle")
	}
	return created, nil
}

func (s *service) UpdateVehicle(ctx context.Context, id uuid.UUID, input VehicleInput) (*models.Vehicle, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}

	vehicle.Name = strings.TrimSpace(input.Name)
	vehicle.Category = strings.TrimSpace(input.Category)
	vehicle.Year = input.Year
	vehicle.Make = strings.TrimSpace(input.Make)
	vehicle.Model = strings.TrimSpace(input.Model)
	vehicle.Stock = input.Stock
	vehicle.Price = input.Price
	vehicle.Status = enums.VehicleStatusForStock(input.Stock)
	vehicle.Description = input.Description
	vehicle.ImageURL = strings.TrimSpace(input.ImageURL)

	if err := s.repo.Save(ctx, vehicle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vehicle")
	}
	return vehicle, nil
}

func (s *service) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}

	refs, err := s.repo.CountSaleReferences(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sale references")
	}
	if refs > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "vehicle is referenced by existing sales").
			WithDetails(map[string]any{"sale_item_count": refs})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete vehicle")
	}
	return nil
}

func (s *service) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	return vehicle, nil
}

func (s *service) ListVehicles(ctx context.Context, params pagination.Params, filters ListFilters) (*VehicleList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vehicles")
	}
	return list, nil
}

func (s *service) FindVehicle(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}
	return vehicle, nil
}

// DecrementStock reduces stock, clamping at zero, and recomputes status.
// Insufficient-stock checks are the caller's responsibility.
func (s *service) DecrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	return s.adjustStock(ctx, tx, id, -qty)
}

// IncrementStock raises stock and recomputes status.
func (s *service) IncrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	return s.adjustStock(ctx, tx, id, qty)
}

func (s *service) adjustStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	vehicle, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vehicle")
	}

	stock := vehicle.Stock + delta
	if stock < 0 {
		stock = 0
	}
	vehicle.Stock = stock
	vehicle.Status = enums.VehicleStatusForStock(stock)

	if err := repo.Save(ctx, vehicle); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save vehicle stock")
	}
	return nil
}

func validateInput(input VehicleInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "is required"
	}
	if strings.TrimSpace(input.Category) == "" {
		details["category"] = "is required"
	}
	if input.Year < 1900 || input.Year > 2100 {
		details["year"] = "must be between 1900 and 2100"
	}
	if strings.TrimSpace(input.Make) == "" {
		details["make"] = "is required"
	}
	if strings.TrimSpace(input.Model) == "" {
		details["model"] = "is required"
	}
	if input.Stock < 0 {
		details["stock"] = "must be at least 0"
	}
	if input.Price.IsNegative() {
		details["price"] = "must be at least 0"
	}
	if strings.TrimSpace(input.ImageURL) == "" {
		details["image_url"] = "is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}
