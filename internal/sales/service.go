package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerdesk/dealerdesk-backend/internal/customers"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/metrics"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxOrderIDAttempts bounds retries when two sales race for the same order
// code; the unique constraint on order_id rejects the loser.
const maxOrderIDAttempts = 3

// InventoryLedger is the slice of the inventory service the sale lifecycle
// drives. All calls run inside the caller's transaction.
type InventoryLedger interface {
	FindVehicle(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Vehicle, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error
}

// CustomerStats is the slice of the customers service the sale lifecycle
// drives.
type CustomerStats interface {
	FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error)
	ApplyPurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, record customers.PurchaseRecord) error
	ReversePurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, reversal customers.PurchaseReversal) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SaleItemInput is one requested line of a new sale.
type SaleItemInput struct {
	VehicleID uuid.UUID
	Quantity  int
}

// CreateSaleInput carries the fields needed to open a sale.
type CreateSaleInput struct {
	CustomerID    uuid.UUID
	PaymentMethod enums.PaymentMethod
	Notes         *string
	Items         []SaleItemInput
}

// UpdateSaleInput carries the editable fields of an existing sale. Status
// changes run the full lifecycle side effects.
type UpdateSaleInput struct {
	Status enums.SaleStatus
	Notes  *string
}

// Service manages the sale lifecycle. Every state change runs in a single
// transaction covering the sale, its inventory movements and the customer
// statistics.
type Service interface {
	Create(ctx context.Context, input CreateSaleInput) (*models.Sale, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*SaleList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus) (*models.Sale, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateSaleInput) (*models.Sale, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo      Repository
	inventory InventoryLedger
	customers CustomerStats
	tx        txRunner
	metrics   *metrics.SaleMetrics
}

// NewService builds the sales service. The metrics argument may be nil.
func NewService(repo Repository, inventory InventoryLedger, stats CustomerStats, tx txRunner, saleMetrics *metrics.SaleMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if stats == nil {
		return nil, fmt.Errorf("customer stats required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		inventory: inventory,
		customers: stats,
		tx:        tx,
		metrics:   saleMetrics,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateSaleInput) (*models.Sale, error) {
	if err := validateCreateInput(input); err != nil {
		s.metrics.IncFailure("create")
		return nil, err
	}

	var created *models.Sale
	var err error
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		created, err = s.createOnce(ctx, input)
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err, "uq_sales_order_id") {
			break
		}
	}
	if err != nil {
		s.metrics.IncFailure("create")
		if db.IsUniqueViolation(err, "uq_sales_order_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order id allocation contention")
		}
		var appErr *pkgerrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
	}

	s.metrics.IncSuccess("create")
	return s.Get(ctx, created.ID)
}

func (s *service) createOnce(ctx context.Context, input CreateSaleInput) (*models.Sale, error) {
	var sale *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.customers.FindCustomer(ctx, tx, input.CustomerID); err != nil {
			return err
		}

		items, total, unitCount, err := s.buildItems(ctx, tx, input.Items)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		seq, err := repo.MaxOrderSequence(ctx, time.Now().UTC().Year())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next order sequence")
		}

		sale = &models.Sale{
			OrderID:       orderIDFor(time.Now().UTC().Year(), seq+1),
			CustomerID:    input.CustomerID,
			TotalAmount:   total,
			ItemCount:     unitCount,
			Status:        enums.SaleStatusProcessing,
			PaymentMethod: input.PaymentMethod,
			Notes:         input.Notes,
			Items:         items,
		}
		if err := repo.Create(ctx, sale); err != nil {
			return err
		}

		for _, item := range items {
			if err := s.inventory.DecrementStock(ctx, tx, item.VehicleID, item.Quantity); err != nil {
				return err
			}
		}

		return s.customers.ApplyPurchase(ctx, tx, input.CustomerID, customers.PurchaseRecord{
			SaleID: sale.ID,
			Amount: total,
			At:     sale.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// buildItems verifies availability and snapshots unit prices from the
// current vehicle records.
func (s *service) buildItems(ctx context.Context, tx *gorm.DB, inputs []SaleItemInput) ([]models.SaleItem, decimal.Decimal, int, error) {
	items := make([]models.SaleItem, 0, len(inputs))
	total := decimal.Zero
	unitCount := 0

	for _, in := range inputs {
		vehicle, err := s.inventory.FindVehicle(ctx, tx, in.VehicleID)
		if err != nil {
			return nil, decimal.Zero, 0, err
		}
		if vehicle.Stock < in.Quantity {
			return nil, decimal.Zero, 0, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
				WithDetails(map[string]any{
					"vehicle_id": vehicle.ID,
					"vehicle":    vehicle.Name,
					"available":  vehicle.Stock,
					"requested":  in.Quantity,
				})
		}

		lineTotal := vehicle.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		items = append(items, models.SaleItem{
			VehicleID:  in.VehicleID,
			Quantity:   in.Quantity,
			UnitPrice:  vehicle.Price,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
		unitCount += in.Quantity
	}

	return items, total, unitCount, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*SaleList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus) (*models.Sale, error) {
	sale, err := s.changeStatus(ctx, id, status, nil, false)
	if err != nil {
		s.metrics.IncFailure("update_status")
		return nil, err
	}
	s.metrics.IncSuccess("update_status")
	return sale, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateSaleInput) (*models.Sale, error) {
	sale, err := s.changeStatus(ctx, id, input.Status, input.Notes, true)
	if err != nil {
		s.metrics.IncFailure("update")
		return nil, err
	}
	s.metrics.IncSuccess("update")
	return sale, nil
}

// changeStatus applies a status transition with its side effects, optionally
// replacing the notes, all in one transaction.
func (s *service) changeStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus, notes *string, setNotes bool) (*models.Sale, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sale status").
			WithDetails(map[string]any{"status": status})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}

		if err := s.applyTransition(ctx, tx, sale, status); err != nil {
			return err
		}

		sale.Status = status
		if setNotes {
			sale.Notes = notes
		}
		if err := repo.Save(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save sale")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// applyTransition runs the inventory and statistics effects of moving the
// sale from its current status to the requested one. Only transitions that
// cross the Cancelled boundary move stock or statistics.
func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, sale *models.Sale, status enums.SaleStatus) error {
	from := sale.Status
	if from == status {
		return nil
	}

	switch {
	case status == enums.SaleStatusCancelled:
		// Cancelling restores stock and removes the sale from the
		// customer's statistics.
		for _, item := range sale.Items {
			if err := s.inventory.IncrementStock(ctx, tx, item.VehicleID, item.Quantity); err != nil {
				return err
			}
		}
		return s.customers.ReversePurchase(ctx, tx, sale.CustomerID, customers.PurchaseReversal{
			ExcludeSaleID: sale.ID,
			Amount:        sale.TotalAmount,
		})

	case from == enums.SaleStatusCancelled:
		// Reactivating re-checks availability, takes the stock again
		// and counts the sale again.
		for _, item := range sale.Items {
			vehicle, err := s.inventory.FindVehicle(ctx, tx, item.VehicleID)
			if err != nil {
				return err
			}
			if vehicle.Stock < item.Quantity {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock to reactivate sale").
					WithDetails(map[string]any{
						"vehicle_id": vehicle.ID,
						"vehicle":    vehicle.Name,
						"available":  vehicle.Stock,
						"requested":  item.Quantity,
					})
			}
		}
		for _, item := range sale.Items {
			if err := s.inventory.DecrementStock(ctx, tx, item.VehicleID, item.Quantity); err != nil {
				return err
			}
		}
		return s.customers.ApplyPurchase(ctx, tx, sale.CustomerID, customers.PurchaseRecord{
			SaleID: sale.ID,
			Amount: sale.TotalAmount,
			At:     sale.CreatedAt,
		})
	}

	// Transitions between active statuses carry no inventory or
	// statistics effects.
	return nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}

		// Completed sales left the lot and cancelled sales already put
		// the stock back; everything else returns to inventory.
		if sale.Status != enums.SaleStatusCompleted && sale.Status != enums.SaleStatusCancelled {
			for _, item := range sale.Items {
				if err := s.inventory.IncrementStock(ctx, tx, item.VehicleID, item.Quantity); err != nil {
					return err
				}
			}
		}

		// Cancelled sales were already removed from the statistics.
		if sale.Status != enums.SaleStatusCancelled {
			if err := s.customers.ReversePurchase(ctx, tx, sale.CustomerID, customers.PurchaseReversal{
				ExcludeSaleID: sale.ID,
				Amount:        sale.TotalAmount,
			}); err != nil {
				return err
			}
		}

		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete sale")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncFailure("delete")
		return err
	}
	s.metrics.IncSuccess("delete")
	return nil
}

func validateCreateInput(input CreateSaleInput) error {
	details := map[string]string{}
	if input.CustomerID == uuid.Nil {
		details["customer_id"] = "is required"
	}
	if !input.PaymentMethod.IsValid() {
		details["payment_method"] = "is not a supported payment method"
	}
	if len(input.Items) == 0 {
		details["items"] = "at least one item is required"
	}
	for i, item := range input.Items {
		if item.VehicleID == uuid.Nil {
			details[fmt.Sprintf("items.%d.vehicle_id", i)] = "is required"
		}
		if item.Quantity < 1 {
			details[fmt.Sprintf("items.%d.quantity", i)] = "must be at least 1"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}
