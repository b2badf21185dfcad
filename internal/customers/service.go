package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dealerdesk/dealerdesk-backend/pkg/db"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerList is one page of customers plus the cursor for the next page.
type CustomerList struct {
	Customers  []models.Customer `json:"customers"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ListFilters narrows customer listings.
type ListFilters struct {
	Search string
}

// CustomerInput carries the directly editable customer fields. Purchase
// statistics are never accepted here; only sale lifecycle events move them.
type CustomerInput struct {
	Name  string
	Email string
	Phone string
}

// PurchaseRecord describes a sale being counted against a customer.
type PurchaseRecord struct {
	SaleID uuid.UUID
	Amount decimal.Decimal
	At     time.Time
}

// PurchaseReversal describes a sale being removed from a customer's
// statistics. ExcludeSaleID keeps the reversed sale out of the
// last-purchase recomputation.
type PurchaseReversal struct {
	ExcludeSaleID uuid.UUID
	Amount        decimal.Decimal
}

// Service covers customer CRUD plus the purchase statistics the sale
// lifecycle drives.
type Service interface {
	CreateCustomer(ctx context.Context, input CustomerInput) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, input CustomerInput) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListCustomers(ctx context.Context, params pagination.Params, filters ListFilters) (*CustomerList, error)

	FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error)
	ApplyPurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, record PurchaseRecord) error
	ReversePurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, reversal PurchaseReversal) error
}

type service struct {
	repo Repository
}

// NewService builds the customers service with the required repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateCustomer(ctx context.Context, input CustomerInput) (*models.Customer, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	customer := &models.Customer{
		Name:       strings.TrimSpace(input.Name),
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:      normalizePhone(input.Phone),
		TotalSpent: decimal.Zero,
	}

	created, err := s.repo.Create(ctx, customer)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_customers_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}
	return created, nil
}

func (s *service) UpdateCustomer(ctx context.Context, id uuid.UUID, input CustomerInput) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	// Statistics stay untouched on profile edits.
	customer.Name = strings.TrimSpace(input.Name)
	customer.Email = strings.ToLower(strings.TrimSpace(input.Email))
	customer.Phone = normalizePhone(input.Phone)

	if err := s.repo.Save(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "uq_customers_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
	}
	return customer, nil
}

func (s *service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete customer")
	}
	return nil
}

func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

func (s *service) ListCustomers(ctx context.Context, params pagination.Params, filters ListFilters) (*CustomerList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	return list, nil
}

func (s *service) FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

// ApplyPurchase increments the customer's purchase count, adds the sale
// amount to the running total and advances last_purchase when the sale is
// more recent than the current value.
func (s *service) ApplyPurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, record PurchaseRecord) error {
	repo := s.repo.WithTx(tx)
	customer, err := repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	customer.PurchaseCount++
	customer.TotalSpent = customer.TotalSpent.Add(record.Amount)
	if customer.LastPurchase == nil || record.At.After(*customer.LastPurchase) {
		at := record.At
		customer.LastPurchase = &at
	}

	if err := repo.Save(ctx, customer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer stats")
	}
	return nil
}

// ReversePurchase undoes one counted sale. Count and total clamp at zero,
// and last_purchase is recomputed from the customer's remaining
// non-cancelled sales.
func (s *service) ReversePurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, reversal PurchaseReversal) error {
	repo := s.repo.WithTx(tx)
	customer, err := repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	if customer.PurchaseCount > 0 {
		customer.PurchaseCount--
	}
	customer.TotalSpent = customer.TotalSpent.Sub(reversal.Amount)
	if customer.TotalSpent.IsNegative() {
		customer.TotalSpent = decimal.Zero
	}

	latest, err := repo.LatestPurchaseAt(ctx, customerID, reversal.ExcludeSaleID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute last purchase")
	}
	customer.LastPurchase = latest

	if err := repo.Save(ctx, customer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer stats")
	}
	return nil
}

func normalizePhone(raw string) *string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return nil
	}
	return &phone
}

func validateInput(input CustomerInput) error {
	details := map[string]string{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "is required"
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		details["email"] = "is required"
	} else if !strings.Contains(email, "@") {
		details["email"] = "must be a valid email address"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}
