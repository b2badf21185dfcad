package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dealerdesk/dealerdesk-backend/internal/customers"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSaleRepo struct {
	sales      map[uuid.UUID]*models.Sale
	seq        int
	createErrs []error
	creates    int
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{sales: map[uuid.UUID]*models.Sale{}}
}

func (s *stubSaleRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSaleRepo) Create(ctx context.Context, sale *models.Sale) error {
	s.creates++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.sales[sale.ID] = sale
	return nil
}

func (s *stubSaleRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sale, nil
}

func (s *stubSaleRepo) Save(ctx context.Context, sale *models.Sale) error {
	s.sales[sale.ID] = sale
	return nil
}

func (s *stubSaleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.sales[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.sales, id)
	return nil
}

func (s *stubSaleRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*SaleList, error) {
	return &SaleList{}, nil
}

func (s *stubSaleRepo) MaxOrderSequence(ctx context.Context, year int) (int, error) {
	return s.seq, nil
}

type stubLedger struct {
	vehicles map[uuid.UUID]*models.Vehicle
}

func newStubLedger() *stubLedger {
	return &stubLedger{vehicles: map[uuid.UUID]*models.Vehicle{}}
}

func (s *stubLedger) addVehicle(stock int, price string) *models.Vehicle {
	vehicle := &models.Vehicle{
		ID:     uuid.New(),
		Name:   "Aurora GT",
		Stock:  stock,
		Price:  decimal.RequireFromString(price),
		Status: enums.VehicleStatusForStock(stock),
	}
	s.vehicles[vehicle.ID] = vehicle
	return vehicle
}

func (s *stubLedger) FindVehicle(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Vehicle, error) {
	vehicle, ok := s.vehicles[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	return vehicle, nil
}

func (s *stubLedger) DecrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	vehicle, ok := s.vehicles[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	vehicle.Stock -= qty
	if vehicle.Stock < 0 {
		vehicle.Stock = 0
	}
	vehicle.Status = enums.VehicleStatusForStock(vehicle.Stock)
	return nil
}

func (s *stubLedger) IncrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	vehicle, ok := s.vehicles[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
	}
	vehicle.Stock += qty
	vehicle.Status = enums.VehicleStatusForStock(vehicle.Stock)
	return nil
}

type stubStats struct {
	customer *models.Customer
}

func newStubStats() *stubStats {
	return &stubStats{
		customer: &models.Customer{
			ID:         uuid.New(),
			Name:       "Dana Reyes",
			TotalSpent: decimal.Zero,
		},
	}
}

func (s *stubStats) FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	if s.customer == nil || s.customer.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return s.customer, nil
}

func (s *stubStats) ApplyPurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, record customers.PurchaseRecord) error {
	s.customer.PurchaseCount++
	s.customer.TotalSpent = s.customer.TotalSpent.Add(record.Amount)
	if s.customer.LastPurchase == nil || record.At.After(*s.customer.LastPurchase) {
		at := record.At
		s.customer.LastPurchase = &at
	}
	return nil
}

func (s *stubStats) ReversePurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, reversal customers.PurchaseReversal) error {
	if s.customer.PurchaseCount > 0 {
		s.customer.PurchaseCount--
	}
	s.customer.TotalSpent = s.customer.TotalSpent.Sub(reversal.Amount)
	if s.customer.TotalSpent.IsNegative() {
		s.customer.TotalSpent = decimal.Zero
	}
	if s.customer.PurchaseCount == 0 {
		s.customer.LastPurchase = nil
	}
	return nil
}

func newTestService(t *testing.T, repo *stubSaleRepo, ledger *stubLedger, stats *stubStats) Service {
	t.Helper()
	svc, err := NewService(repo, ledger, stats, stubTxRunner{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestCreateSaleTotalsAndStock(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sale.TotalAmount.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected total 200.00, got %s", sale.TotalAmount)
	}
	if sale.ItemCount != 2 {
		t.Fatalf("expected item count 2, got %d", sale.ItemCount)
	}
	if sale.Status != enums.SaleStatusProcessing {
		t.Fatalf("expected processing, got %q", sale.Status)
	}
	if vehicle.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", vehicle.Stock)
	}
	if vehicle.Status != enums.VehicleStatusInStock {
		t.Fatalf("expected in stock, got %q", vehicle.Status)
	}
	if stats.customer.PurchaseCount != 1 {
		t.Fatalf("expected purchase count 1, got %d", stats.customer.PurchaseCount)
	}
	if !stats.customer.TotalSpent.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected total spent 200.00, got %s", stats.customer.TotalSpent)
	}
	if len(sale.Items) != 1 || !sale.Items[0].UnitPrice.Equal(vehicle.Price) {
		t.Fatal("expected one item with the snapshotted unit price")
	}
}

func TestCreateSaleSequentialOrderIDs(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(10, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	year := time.Now().UTC().Year()
	for i, want := range []string{
		fmt.Sprintf("ORD-%d-001", year),
		fmt.Sprintf("ORD-%d-002", year),
	} {
		sale, err := svc.Create(context.Background(), CreateSaleInput{
			CustomerID:    stats.customer.ID,
			PaymentMethod: enums.PaymentMethodCash,
			Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("sale %d: unexpected error: %v", i, err)
		}
		if sale.OrderID != want {
			t.Fatalf("sale %d: expected order id %q, got %q", i, want, sale.OrderID)
		}
	}
}

func TestCreateSaleRetriesOnOrderIDCollision(t *testing.T) {
	repo := newStubSaleRepo()
	repo.createErrs = []error{&pgconn.PgError{
		Code:           "23505",
		ConstraintName: "uq_sales_order_id",
	}}
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 2 {
		t.Fatalf("expected a retry after the collision, got %d attempts", repo.creates)
	}
	if sale.OrderID == "" {
		t.Fatal("expected an order id on the retried sale")
	}
}

func TestCreateSaleInsufficientStockLeavesStateUntouched(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(1, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	_, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 3}},
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if vehicle.Stock != 1 {
		t.Fatalf("stock must be untouched, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 0 {
		t.Fatal("statistics must be untouched")
	}
	if len(repo.sales) != 0 {
		t.Fatal("no sale must be persisted")
	}
}

func TestCreateSaleValidation(t *testing.T) {
	svc := newTestService(t, newStubSaleRepo(), newStubLedger(), newStubStats())
	_, err := svc.Create(context.Background(), CreateSaleInput{})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelRestoresStockAndStats(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusCancelled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != enums.SaleStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if vehicle.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 0 {
		t.Fatalf("expected purchase count 0, got %d", stats.customer.PurchaseCount)
	}
	if !stats.customer.TotalSpent.IsZero() {
		t.Fatalf("expected total spent 0, got %s", stats.customer.TotalSpent)
	}
	if stats.customer.LastPurchase != nil {
		t.Fatal("expected last purchase cleared for only sale")
	}
}

func TestCancelReactivateRoundTrip(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reactivated, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusProcessing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reactivated.Status != enums.SaleStatusProcessing {
		t.Fatalf("expected processing, got %q", reactivated.Status)
	}
	if vehicle.Stock != 3 {
		t.Fatalf("expected stock 3 after round trip, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 1 {
		t.Fatalf("expected purchase count 1 after round trip, got %d", stats.customer.PurchaseCount)
	}
	if !stats.customer.TotalSpent.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected total spent 200.00, got %s", stats.customer.TotalSpent)
	}
}

func TestReactivateInsufficientStockAborts(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(2, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Someone else took the returned stock.
	vehicle.Stock = 1
	vehicle.Status = enums.VehicleStatusForStock(1)

	_, err = svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusProcessing)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if vehicle.Stock != 1 {
		t.Fatalf("stock must be untouched, got %d", vehicle.Stock)
	}
}

func TestSameStatusUpdateHasNoSideEffects(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusProcessing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vehicle.Stock != 3 {
		t.Fatalf("expected stock unchanged at 3, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 1 {
		t.Fatalf("expected purchase count unchanged at 1, got %d", stats.customer.PurchaseCount)
	}
}

func TestShippedToCompletedKeepsInventory(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, status := range []enums.SaleStatus{enums.SaleStatusShipped, enums.SaleStatusCompleted} {
		if _, err := svc.UpdateStatus(context.Background(), sale.ID, status); err != nil {
			t.Fatalf("transition to %q: unexpected error: %v", status, err)
		}
	}
	if vehicle.Stock != 3 {
		t.Fatalf("expected stock unchanged at 3, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 1 {
		t.Fatalf("expected purchase count unchanged at 1, got %d", stats.customer.PurchaseCount)
	}
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc := newTestService(t, newStubSaleRepo(), newStubLedger(), newStubStats())
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), enums.SaleStatus("Misplaced"))
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateReplacesNotes(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notes := "buyer picks up friday"
	updated, err := svc.Update(context.Background(), sale.ID, UpdateSaleInput{
		Status: enums.SaleStatusShipped,
		Notes:  &notes,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enums.SaleStatusShipped {
		t.Fatalf("expected shipped, got %q", updated.Status)
	}
	if updated.Notes == nil || *updated.Notes != notes {
		t.Fatal("expected notes replaced")
	}
}

func TestDeleteProcessingRestoresStock(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), sale.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vehicle.Stock != 5 {
		t.Fatalf("expected stock restored to 5, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 0 {
		t.Fatalf("expected statistics reversed, got count %d", stats.customer.PurchaseCount)
	}
	if len(repo.sales) != 0 {
		t.Fatal("expected sale removed")
	}
}

func TestDeleteCompletedKeepsStock(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), sale.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vehicle.Stock != 3 {
		t.Fatalf("completed sale must not restore stock, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 0 {
		t.Fatalf("expected statistics reversed, got count %d", stats.customer.PurchaseCount)
	}
}

func TestDeleteCancelledReversesNothing(t *testing.T) {
	repo := newStubSaleRepo()
	ledger := newStubLedger()
	stats := newStubStats()
	vehicle := ledger.addVehicle(5, "100.00")
	svc := newTestService(t, repo, ledger, stats)

	sale, err := svc.Create(context.Background(), CreateSaleInput{
		CustomerID:    stats.customer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Items:         []SaleItemInput{{VehicleID: vehicle.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), sale.ID, enums.SaleStatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), sale.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vehicle.Stock != 5 {
		t.Fatalf("expected stock to stay at 5, got %d", vehicle.Stock)
	}
	if stats.customer.PurchaseCount != 0 {
		t.Fatalf("expected purchase count 0, got %d", stats.customer.PurchaseCount)
	}
}

func TestDeleteMissingSale(t *testing.T) {
	svc := newTestService(t, newStubSaleRepo(), newStubLedger(), newStubStats())
	err := svc.Delete(context.Background(), uuid.New())
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
