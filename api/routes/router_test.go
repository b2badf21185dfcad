package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dealerdesk/dealerdesk-backend/internal/customers"
	"github.com/dealerdesk/dealerdesk-backend/internal/inventory"
	"github.com/dealerdesk/dealerdesk-backend/internal/reports"
	"github.com/dealerdesk/dealerdesk-backend/internal/sales"
	"github.com/dealerdesk/dealerdesk-backend/pkg/config"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db/models"
	"github.com/dealerdesk/dealerdesk-backend/pkg/enums"
	pkgerrors "github.com/dealerdesk/dealerdesk-backend/pkg/errors"
	"github.com/dealerdesk/dealerdesk-backend/pkg/logger"
	"github.com/dealerdesk/dealerdesk-backend/pkg/metrics"
	"github.com/dealerdesk/dealerdesk-backend/pkg/pagination"
	"github.com/dealerdesk/dealerdesk-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubInventoryService struct{}

func (stubInventoryService) CreateVehicle(ctx context.Context, input inventory.VehicleInput) (*models.Vehicle, error) {
	return &models.Vehicle{ID: uuid.New()}, nil
}
func (stubInventoryService) UpdateVehicle(ctx context.Context, id uuid.UUID, input inventory.VehicleInput) (*models.Vehicle, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
}
func (stubInventoryService) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	return nil
}
func (stubInventoryService) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
}
func (stubInventoryService) ListVehicles(ctx context.Context, params pagination.Params, filters inventory.ListFilters) (*inventory.VehicleList, error) {
	return &inventory.VehicleList{Vehicles: []models.Vehicle{}}, nil
}
func (stubInventoryService) FindVehicle(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Vehicle, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vehicle not found")
}
func (stubInventoryService) DecrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	return nil
}
func (stubInventoryService) IncrementStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, qty int) error {
	return nil
}

type stubCustomersService struct{}

func (stubCustomersService) CreateCustomer(ctx context.Context, input customers.CustomerInput) (*models.Customer, error) {
	return &models.Customer{ID: uuid.New()}, nil
}
func (stubCustomersService) UpdateCustomer(ctx context.Context, id uuid.UUID, input customers.CustomerInput) (*models.Customer, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}
func (stubCustomersService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return nil
}
func (stubCustomersService) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}
func (stubCustomersService) ListCustomers(ctx context.Context, params pagination.Params, filters customers.ListFilters) (*customers.CustomerList, error) {
	return &customers.CustomerList{Customers: []models.Customer{}}, nil
}
func (stubCustomersService) FindCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Customer, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
}
func (stubCustomersService) ApplyPurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, record customers.PurchaseRecord) error {
	return nil
}
func (stubCustomersService) ReversePurchase(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, reversal customers.PurchaseReversal) error {
	return nil
}

type stubSalesService struct{}

func (stubSalesService) Create(ctx context.Context, input sales.CreateSaleInput) (*models.Sale, error) {
	return &models.Sale{ID: uuid.New(), OrderID: "ORD-2026-001"}, nil
}
func (stubSalesService) Get(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
}
func (stubSalesService) List(ctx context.Context, params pagination.Params, filters sales.ListFilters) (*sales.SaleList, error) {
	return &sales.SaleList{Sales: []models.Sale{}}, nil
}
func (stubSalesService) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus) (*models.Sale, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
}
func (stubSalesService) Update(ctx context.Context, id uuid.UUID, input sales.UpdateSaleInput) (*models.Sale, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
}
func (stubSalesService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubReportsService struct{}

func (stubReportsService) Dashboard(ctx context.Context) (*reports.Dashboard, error) {
	return &reports.Dashboard{}, nil
}
func (stubReportsService) Report(ctx context.Context, rng reports.Range) (*reports.Report, error) {
	return &reports.Report{Range: rng}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		registry,
		metrics.NewHTTPMetrics(registry),
		stubInventoryService{},
		stubCustomersService{},
		stubSalesService{},
		stubReportsService{},
	)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouterListVehicles(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
}

func TestRouterUnknownSaleIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouterRejectsMalformedID(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
