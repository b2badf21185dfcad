package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealerdesk/dealerdesk-backend/api/controllers"
	"github.com/dealerdesk/dealerdesk-backend/api/middleware"
	"github.com/dealerdesk/dealerdesk-backend/internal/customers"
	"github.com/dealerdesk/dealerdesk-backend/internal/inventory"
	"github.com/dealerdesk/dealerdesk-backend/internal/reports"
	"github.com/dealerdesk/dealerdesk-backend/internal/sales"
	"github.com/dealerdesk/dealerdesk-backend/pkg/config"
	"github.com/dealerdesk/dealerdesk-backend/pkg/db"
	"github.com/dealerdesk/dealerdesk-backend/pkg/logger"
	"github.com/dealerdesk/dealerdesk-backend/pkg/metrics"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	inventoryService inventory.Service,
	customersService customers.Service,
	salesService sales.Service,
	reportsService reports.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", controllers.ListVehicles(inventoryService, logg))
			r.Post("/", controllers.CreateVehicle(inventoryService, logg))
			r.Get("/{vehicleId}", controllers.GetVehicle(inventoryService, logg))
			r.Put("/{vehicleId}", controllers.UpdateVehicle(inventoryService, logg))
			r.Delete("/{vehicleId}", controllers.DeleteVehicle(inventoryService, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.ListCustomers(customersService, logg))
			r.Post("/", controllers.CreateCustomer(customersService, logg))
			r.Get("/{customerId}", controllers.GetCustomer(customersService, logg))
			r.Put("/{customerId}", controllers.UpdateCustomer(customersService, logg))
			r.Delete("/{customerId}", controllers.DeleteCustomer(customersService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.ListSales(salesService, logg))
			r.Post("/", controllers.CreateSale(salesService, logg))
			r.Get("/{saleId}", controllers.GetSale(salesService, logg))
			r.Patch("/{saleId}", controllers.UpdateSale(salesService, logg))
			r.Delete("/{saleId}", controllers.DeleteSale(salesService, logg))
			r.Post("/{saleId}/status", controllers.UpdateSaleStatus(salesService, logg))
		})

		r.Get("/reports", controllers.Reports(reportsService, logg))
		r.Get("/dashboard", controllers.Dashboard(reportsService, logg))
	})

	return r
}
