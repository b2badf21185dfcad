package controllers

import (
	"net/http"
	"strings"

	"github.com/dealerdesk/dealerdesk-backend/api/responses"
	"github.com/dealerdesk/dealerdesk-backend/internal/reports"
	"github.com/dealerdesk/dealerdesk-backend/pkg/logger"
)

func Dashboard(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dashboard, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}

func Reports(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng := reports.Range(strings.TrimSpace(r.URL.Query().Get("range")))

		report, err := svc.Report(r.Context(), rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
