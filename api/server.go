/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Timeout:    Bounds each request so lock waits cannot pile up
  5. CORS:       Cross-origin requests for the HR portal

SECURITY NOTE:
  There is no authentication middleware. X-Actor-ID is trusted as given;
  deploy behind a gateway that sets it from the session.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RequestTimeout bounds a single API call.
const RequestTimeout = 30 * time.Second

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.CreateLeaveType)
			r.Get("/{id}", h.GetLeaveType)
			r.Patch("/{id}", h.UpdateLeaveType)
			r.Delete("/{id}", h.DeactivateLeaveType)
		})

		r.Route("/departments", func(r chi.Router) {
			r.Get("/", h.ListDepartments)
			r.Post("/", h.CreateDepartment)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balances", h.ListBalances)
			r.Post("/{id}/balances", h.ProvisionBalance)
			r.Get("/{id}/balances/{typeID}", h.GetBalance)
			r.Get("/{id}/balances/{typeID}/reconcile", h.ReconcileBalance)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
		})

		r.Route("/leave-requests", func(r chi.Router) {
			r.Get("/", h.ListLeaveRequests)
			r.Post("/", h.CreateLeaveRequest)
			r.Get("/{id}", h.GetLeaveRequest)
			r.Patch("/{id}", h.ModifyLeaveRequest)
			r.Post("/{id}/approve", h.ApproveLeaveRequest)
			r.Post("/{id}/deny", h.DenyLeaveRequest)
			r.Post("/{id}/cancel", h.CancelLeaveRequest)
			r.Get("/{id}/approvals", h.ListLeaveRequestApprovals)
			r.Get("/{id}/audit", h.LeaveRequestAudit)
		})

		r.Route("/pass-slips", func(r chi.Router) {
			r.Get("/", h.ListPassSlips)
			r.Post("/", h.CreatePassSlip)
			r.Get("/{id}", h.GetPassSlip)
			r.Post("/{id}/approve", h.ApprovePassSlip)
			r.Post("/{id}/deny", h.DenyPassSlip)
			r.Post("/{id}/cancel", h.CancelPassSlip)
			r.Get("/{id}/approvals", h.ListPassSlipApprovals)
		})

		r.Get("/approvals/pending", h.ListPendingApprovals)
		r.Get("/conflicts", h.CheckConflicts)

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", h.GetWorkflow)
			r.Put("/", h.SaveWorkflow)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/accrual", h.RunAccrual)
			r.Get("/accrual/runs", h.ListAccrualRuns)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})
	})

	return r
}
