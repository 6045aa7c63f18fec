// routes.go - route table for the billing service.
// Handler implementations are in handlers_*.go.
package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

// Routes builds the service's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(telemetry.PanicRecoveryMiddleware("billing"))
	r.Use(metrics.Middleware("billing"))

	// ── Health ──────────────────────────────────────────────────────────────
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReadinessProbe)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/billing", func(r chi.Router) {
		// Signature-authenticated.
		r.Post("/webhook", s.handleWebhook)

		// Admin JWT or X-Cron-Key; checked in the handler.
		r.Post("/admin/reconcile", s.handleReconcile)

		// ── Creator and subscriber routes ───────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(s.verifier.RequireAuth)
			r.Post("/prices", s.handlePrices)
			r.Post("/checkout", s.handleCheckout)
			r.Post("/subscriptions/free", s.handleSubscribeFree)
			r.Post("/subscriptions/{id}/cancel", s.handleCancel)
			r.Post("/payouts", s.handleRequestPayout)
			r.Get("/earnings/summary", s.handleEarningsSummary)
			r.Post("/downloads", s.handleDownload)
		})

		// ── Admin routes ────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(s.verifier.RequireAdmin)
			r.Post("/admin/payouts/{id}/status", s.handleTransitionPayout)
			r.Post("/admin/payouts/{id}/notify", s.handleNotifyPayout)
		})
	})
	return r
}
