// Package metrics provides Prometheus instrumentation for the billing service.
//
// Metrics registered here:
//
//	billing_http_requests_total              counter: requests by service/method/route/status
//	billing_http_request_duration_seconds    histogram: latency by service/method/route
//	billing_webhook_events_total             counter: webhook events by type/result
//	billing_earnings_credited_cents_total    counter: net cents credited to creators
//	billing_payout_requests_total            counter: payout requests by result
//	billing_operations_total                 counter: core operations by operation/result
//	billing_reconcile_runs_total             counter: reconciliation runs by result
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type collectors struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	webhookEvents  *prometheus.CounterVec
	earningsCredit prometheus.Counter
	payoutRequests *prometheus.CounterVec
	operations     *prometheus.CounterVec
	reconcileRuns  *prometheus.CounterVec
}

func build(f promauto.Factory) collectors {
	return collectors{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "billing_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing provider webhook events by type and result.",
		}, []string{"type", "result"}),
		earningsCredit: f.NewCounter(prometheus.CounterOpts{
			Name: "billing_earnings_credited_cents_total",
			Help: "Net cents credited to creators from paid invoices.",
		}),
		payoutRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_payout_requests_total",
			Help: "Payout requests by result.",
		}, []string{"result"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_operations_total",
			Help: "Billing core operations by operation and result.",
		}, []string{"operation", "result"}),
		reconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_reconcile_runs_total",
			Help: "Reconciliation runs by result.",
		}, []string{"result"}),
	}
}

var defaults = build(promauto.With(prometheus.DefaultRegisterer))

// Package-level collectors on the default registry.
var (
	HTTPRequests          = defaults.httpRequests
	HTTPDuration          = defaults.httpDuration
	WebhookEvents         = defaults.webhookEvents
	EarningsCreditedCents = defaults.earningsCredit
	PayoutRequests        = defaults.payoutRequests
	Operations            = defaults.operations
	ReconcileRuns         = defaults.reconcileRuns
)

// Handler returns the Prometheus HTTP handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The path label is the chi
// route pattern when one matched, else the sanitized URL path.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				path = rctx.RoutePattern()
			}
			if path == "" {
				path = sanitizePath(r.URL.Path)
			}
			HTTPRequests.WithLabelValues(service, r.Method, path, strconv.Itoa(rw.status)).Inc()
			HTTPDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

var uuidSegment = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// sanitizePath replaces UUID path segments with ":id" and truncates long
// paths to keep label cardinality bounded.
// /billing/subscriptions/550e8400-e29b-41d4-a716-446655440000/cancel -> /billing/subscriptions/:id/cancel
func sanitizePath(path string) string {
	path = uuidSegment.ReplaceAllString(path, ":id")
	if len(path) > 64 {
		return path[:64] + "..."
	}
	return path
}

// Init registers a fresh set of billing metrics with reg. It exists for
// tests; production collectors live on the default registry.
func Init(reg prometheus.Registerer) {
	build(promauto.With(reg))
}
