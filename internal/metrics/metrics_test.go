// metrics_test.go - Unit tests for Prometheus metrics.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// TestInit_RegistersWithoutPanic verifies that calling Init with a fresh
// registry does not panic.
func TestInit_RegistersWithoutPanic(t *testing.T) {
	Init(prometheus.NewRegistry())
}

// TestInit_DoubleRegistrationPanics proves Init really registers something.
func TestInit_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on double registration, but Init did not panic")
		}
	}()
	Init(reg)
}

// TestHandler_Returns200 confirms the metrics HTTP handler responds correctly.
func TestHandler_Returns200(t *testing.T) {
	WebhookEvents.WithLabelValues("invoice.payment_succeeded", "applied").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Handler() status = %d; want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "billing_webhook_events_total") {
		t.Error("expected billing_webhook_events_total in scrape output")
	}
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// TestMiddleware_UsesRoutePattern confirms the path label is the chi route
// pattern, not the raw URL.
func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("metrics-test"))
	r.Post("/billing/subscriptions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/billing/subscriptions/abc/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	got := counterValue(t, "billing_http_requests_total", map[string]string{
		"service": "metrics-test",
		"path":    "/billing/subscriptions/{id}/cancel",
		"status":  "204",
	})
	if got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
}

func TestSanitizePath(t *testing.T) {
	if got := sanitizePath("/health"); got != "/health" {
		t.Errorf("sanitizePath(/health) = %q", got)
	}
	got := sanitizePath("/billing/subscriptions/550e8400-e29b-41d4-a716-446655440000/cancel")
	if got != "/billing/subscriptions/:id/cancel" {
		t.Errorf("uuid segment not replaced: %q", got)
	}
	long := sanitizePath("/" + strings.Repeat("a", 100))
	if len(long) != 67 || !strings.HasSuffix(long, "...") {
		t.Errorf("long path = %q", long)
	}
}
