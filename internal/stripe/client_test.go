package stripe

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
)

// fakeAPI records form-encoded requests and replies with canned JSON.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]string // "METHOD /path" -> body
}

type recorded struct {
	method, path, idempotency string
	form                      map[string][]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method:      r.Method,
		path:        r.URL.Path,
		idempotency: r.Header.Get("Idempotency-Key"),
		form:        r.Form,
	})
	f.mu.Unlock()

	body, ok := f.routes[r.Method+" "+r.URL.Path]
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such resource"}}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) last(t *testing.T, method, path string) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].method == method && f.requests[i].path == path {
			return f.requests[i]
		}
	}
	t.Fatalf("no %s %s request recorded", method, path)
	return recorded{}
}

func newTestClient(t *testing.T, routes map[string]string) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{routes: routes}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	c, err := NewWithBackends("sk_test_1234567890abcdef", &stripe.Backends{
		API: backend, Connect: backend, Uploads: backend,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, api
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", nil); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestIsTestMode(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if !c.IsTestMode() {
		t.Error("sk_test key not reported as test mode")
	}
	if (&Client{key: "sk_live_abc"}).IsTestMode() {
		t.Error("live key reported as test mode")
	}
}

func TestNewLogsRedactedKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	if _, err := New("sk_test_1234567890", logrus.NewEntry(logger)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "1234567890") {
		t.Errorf("log leaked the secret key: %s", out)
	}
	if !strings.Contains(out, `"key":"sk_test_..."`) {
		t.Errorf("log = %s, want redacted key field", out)
	}
}

func TestCreateProductAndPrice(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"POST /v1/products": `{"id":"prod_1","object":"product"}`,
		"POST /v1/prices":   `{"id":"price_1","object":"price"}`,
	})
	ctx := context.Background()

	prod, err := c.CreateProduct(ctx, ProductSpec{CreatorID: "cr_1", Name: "Ann - Dump Subscription", Handle: "ann"})
	if err != nil || prod != "prod_1" {
		t.Fatalf("CreateProduct = %q, %v", prod, err)
	}
	req := api.last(t, http.MethodPost, "/v1/products")
	if req.idempotency != "product-cr_1" {
		t.Errorf("idempotency key = %q", req.idempotency)
	}
	if req.form["metadata[creator_id]"][0] != "cr_1" || req.form["name"][0] != "Ann - Dump Subscription" {
		t.Errorf("product form = %v", req.form)
	}

	price, err := c.CreatePrice(ctx, "prod_1", "cr_1", 1000)
	if err != nil || price != "price_1" {
		t.Fatalf("CreatePrice = %q, %v", price, err)
	}
	req = api.last(t, http.MethodPost, "/v1/prices")
	for k, want := range map[string]string{
		"product":              "prod_1",
		"unit_amount":          "1000",
		"currency":             "usd",
		"recurring[interval]":  "month",
		"metadata[creator_id]": "cr_1",
	} {
		if got := req.form[k]; len(got) == 0 || got[0] != want {
			t.Errorf("price form %s = %v, want %s", k, got, want)
		}
	}
}

func TestFindOrCreateCustomer_Existing(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"GET /v1/customers": `{"object":"list","url":"/v1/customers","has_more":false,"data":[{"id":"cus_existing","object":"customer"}]}`,
	})
	id, err := c.FindOrCreateCustomer(context.Background(), "user_1", "fan@example.com")
	if err != nil || id != "cus_existing" {
		t.Fatalf("FindOrCreateCustomer = %q, %v", id, err)
	}
	if req := api.last(t, http.MethodGet, "/v1/customers"); req.form["email"][0] != "fan@example.com" {
		t.Errorf("list query = %v", req.form)
	}
}

func TestFindOrCreateCustomer_Creates(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"GET /v1/customers":  `{"object":"list","url":"/v1/customers","has_more":false,"data":[]}`,
		"POST /v1/customers": `{"id":"cus_new","object":"customer"}`,
	})
	id, err := c.FindOrCreateCustomer(context.Background(), "user_1", "fan@example.com")
	if err != nil || id != "cus_new" {
		t.Fatalf("FindOrCreateCustomer = %q, %v", id, err)
	}
	if req := api.last(t, http.MethodPost, "/v1/customers"); req.idempotency != "customer-user_1" {
		t.Errorf("idempotency key = %q", req.idempotency)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"POST /v1/checkout/sessions": `{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1"}`,
	})
	url, err := c.CreateCheckoutSession(context.Background(), CheckoutSpec{
		CustomerID: "cus_1", PriceID: "price_1",
		SubscriberID: "sub_user", CreatorID: "cr_1",
		SuccessURL: "https://app/ok", CancelURL: "https://app/cancel",
	})
	if err != nil || url != "https://checkout.example/cs_1" {
		t.Fatalf("CreateCheckoutSession = %q, %v", url, err)
	}
	req := api.last(t, http.MethodPost, "/v1/checkout/sessions")
	for _, kv := range [][2]string{
		{"mode", "subscription"},
		{"customer", "cus_1"},
		{"line_items[0][price]", "price_1"},
		{"line_items[0][quantity]", "1"},
		{"metadata[subscriber_id]", "sub_user"},
		{"metadata[creator_id]", "cr_1"},
		{"subscription_data[metadata][creator_id]", "cr_1"},
		{"subscription_data[metadata][subscriber_id]", "sub_user"},
	} {
		k, want := kv[0], kv[1]
		if got := req.form[k]; len(got) == 0 || got[0] != want {
			t.Errorf("checkout form %s = %v, want %s", k, got, want)
		}
	}
}

func TestGetAndCancelSubscription(t *testing.T) {
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(map[string]any{
		"id": "sub_1", "object": "subscription", "status": "active",
		"customer": "cus_1", "current_period_end": end.Unix(),
		"cancel_at_period_end": true,
		"metadata":             map[string]string{"creator_id": "cr_1"},
	})
	c, api := newTestClient(t, map[string]string{
		"GET /v1/subscriptions/sub_1":  string(body),
		"POST /v1/subscriptions/sub_1": string(body),
	})

	sub, err := c.GetSubscription(context.Background(), "sub_1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.CustomerID != "cus_1" || !sub.CurrentPeriodEnd.Equal(end) || sub.Metadata["creator_id"] != "cr_1" {
		t.Errorf("subscription = %+v", sub)
	}

	sub, err = c.CancelAtPeriodEnd(context.Background(), "sub_1")
	if err != nil || !sub.CancelAtPeriodEnd {
		t.Fatalf("cancel = %+v, %v", sub, err)
	}
	if req := api.last(t, http.MethodPost, "/v1/subscriptions/sub_1"); req.form["cancel_at_period_end"][0] != "true" {
		t.Errorf("cancel form = %v", req.form)
	}

	_, err = c.GetSubscription(context.Background(), "sub_missing")
	if !IsNotFound(err) {
		t.Errorf("missing subscription err = %v, want not found", err)
	}
}

func TestListPaidInvoices(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"GET /v1/invoices": `{"object":"list","url":"/v1/invoices","has_more":false,"data":[
			{"id":"in_1","object":"invoice","amount_paid":1000,"subscription":"sub_1","payment_intent":"pi_1","created":1700000000},
			{"id":"in_0","object":"invoice","amount_paid":0,"subscription":"sub_1","created":1690000000}
		]}`,
	})
	invs, err := c.ListPaidInvoices(context.Background(), "sub_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(invs) != 1 || invs[0].ID != "in_1" || invs[0].PaymentIntentID != "pi_1" || invs[0].SubscriptionID != "sub_1" {
		t.Errorf("invoices = %+v", invs)
	}
	req := api.last(t, http.MethodGet, "/v1/invoices")
	if req.form["subscription"][0] != "sub_1" || req.form["status"][0] != "paid" {
		t.Errorf("invoice query = %v", req.form)
	}
	if !strings.HasPrefix(invs[0].Created.Format(time.RFC3339), "2023-11-14") {
		t.Errorf("created = %v", invs[0].Created)
	}
}
