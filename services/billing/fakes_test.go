package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/email"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/ratelimit"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/testutil"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testJWTSecret     = "test-secret-that-is-at-least-32-characters-long"
	testCronKey       = "cron-key"
)

// fakeProvider is an in-memory BillingProvider.
type fakeProvider struct {
	mu sync.Mutex

	products  int
	prices    int
	customers map[string]string
	checkouts []stripeclient.CheckoutSpec
	cancels   []string

	subs     map[string]*stripeclient.Subscription
	invoices map[string][]stripeclient.Invoice

	err error // returned by every call when set
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customers: map[string]string{},
		subs:      map[string]*stripeclient.Subscription{},
		invoices:  map[string][]stripeclient.Invoice{},
	}
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products + f.prices + len(f.customers) + len(f.checkouts) + len(f.cancels)
}

func (f *fakeProvider) CreateProduct(_ context.Context, spec stripeclient.ProductSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.products++
	return fmt.Sprintf("prod_%d", f.products), nil
}

func (f *fakeProvider) CreatePrice(_ context.Context, productID, _ string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.prices++
	return fmt.Sprintf("price_%d", f.prices), nil
}

func (f *fakeProvider) FindOrCreateCustomer(_ context.Context, userID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if id, ok := f.customers[userID]; ok {
		return id, nil
	}
	id := "cus_" + userID[:8]
	f.customers[userID] = id
	return id, nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, spec stripeclient.CheckoutSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.checkouts = append(f.checkouts, spec)
	return fmt.Sprintf("https://checkout.stripe.test/c/%d", len(f.checkouts)), nil
}

func errMissing() error {
	return &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: http.StatusNotFound, Msg: "No such subscription"}
}

func (f *fakeProvider) GetSubscription(_ context.Context, id string) (*stripeclient.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, errMissing()
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeProvider) CancelAtPeriodEnd(_ context.Context, id string) (*stripeclient.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.cancels = append(f.cancels, id)
	sub, ok := f.subs[id]
	if !ok {
		return nil, errMissing()
	}
	sub.CancelAtPeriodEnd = true
	cp := *sub
	return &cp, nil
}

func (f *fakeProvider) ListPaidInvoices(_ context.Context, id string) ([]stripeclient.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]stripeclient.Invoice(nil), f.invoices[id]...), nil
}

func (f *fakeProvider) setSubscription(sub stripeclient.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID] = &sub
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg_%d", len(m.sent)), nil
}

type fakeSigner struct {
	bucket, key string
	ttl         time.Duration
}

func (s *fakeSigner) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.bucket, s.key, s.ttl = bucket, key, ttl
	return "https://storage.test/" + bucket + "/" + key + "?sig=1", nil
}

type testEnv struct {
	srv      *Server
	store    *store.Store
	stripe   *fakeProvider
	mailer   *fakeMailer
	signer   *fakeSigner
	verifier *auth.Verifier
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := testutil.NewStore(t)
	v, err := auth.NewVerifier(testJWTSecret)
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		store:    st,
		stripe:   newFakeProvider(),
		mailer:   &fakeMailer{},
		signer:   &fakeSigner{},
		verifier: v,
	}
	env.srv = NewServer(Deps{
		Store:    st,
		Stripe:   env.stripe,
		Mailer:   env.mailer,
		Signer:   env.signer,
		Limiter:  ratelimit.New(ratelimit.NewMemoryStore()),
		Verifier: v,
		Log:      logging.Discard(),
	}, Options{
		BaseURL:            "https://dump.test",
		WebhookSecret:      testWebhookSecret,
		PlatformFeeBps:     2500,
		MinimumPayoutCents: 5000,
		DownloadBucket:     "dumps",
		DownloadURLTTL:     time.Hour,
		CronKey:            testCronKey,
	})
	env.handler = env.srv.Routes()
	return env
}

func (e *testEnv) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	role := auth.RoleUser
	if admin {
		role = auth.RoleAdmin
	}
	tok, err := e.verifier.GenerateAccessToken(userID, "", role, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

// signedEvent builds a webhook body for eventType wrapping object and signs it.
func signedEvent(t *testing.T, id, eventType string, created int64, object any) ([]byte, string) {
	t.Helper()
	obj, err := json.Marshal(object)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created,
		"api_version": "2023-10-16",
		"data":        map[string]json.RawMessage{"object": obj},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body, signPayload(body)
}

func signPayload(body []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: body,
		Secret:  testWebhookSecret,
	}).Header
}

func (e *testEnv) deliver(t *testing.T, id, eventType string, created int64, object any) string {
	t.Helper()
	body, sig := signedEvent(t, id, eventType, created, object)
	res, err := e.srv.HandleWebhook(context.Background(), body, sig)
	if err != nil {
		t.Fatalf("deliver %s: %v", eventType, err)
	}
	return res
}

func callerOf(userID string) Caller { return Caller{UserID: userID} }

func meta(subscriberID, creatorID string) map[string]string {
	return map[string]string{
		stripeclient.MetaSubscriberID: subscriberID,
		stripeclient.MetaCreatorID:    creatorID,
	}
}
