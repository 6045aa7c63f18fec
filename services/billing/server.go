// server.go - billing service wiring.
// Port: 8085 (internal; proxied by the edge).
package billing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/email"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/lock"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/ratelimit"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
)

// BillingProvider is the subset of the Stripe adapter the core calls.
type BillingProvider interface {
	CreateProduct(ctx context.Context, spec stripeclient.ProductSpec) (string, error)
	CreatePrice(ctx context.Context, productID, creatorID string, amountCents int64) (string, error)
	FindOrCreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, spec stripeclient.CheckoutSpec) (string, error)
	GetSubscription(ctx context.Context, id string) (*stripeclient.Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (*stripeclient.Subscription, error)
	ListPaidInvoices(ctx context.Context, subscriptionID string) ([]stripeclient.Invoice, error)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, m email.Message) (string, error)
}

// URLSigner presigns object downloads.
type URLSigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Locker serializes work per key.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
	TryLock(ctx context.Context, key string) (lock.Unlock, error)
}

// Options are the injected business rules and endpoints.
type Options struct {
	BaseURL            string
	WebhookSecret      string
	SignatureHeader    string
	PlatformFeeBps     int64
	MinimumPayoutCents int64
	DownloadBucket     string
	DownloadURLTTL     time.Duration
	CronKey            string
}

// Deps are the collaborators of a Server. Stripe, Mailer and Signer may be
// nil; the operations that need them then fail with a clear error.
type Deps struct {
	Store    *store.Store
	Stripe   BillingProvider
	Mailer   Mailer
	Signer   URLSigner
	Limiter  *ratelimit.Limiter
	Locks    Locker
	Verifier *auth.Verifier
	Log      *logrus.Entry
}

// Server holds all shared dependencies for the billing service.
type Server struct {
	store    *store.Store
	stripe   BillingProvider
	mailer   Mailer
	signer   URLSigner
	limiter  *ratelimit.Limiter
	locks    Locker
	verifier *auth.Verifier
	log      *logrus.Entry
	opts     Options
	now      func() time.Time
}

// NewServer creates the billing server.
func NewServer(d Deps, opts Options) *Server {
	if d.Locks == nil {
		d.Locks = lock.NewLocal()
	}
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "Stripe-Signature"
	}
	if opts.DownloadURLTTL <= 0 {
		opts.DownloadURLTTL = time.Hour
	}
	return &Server{
		store:    d.Store,
		stripe:   d.Stripe,
		mailer:   d.Mailer,
		signer:   d.Signer,
		limiter:  d.Limiter,
		locks:    d.Locks,
		verifier: d.Verifier,
		log:      d.Log,
		opts:     opts,
		now:      time.Now,
	}
}

// billingRequired fails when no Stripe key is configured.
func (s *Server) billingRequired() error {
	if s.stripe == nil {
		return &UnavailableError{Code: "stripe_not_configured", Message: "Billing is not configured. Set STRIPE_SECRET_KEY."}
	}
	return nil
}
