// billing.go - products, prices, customers, checkout and subscription calls.
package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
)

// ProductSpec describes the per-creator subscription product.
type ProductSpec struct {
	CreatorID string
	Name      string
	Handle    string
}

// CheckoutSpec describes a hosted subscription checkout.
type CheckoutSpec struct {
	CustomerID   string
	PriceID      string
	SubscriberID string
	CreatorID    string
	SuccessURL   string
	CancelURL    string
}

// Subscription is the provider's view of a subscription.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// Invoice is a paid provider invoice.
type Invoice struct {
	ID              string
	PaymentIntentID string
	SubscriptionID  string
	AmountPaid      int64
	Created         time.Time
}

// Metadata keys embedded on checkout sessions and subscriptions.
const (
	MetaSubscriberID = "subscriber_id"
	MetaCreatorID    = "creator_id"
)

// CreateProduct creates the creator's product. The idempotency key makes a
// retried first-time setup return the same product.
func (c *Client) CreateProduct(ctx context.Context, spec ProductSpec) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(spec.Name),
		Metadata: map[string]string{
			MetaCreatorID: spec.CreatorID,
			"handle":      spec.Handle,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("product-" + spec.CreatorID)
	prod, err := c.sc.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("products.New: %w", err)
	}
	return prod.ID, nil
}

// CreatePrice mints a new monthly USD price on the product.
func (c *Client) CreatePrice(ctx context.Context, productID, creatorID string, amountCents int64) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
		UnitAmount: stripe.Int64(amountCents),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
		Metadata: map[string]string{MetaCreatorID: creatorID},
	}
	params.Context = ctx
	p, err := c.sc.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("prices.New: %w", err)
	}
	return p.ID, nil
}

// FindOrCreateCustomer returns the first customer with the email, creating
// one when none exists.
func (c *Client) FindOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	list := &stripe.CustomerListParams{Email: stripe.String(email)}
	list.Limit = stripe.Int64(1)
	list.Context = ctx
	it := c.sc.Customers.List(list)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("customers.List: %w", err)
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-" + userID)
	cus, err := c.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("customers.New: %w", err)
	}
	return cus.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout and returns its
// redirect URL. The subscriber/creator pair is embedded on both the session
// and the subscription it creates.
func (c *Client) CreateCheckoutSession(ctx context.Context, spec CheckoutSpec) (string, error) {
	meta := map[string]string{
		MetaSubscriberID: spec.SubscriberID,
		MetaCreatorID:    spec.CreatorID,
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(spec.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(spec.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(spec.SuccessURL),
		CancelURL:  stripe.String(spec.CancelURL),
		Metadata:   meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx
	s, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("checkout.sessions.New: %w", err)
	}
	if s.URL == "" {
		return "", fmt.Errorf("checkout session %s has no url", s.ID)
	}
	return s.URL, nil
}

// GetSubscription fetches a subscription by reference.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("subscriptions.Get %s: %w", id, err)
	}
	out := FromAPISubscription(sub)
	return &out, nil
}

// CancelAtPeriodEnd flags the subscription to end with the current period.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	sub, err := c.sc.Subscriptions.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("subscriptions.Update %s: %w", id, err)
	}
	out := FromAPISubscription(sub)
	return &out, nil
}

// ListPaidInvoices returns every paid invoice of a subscription.
func (c *Client) ListPaidInvoices(ctx context.Context, subscriptionID string) ([]Invoice, error) {
	params := &stripe.InvoiceListParams{
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Context = ctx
	it := c.sc.Invoices.List(params)

	var out []Invoice
	for it.Next() {
		if inv := FromAPIInvoice(it.Invoice()); inv.AmountPaid > 0 {
			out = append(out, inv)
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("invoices.List %s: %w", subscriptionID, err)
	}
	return out, nil
}

// FromAPISubscription flattens a stripe-go subscription.
func FromAPISubscription(s *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

// FromAPIInvoice flattens a stripe-go invoice.
func FromAPIInvoice(in *stripe.Invoice) Invoice {
	out := Invoice{
		ID:         in.ID,
		AmountPaid: in.AmountPaid,
		Created:    time.Unix(in.Created, 0).UTC(),
	}
	if in.PaymentIntent != nil {
		out.PaymentIntentID = in.PaymentIntent.ID
	}
	if in.Subscription != nil {
		out.SubscriptionID = in.Subscription.ID
	}
	return out
}
