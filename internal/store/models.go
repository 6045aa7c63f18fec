package store

import "time"

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Earning statuses.
const (
	EarningAvailable = "available"
	EarningPaidOut   = "paid_out"
)

// Payout statuses.
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// Profile mirrors the identity provider's account record.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
}

// PayoutDetails is the destination of a payout, stored as JSON.
type PayoutDetails struct {
	Email string `json:"email"`
}

// Creator is a content-producing account. An empty StripePriceID means free.
type Creator struct {
	ID              string
	UserID          string
	Handle          string
	DisplayName     string
	PriceCents      int64
	StripeProductID string
	StripePriceID   string
	PayoutMethod    string
	PayoutEmail     string
	PayoutDetails   PayoutDetails
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPaid reports whether the creator has a billable price.
func (c *Creator) IsPaid() bool { return c.StripePriceID != "" }

// Subscription is the single row per (subscriber, creator) pair.
type Subscription struct {
	ID                   string
	SubscriberID         string
	CreatorID            string
	Status               string
	StripeCustomerID     string
	StripeSubscriptionID string
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	ProviderEnded        bool
	LastEventAt          int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Earning is one credited recurring charge.
type Earning struct {
	ID                    string
	CreatorID             string
	SubscriberID          string
	SubscriptionID        string
	StripeInvoiceID       string
	StripePaymentIntentID string
	GrossCents            int64
	FeeCents              int64
	NetCents              int64
	Status                string
	PayoutID              string
	CreatedAt             time.Time
}

// Payout is a creator withdrawal request.
type Payout struct {
	ID           string
	CreatorID    string
	AmountCents  int64
	SettledCents int64
	Method       string
	Details      PayoutDetails
	Status       string
	Notes        string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the payout can no longer change status.
func (p *Payout) IsTerminal() bool {
	return p.Status == PayoutCompleted || p.Status == PayoutFailed
}

// DumpPack holds the object paths of a downloadable pack.
type DumpPack struct {
	ID             string
	CreatorID      string
	Title          string
	DumpZipPath    string
	ProjectZipPath string
	FLPPath        string
	StemsZipPath   string
	MIDIZipPath    string
	CreatedAt      time.Time
}
