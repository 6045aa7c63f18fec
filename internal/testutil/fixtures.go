// fixtures.go - Test data seed helpers.
// Provides canonical fixtures for profiles, creators, subscriptions, earnings and packs.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
)

// SeedProfile inserts an identity mirror row and returns it.
func SeedProfile(t *testing.T, st *store.Store, email string) *store.Profile {
	t.Helper()
	id := uuid.NewString()
	if email == "" {
		email = fmt.Sprintf("user-%s@example.com", id[:8])
	}
	p := &store.Profile{ID: id, Email: email, DisplayName: "Test User"}
	if err := st.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return p
}

// CreatorOpts tweaks SeedCreator. Zero values produce a free creator owned
// by a fresh profile.
type CreatorOpts struct {
	UserID      string
	DisplayName string
	PriceCents  int64
	PriceRef    string
	ProductRef  string
	PayoutEmail string
}

// SeedCreator inserts a creator and returns it.
func SeedCreator(t *testing.T, st *store.Store, opts CreatorOpts) *store.Creator {
	t.Helper()
	if opts.UserID == "" {
		opts.UserID = SeedProfile(t, st, "").ID
	}
	id := uuid.NewString()
	c := &store.Creator{
		ID:              id,
		UserID:          opts.UserID,
		Handle:          "creator-" + id[:8],
		DisplayName:     opts.DisplayName,
		PriceCents:      opts.PriceCents,
		StripePriceID:   opts.PriceRef,
		StripeProductID: opts.ProductRef,
		PayoutEmail:     opts.PayoutEmail,
	}
	if err := st.CreateCreator(context.Background(), c); err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	return c
}

// SeedPaidCreator inserts a creator billed at priceCents with provider references.
func SeedPaidCreator(t *testing.T, st *store.Store, priceCents int64) *store.Creator {
	t.Helper()
	return SeedCreator(t, st, CreatorOpts{
		DisplayName: "Paid Creator",
		PriceCents:  priceCents,
		ProductRef:  "prod_" + uuid.NewString()[:8],
		PriceRef:    "price_" + uuid.NewString()[:8],
	})
}

// SeedPaidSubscription inserts an active paid subscription for the pair.
func SeedPaidSubscription(t *testing.T, st *store.Store, subscriberID, creatorID, ref string) *store.Subscription {
	t.Helper()
	ctx := context.Background()
	end := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if _, err := st.UpsertFromCheckout(ctx, store.CheckoutActivation{
		SubscriberID:    subscriberID,
		CreatorID:       creatorID,
		CustomerRef:     "cus_" + subscriberID[:8],
		SubscriptionRef: ref,
		PeriodEnd:       &end,
		EventAt:         1,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	sub, err := st.GetSubscriptionByPair(ctx, subscriberID, creatorID)
	if err != nil {
		t.Fatalf("seed subscription: reload: %v", err)
	}
	return sub
}

// SeedEarning credits netCents to the subscription's creator with a 25% fee
// already deducted and returns the earning.
func SeedEarning(t *testing.T, st *store.Store, sub *store.Subscription, grossCents int64) *store.Earning {
	t.Helper()
	fee := (grossCents*2500 + 5000) / 10000
	e := &store.Earning{
		CreatorID:       sub.CreatorID,
		SubscriberID:    sub.SubscriberID,
		SubscriptionID:  sub.ID,
		StripeInvoiceID: "in_" + uuid.NewString(),
		GrossCents:      grossCents,
		FeeCents:        fee,
		NetCents:        grossCents - fee,
	}
	inserted, err := st.InsertEarning(context.Background(), e)
	if err != nil || !inserted {
		t.Fatalf("seed earning: inserted=%v err=%v", inserted, err)
	}
	return e
}

// SeedDumpPack inserts a pack for the creator.
func SeedDumpPack(t *testing.T, st *store.Store, creatorID string, p store.DumpPack) *store.DumpPack {
	t.Helper()
	p.CreatorID = creatorID
	if p.Title == "" {
		p.Title = "Test Pack"
	}
	if err := st.CreateDumpPack(context.Background(), &p); err != nil {
		t.Fatalf("seed dump pack: %v", err)
	}
	return &p
}
