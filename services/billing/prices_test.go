package billing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/testutil"
)

func TestEnsurePrice_ReusesProductAndMintsPrices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testutil.SeedCreator(t, env.store, testutil.CreatorOpts{DisplayName: "Beat Lab"})
	owner := callerOf(creator.UserID)

	first, err := env.srv.EnsurePrice(ctx, owner, creator.ID, 1000)
	if err != nil {
		t.Fatalf("EnsurePrice: %v", err)
	}
	second, err := env.srv.EnsurePrice(ctx, owner, creator.ID, 1500)
	if err != nil {
		t.Fatalf("EnsurePrice again: %v", err)
	}

	if first.ProductRef != second.ProductRef {
		t.Errorf("product changed: %q -> %q", first.ProductRef, second.ProductRef)
	}
	if first.PriceRef == second.PriceRef {
		t.Error("expected a new price object on every call")
	}
	if env.stripe.products != 1 || env.stripe.prices != 2 {
		t.Errorf("products=%d prices=%d, want 1/2", env.stripe.products, env.stripe.prices)
	}
	if second.PriceUSD != 15 {
		t.Errorf("price usd = %v, want 15", second.PriceUSD)
	}

	got, err := env.store.GetCreator(ctx, creator.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StripePriceID != second.PriceRef || got.PriceCents != 1500 {
		t.Errorf("creator price = %q/%d", got.StripePriceID, got.PriceCents)
	}
}

func TestEnsurePrice_ConcurrentFirstSetupCreatesOneProduct(t *testing.T) {
	env := newTestEnv(t)
	creator := testutil.SeedCreator(t, env.store, testutil.CreatorOpts{})
	owner := callerOf(creator.UserID)

	var wg sync.WaitGroup
	refs := make([]string, 5)
	for i := range refs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.srv.EnsurePrice(context.Background(), owner, creator.ID, 1000)
			if err != nil {
				t.Errorf("EnsurePrice: %v", err)
				return
			}
			refs[i] = res.ProductRef
		}(i)
	}
	wg.Wait()

	if env.stripe.products != 1 {
		t.Errorf("products created = %d, want 1", env.stripe.products)
	}
	for _, r := range refs {
		if r != refs[0] {
			t.Errorf("product refs differ: %v", refs)
			break
		}
	}
}

func TestEnsurePrice_Validation(t *testing.T) {
	env := newTestEnv(t)
	creator := testutil.SeedCreator(t, env.store, testutil.CreatorOpts{})

	_, err := env.srv.EnsurePrice(context.Background(), callerOf(creator.UserID), creator.ID, 99)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != "invalid_price" {
		t.Errorf("below minimum: got %v", err)
	}

	_, err = env.srv.EnsurePrice(context.Background(), callerOf(uuid.NewString()), creator.ID, 1000)
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Errorf("stranger: got %v", err)
	}

	admin := Caller{UserID: uuid.NewString(), Admin: true}
	if _, err := env.srv.EnsurePrice(context.Background(), admin, creator.ID, 1000); err != nil {
		t.Errorf("admin: %v", err)
	}
}

func TestSetFreePricing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testutil.SeedPaidCreator(t, env.store, 1000)

	if err := env.srv.SetFreePricing(ctx, callerOf(creator.UserID), creator.ID); err != nil {
		t.Fatalf("SetFreePricing: %v", err)
	}
	got, _ := env.store.GetCreator(ctx, creator.ID)
	if got.IsPaid() || got.PriceCents != 0 {
		t.Errorf("creator still paid: %+v", got)
	}
	if got.StripeProductID != creator.StripeProductID {
		t.Errorf("product ref should be kept for a later paid setup")
	}
	if env.stripe.calls() != 0 {
		t.Errorf("provider called %d times", env.stripe.calls())
	}
}
