package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/testutil"
)

func TestCancelSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testutil.SeedPaidCreator(t, env.store, 1000)
	subscriberID := uuid.NewString()
	sub := testutil.SeedPaidSubscription(t, env.store, subscriberID, creator.ID, "sub_cancel")
	end := time.Now().UTC().Add(12 * 24 * time.Hour).Truncate(time.Second)
	env.stripe.setSubscription(stripeclient.Subscription{ID: "sub_cancel", Status: "active", CurrentPeriodEnd: end})

	res, err := env.srv.CancelSubscription(ctx, callerOf(subscriberID), sub.ID)
	if err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}
	if !res.Success || res.Message != "Subscription will be canceled at the end of the billing period" {
		t.Errorf("result = %+v", res)
	}
	if res.EffectiveDate == nil || res.EffectiveDate.Unix() != end.Unix() {
		t.Errorf("effective date = %v, want %v", res.EffectiveDate, end)
	}
	if len(env.stripe.cancels) != 1 || env.stripe.cancels[0] != "sub_cancel" {
		t.Errorf("provider cancels = %v", env.stripe.cancels)
	}

	got, _ := env.store.GetSubscription(ctx, sub.ID)
	if !got.CancelAtPeriodEnd || got.Status != store.SubscriptionActive {
		t.Errorf("local row = %+v, want active with cancel_at_period_end", got)
	}
	// Access continues until the period closes.
	if ok, _ := env.store.HasActiveSubscription(ctx, subscriberID, creator.ID); !ok {
		t.Error("subscriber lost access before period end")
	}
}

func TestCancelSubscription_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creator := testutil.SeedPaidCreator(t, env.store, 1000)
	subscriberID := uuid.NewString()
	paid := testutil.SeedPaidSubscription(t, env.store, subscriberID, creator.ID, "sub_rej")

	free := testutil.SeedCreator(t, env.store, testutil.CreatorOpts{})
	freeSub, err := env.store.ActivateFree(ctx, subscriberID, free.ID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("unknown subscription", func(t *testing.T) {
		_, err := env.srv.CancelSubscription(ctx, callerOf(subscriberID), uuid.NewString())
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("not the subscriber", func(t *testing.T) {
		_, err := env.srv.CancelSubscription(ctx, callerOf(uuid.NewString()), paid.ID)
		var fe *ForbiddenError
		if !errors.As(err, &fe) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("free subscription", func(t *testing.T) {
		_, err := env.srv.CancelSubscription(ctx, callerOf(subscriberID), freeSub.ID)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Code != "not_paid" {
			t.Errorf("got %v", err)
		}
	})
	t.Run("provider failure leaves row untouched", func(t *testing.T) {
		env.stripe.err = errors.New("stripe down")
		defer func() { env.stripe.err = nil }()
		_, err := env.srv.CancelSubscription(ctx, callerOf(subscriberID), paid.ID)
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("got %v", err)
		}
		got, _ := env.store.GetSubscription(ctx, paid.ID)
		if got.CancelAtPeriodEnd {
			t.Error("row flagged despite provider failure")
		}
	})
}
