package billing

import (
	"context"
	"errors"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

func (s *Server) creatorByID(ctx context.Context, creatorID string) (*store.Creator, error) {
	c, err := s.store.GetCreator(ctx, creatorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Creator not found"}
	}
	return c, err
}

// StartCheckout opens a hosted subscription checkout for the caller against
// the creator's current price and returns its redirect URL. Local state is
// left to the webhook that confirms the checkout.
func (s *Server) StartCheckout(ctx context.Context, caller Caller, creatorID string) (string, error) {
	c, err := s.creatorByID(ctx, creatorID)
	if err != nil {
		return "", err
	}
	if c.UserID == caller.UserID {
		return "", &ConflictError{Code: "self_subscription", Message: "You cannot subscribe to yourself"}
	}
	if !c.IsPaid() {
		return "", &ValidationError{Code: "pricing_not_configured", Message: "Creator has not set up Stripe pricing yet"}
	}
	active, err := s.store.HasActiveSubscription(ctx, caller.UserID, c.ID)
	if err != nil {
		return "", err
	}
	if active {
		return "", &ConflictError{Code: "already_subscribed", Message: "You already have an active subscription to this creator"}
	}
	if err := s.billingRequired(); err != nil {
		return "", err
	}

	addr, err := s.callerEmail(ctx, caller)
	if err != nil {
		return "", err
	}
	customerRef, err := s.stripe.FindOrCreateCustomer(ctx, caller.UserID, addr)
	if err != nil {
		metrics.Operations.WithLabelValues("start_checkout", "upstream_error").Inc()
		return "", &UpstreamError{Op: "resolve customer", Err: err}
	}

	handle := url.QueryEscape(c.Handle)
	redirect, err := s.stripe.CreateCheckoutSession(ctx, stripeclient.CheckoutSpec{
		CustomerID:   customerRef,
		PriceID:      c.StripePriceID,
		SubscriberID: caller.UserID,
		CreatorID:    c.ID,
		SuccessURL:   s.opts.BaseURL + "/subscriptions?success=1&creator=" + handle,
		CancelURL:    s.opts.BaseURL + "/creator/" + url.PathEscape(c.Handle),
	})
	if err != nil {
		metrics.Operations.WithLabelValues("start_checkout", "upstream_error").Inc()
		return "", &UpstreamError{Op: "create checkout session", Err: err}
	}

	metrics.Operations.WithLabelValues("start_checkout", "ok").Inc()
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"creator_id":    c.ID,
		"subscriber_id": caller.UserID,
	}).Info("checkout session created")
	return redirect, nil
}

// callerEmail prefers the credential's email and falls back to the profile mirror.
func (s *Server) callerEmail(ctx context.Context, caller Caller) (string, error) {
	if caller.Email != "" {
		return caller.Email, nil
	}
	p, err := s.store.GetProfile(ctx, caller.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if p == nil || p.Email == "" {
		return "", &ValidationError{Code: "missing_email", Message: "An account email is required to subscribe"}
	}
	return p.Email, nil
}

// SubscribeFree activates a free subscription to a creator without any
// billing provider call.
func (s *Server) SubscribeFree(ctx context.Context, caller Caller, creatorID string) (*store.Subscription, error) {
	c, err := s.creatorByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if c.UserID == caller.UserID {
		return nil, &ConflictError{Code: "self_subscription", Message: "You cannot subscribe to yourself"}
	}
	if c.IsPaid() {
		return nil, &ValidationError{Code: "paid_creator", Message: "This creator requires a paid subscription"}
	}

	sub, err := s.store.ActivateFree(ctx, caller.UserID, c.ID)
	switch {
	case errors.Is(err, store.ErrConflict):
		return nil, &ConflictError{Code: "already_subscribed", Message: "You already have a subscription to this creator"}
	case errors.Is(err, store.ErrBillingLive):
		return nil, &ConflictError{
			Code:    "paid_subscription_open",
			Message: "Your paid subscription to this creator is still open. It must end before you can subscribe for free.",
		}
	case err != nil:
		return nil, err
	}

	metrics.Operations.WithLabelValues("subscribe_free", "ok").Inc()
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"creator_id":      c.ID,
		"subscription_id": sub.ID,
	}).Info("free subscription activated")
	return sub, nil
}
