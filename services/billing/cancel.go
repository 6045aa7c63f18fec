package billing

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

const cancelMessage = "Subscription will be canceled at the end of the billing period"

// CancelResult is returned by CancelSubscription.
type CancelResult struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	EffectiveDate *time.Time `json:"effective_date"`
}

// CancelSubscription flags the caller's paid subscription to end at the
// close of the current period. Access continues until then.
func (s *Server) CancelSubscription(ctx context.Context, caller Caller, subscriptionID string) (*CancelResult, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Subscription not found"}
	}
	if err != nil {
		return nil, err
	}
	if sub.SubscriberID != caller.UserID {
		return nil, &ForbiddenError{Message: "Not authorized to cancel this subscription"}
	}
	if sub.StripeSubscriptionID == "" {
		return nil, &ValidationError{Code: "not_paid", Message: "Only paid subscriptions can be canceled"}
	}
	if err := s.billingRequired(); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"subscription_id":  sub.ID,
		"subscription_ref": sub.StripeSubscriptionID,
	})
	remote, err := s.stripe.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID)
	if err != nil {
		metrics.Operations.WithLabelValues("cancel_subscription", "upstream_error").Inc()
		return nil, &UpstreamError{Op: "cancel subscription", Err: err}
	}

	var end *time.Time
	if !remote.CurrentPeriodEnd.IsZero() {
		t := remote.CurrentPeriodEnd.UTC()
		end = &t
	}
	updated, err := s.store.MarkCancelAtPeriodEnd(ctx, sub.ID, localStatus(remote.Status), end)
	if err != nil {
		// The provider already holds the cancellation; the next
		// subscription.updated event or reconcile run mirrors it.
		log.WithError(err).Error("mirror cancellation locally failed")
		return nil, err
	}

	metrics.Operations.WithLabelValues("cancel_subscription", "ok").Inc()
	log.Info("subscription set to cancel at period end")
	return &CancelResult{
		Success:       true,
		Message:       cancelMessage,
		EffectiveDate: updated.CurrentPeriodEnd,
	}, nil
}
