package billing

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/validate"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

// Supported payout methods.
const (
	PayoutMethodPayPal       = "paypal"
	PayoutMethodBankTransfer = "bank_transfer"
)

// PayoutRequest is a creator's withdrawal request. An empty destination
// falls back to the creator's stored payout details.
type PayoutRequest struct {
	AmountCents      int64
	Method           string
	DestinationEmail string
}

// RequestPayout records a pending payout for the caller's creator profile.
// The balance is recomputed server-side inside the insert transaction, so
// concurrent requests cannot both spend the same earnings.
func (s *Server) RequestPayout(ctx context.Context, caller Caller, req PayoutRequest) (*store.Payout, error) {
	c, err := s.store.GetCreatorByUserID(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Creator profile not found"}
	}
	if err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).WithField("creator_id", c.ID)

	if req.AmountCents < s.opts.MinimumPayoutCents {
		metrics.PayoutRequests.WithLabelValues("below_minimum").Inc()
		return nil, &ValidationError{
			Code:    "below_minimum",
			Message: "Minimum payout amount is " + formatWholeUSD(s.opts.MinimumPayoutCents) + ".",
		}
	}
	if req.Method != PayoutMethodPayPal && req.Method != PayoutMethodBankTransfer {
		metrics.PayoutRequests.WithLabelValues("invalid_method").Inc()
		return nil, &ValidationError{Code: "invalid_method", Message: "Payout method must be paypal or bank_transfer"}
	}
	dest := payoutDestination(c, req.DestinationEmail)
	if dest == "" {
		return nil, &ValidationError{Code: "missing_destination", Message: "A payout destination email is required"}
	}
	if err := validate.IsEmail("destination.email", dest); err != nil {
		return nil, &ValidationError{Code: "invalid_destination", Message: err.Error()}
	}

	unlock, err := s.locks.Lock(ctx, "payout:"+c.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p := &store.Payout{
		CreatorID:   c.ID,
		AmountCents: req.AmountCents,
		Method:      req.Method,
		Details:     store.PayoutDetails{Email: dest},
	}
	if err := s.store.CreatePayout(ctx, p); err != nil {
		var ife *store.InsufficientFundsError
		if errors.As(err, &ife) {
			metrics.PayoutRequests.WithLabelValues("insufficient_balance").Inc()
			log.WithFields(logrus.Fields{
				"amount_cents":    req.AmountCents,
				"available_cents": ife.AvailableCents,
			}).Info("payout rejected: insufficient balance")
			return nil, &InsufficientBalanceError{AvailableCents: ife.AvailableCents}
		}
		metrics.PayoutRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.PayoutRequests.WithLabelValues("created").Inc()
	log.WithFields(logrus.Fields{
		"payout_id":    p.ID,
		"amount_cents": p.AmountCents,
		"method":       p.Method,
	}).Info("payout requested")
	return p, nil
}

func payoutDestination(c *store.Creator, requested string) string {
	switch {
	case requested != "":
		return requested
	case c.PayoutDetails.Email != "":
		return c.PayoutDetails.Email
	}
	return c.PayoutEmail
}

// TransitionPayout moves a payout along pending -> processing -> completed
// or failed. A terminal move notifies the creator; a failed notification is
// returned as *DeliveryError alongside the committed payout.
func (s *Server) TransitionPayout(ctx context.Context, payoutID, status, notes string) (*store.Payout, error) {
	p, err := s.store.TransitionPayout(ctx, payoutID, status, notes)
	var te *store.TransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, &NotFoundError{Message: "Payout not found"}
	case errors.As(err, &te):
		return nil, &ConflictError{Code: "invalid_transition", Message: "Payout cannot move from " + te.From + " to " + te.To}
	case err != nil:
		return nil, err
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"payout_id":  p.ID,
		"creator_id": p.CreatorID,
		"status":     p.Status,
	})
	log.Info("payout status changed")
	metrics.Operations.WithLabelValues("transition_payout", p.Status).Inc()

	if !p.IsTerminal() {
		return p, nil
	}
	if err := s.NotifyPayoutOutcome(ctx, p.ID, p.Status, notes); err != nil {
		log.WithError(err).Warn("payout notification failed")
		return p, err
	}
	return p, nil
}

// EarningsSummary is a creator's money overview in USD.
type EarningsSummary struct {
	TotalEarned         float64 `json:"total_earned"`
	AvailableBalance    float64 `json:"available_balance"`
	PendingPayouts      float64 `json:"pending_payouts"`
	TotalPaidOut        float64 `json:"total_paid_out"`
	PlatformFees        float64 `json:"platform_fees"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
}

// EarningsSummary aggregates the caller's creator earnings and payouts.
func (s *Server) EarningsSummary(ctx context.Context, caller Caller) (*EarningsSummary, error) {
	c, err := s.store.GetCreatorByUserID(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Message: "Creator profile not found"}
	}
	if err != nil {
		return nil, err
	}
	t, err := s.store.EarningsTotals(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &EarningsSummary{
		TotalEarned:         centsToUSD(t.TotalNetCents),
		AvailableBalance:    centsToUSD(t.AvailableCents),
		PendingPayouts:      centsToUSD(t.PendingPayoutCents),
		TotalPaidOut:        centsToUSD(t.PaidOutCents),
		PlatformFees:        centsToUSD(t.TotalFeeCents),
		ActiveSubscriptions: t.ActiveSubscriptions,
	}, nil
}
