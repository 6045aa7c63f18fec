package billing

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/email"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
)

// NotifyPayoutOutcome emails the creator that a payout completed or failed.
// It never changes payout state.
func (s *Server) NotifyPayoutOutcome(ctx context.Context, payoutID, status, notes string) error {
	if status != store.PayoutCompleted && status != store.PayoutFailed {
		return &ValidationError{Code: "invalid_status", Message: "Status must be completed or failed"}
	}
	p, err := s.store.GetPayout(ctx, payoutID)
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Message: "Payout not found"}
	}
	if err != nil {
		return err
	}
	c, err := s.store.GetCreator(ctx, p.CreatorID)
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Message: "Creator not found"}
	}
	if err != nil {
		return err
	}
	to, err := s.creatorEmail(ctx, c)
	if err != nil {
		return err
	}

	n := email.PayoutNotice{
		To:          to,
		DisplayName: creatorDisplayName(c),
		AmountCents: p.AmountCents,
		Method:      p.Method,
		Destination: p.Details.Email,
		Notes:       notes,
	}
	render := email.PayoutCompleted
	if status == store.PayoutFailed {
		render = email.PayoutFailed
	}
	msg, err := render(n)
	if err != nil {
		return err
	}
	msg.IdempotencyKey = "payout-" + p.ID + "-" + status

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"payout_id":  p.ID,
		"creator_id": c.ID,
		"status":     status,
		"to":         logging.RedactEmail(to),
	})
	if s.mailer == nil {
		metrics.Operations.WithLabelValues("notify_payout", "delivery_failed").Inc()
		return &DeliveryError{Err: errors.New("email provider not configured")}
	}
	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		metrics.Operations.WithLabelValues("notify_payout", "delivery_failed").Inc()
		return &DeliveryError{Err: err}
	}
	metrics.Operations.WithLabelValues("notify_payout", "ok").Inc()
	log.WithField("message_id", id).Info("payout notification sent")
	return nil
}

// creatorEmail prefers the explicit payout email over the account email.
func (s *Server) creatorEmail(ctx context.Context, c *store.Creator) (string, error) {
	if c.PayoutEmail != "" {
		return c.PayoutEmail, nil
	}
	prof, err := s.store.GetProfile(ctx, c.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if prof == nil || prof.Email == "" {
		return "", &NotFoundError{Message: "Creator email not found"}
	}
	return prof.Email, nil
}

func creatorDisplayName(c *store.Creator) string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.Handle != "":
		return c.Handle
	}
	return "Creator"
}
