// webhook.go - folds Stripe webhook events into local subscription and
// earnings state.
//
// Events consumed:
//   - checkout.session.completed    -> activate the (subscriber, creator) row
//   - invoice.payment_succeeded     -> credit one earning per invoice
//   - customer.subscription.updated -> mirror status and period end
//   - customer.subscription.deleted -> terminal cancel, row kept
//   - invoice.payment_failed        -> past_due
//
// Every handler is a full-state upsert guarded by event time, so duplicate
// and out-of-order delivery converge.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

type eventHandler func(ctx context.Context, ev stripe.Event) error

func (s *Server) eventHandlers() map[string]eventHandler {
	return map[string]eventHandler{
		"checkout.session.completed":    s.onCheckoutCompleted,
		"invoice.payment_succeeded":     s.onInvoicePaid,
		"customer.subscription.updated": s.onSubscriptionUpdated,
		"customer.subscription.deleted": s.onSubscriptionDeleted,
		"invoice.payment_failed":        s.onInvoicePaymentFailed,
	}
}

// Webhook outcomes.
const (
	webhookProcessed = "processed"
	webhookDuplicate = "duplicate"
	webhookIgnored   = "ignored"
	webhookFailed    = "error"
)

// HandleWebhook verifies and applies one event. It returns a *SignatureError
// for unverifiable requests and a *ValidationError for a verified but
// unparseable body. Handler failures are logged and reported but not
// returned: the provider always gets its acknowledgement and the
// reconciliation job repairs what was missed.
func (s *Server) HandleWebhook(ctx context.Context, body []byte, signature string) (string, error) {
	ev, err := s.verifyEvent(body, signature)
	if err != nil {
		var se *SignatureError
		if errors.As(err, &se) {
			logging.FromContext(ctx).WithField("reason", se.Err.Error()).Warn("webhook signature verification failed")
		} else {
			logging.FromContext(ctx).WithError(err).Warn("webhook payload rejected")
		}
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return "", err
	}
	evType := string(ev.Type)
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": evType,
	})
	ctx = logging.WithContext(ctx, log)

	handler, ok := s.eventHandlers()[evType]
	if !ok {
		log.Debug("unhandled event type")
		metrics.WebhookEvents.WithLabelValues(evType, webhookIgnored).Inc()
		return webhookIgnored, nil
	}

	done, err := s.store.IsEventProcessed(ctx, ev.ID)
	if err != nil {
		log.WithError(err).Warn("event ledger lookup failed, processing anyway")
	}
	if done {
		log.Info("event already processed")
		metrics.WebhookEvents.WithLabelValues(evType, webhookDuplicate).Inc()
		return webhookDuplicate, nil
	}

	if err := handler(ctx, ev); err != nil {
		log.WithError(err).Error("webhook handler failed")
		telemetry.CaptureError(err, map[string]string{"event_id": ev.ID, "event_type": evType})
		metrics.WebhookEvents.WithLabelValues(evType, webhookFailed).Inc()
		return webhookFailed, nil
	}
	if err := s.store.MarkEventProcessed(ctx, ev.ID, evType); err != nil {
		log.WithError(err).Warn("mark event processed failed")
	}
	metrics.WebhookEvents.WithLabelValues(evType, webhookProcessed).Inc()
	return webhookProcessed, nil
}

func (s *Server) verifyEvent(body []byte, signature string) (stripe.Event, error) {
	if s.opts.WebhookSecret == "" {
		return stripe.Event{}, &SignatureError{Err: errors.New("webhook secret not configured")}
	}
	if signature == "" {
		return stripe.Event{}, &SignatureError{Err: webhook.ErrNotSigned}
	}
	ev, err := webhook.ConstructEventWithOptions(body, signature, s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureFailure(err) {
			return stripe.Event{}, &SignatureError{Err: err}
		}
		return stripe.Event{}, &ValidationError{Code: "invalid_payload", Message: "Webhook body is not a valid event"}
	}
	return ev, nil
}

func isSignatureFailure(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID            string `json:"id"`
	AmountPaid    int64  `json:"amount_paid"`
	Subscription  string `json:"subscription"`
	PaymentIntent string `json:"payment_intent"`
	Created       int64  `json:"created"`
}

func decodeObject(ev stripe.Event, v any) error {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return fmt.Errorf("%s: event has no data object", ev.Type)
	}
	if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Type, err)
	}
	return nil
}

// identity is the {subscriber, creator} pair embedded in metadata. Both ids
// must parse as UUIDs or the pair is treated as absent.
type identity struct {
	SubscriberID string
	CreatorID    string
}

func identityFrom(meta map[string]string) (identity, bool) {
	sub, err1 := uuid.Parse(meta[stripeclient.MetaSubscriberID])
	cre, err2 := uuid.Parse(meta[stripeclient.MetaCreatorID])
	if err1 != nil || err2 != nil {
		return identity{}, false
	}
	return identity{SubscriberID: sub.String(), CreatorID: cre.String()}, true
}

// localStatus maps a provider subscription status to the local set. Only
// active and past_due carry over; every other status, trialing included,
// is canceled locally.
func localStatus(remote string) string {
	switch remote {
	case string(stripe.SubscriptionStatusActive):
		return store.SubscriptionActive
	case string(stripe.SubscriptionStatusPastDue):
		return store.SubscriptionPastDue
	}
	return store.SubscriptionCanceled
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func (s *Server) onCheckoutCompleted(ctx context.Context, ev stripe.Event) error {
	var sess checkoutSessionPayload
	if err := decodeObject(ev, &sess); err != nil {
		return err
	}
	log := logging.FromContext(ctx).WithField("checkout_session", sess.ID)
	if sess.Mode != string(stripe.CheckoutSessionModeSubscription) {
		log.WithField("mode", sess.Mode).Debug("not a subscription checkout")
		return nil
	}
	id, ok := identityFrom(sess.Metadata)
	if !ok {
		log.Warn("checkout session has no subscriber/creator metadata")
		return nil
	}
	if sess.Subscription == "" {
		log.Warn("checkout session has no subscription reference")
		return nil
	}

	act := store.CheckoutActivation{
		SubscriberID:    id.SubscriberID,
		CreatorID:       id.CreatorID,
		CustomerRef:     sess.Customer,
		SubscriptionRef: sess.Subscription,
		EventAt:         ev.Created,
	}
	if s.stripe != nil {
		remote, err := s.stripe.GetSubscription(ctx, sess.Subscription)
		if err != nil {
			log.WithError(err).Warn("fetch subscription failed, period end left for reconciliation")
		} else if !remote.CurrentPeriodEnd.IsZero() {
			end := remote.CurrentPeriodEnd
			act.PeriodEnd = &end
		}
	}

	applied, err := s.store.UpsertFromCheckout(ctx, act)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"subscription_ref": sess.Subscription,
		"creator_id":       id.CreatorID,
		"applied":          applied,
	}).Info("checkout completed")
	return nil
}

func (s *Server) onInvoicePaid(ctx context.Context, ev stripe.Event) error {
	var inv invoicePayload
	if err := decodeObject(ev, &inv); err != nil {
		return err
	}
	if inv.AmountPaid <= 0 || inv.Subscription == "" {
		return nil
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"invoice_id":       inv.ID,
		"subscription_ref": inv.Subscription,
	})
	sub, err := s.store.GetSubscriptionByRef(ctx, inv.Subscription)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("no local subscription for paid invoice, left for reconciliation")
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.creditInvoice(ctx, sub, stripeclient.Invoice{
		ID:              inv.ID,
		PaymentIntentID: inv.PaymentIntent,
		SubscriptionID:  inv.Subscription,
		AmountPaid:      inv.AmountPaid,
		Created:         time.Unix(inv.Created, 0).UTC(),
	})
	return err
}

// creditInvoice records the creator's earning for a paid invoice once. It
// reports whether a new earning was inserted.
func (s *Server) creditInvoice(ctx context.Context, sub *store.Subscription, inv stripeclient.Invoice) (bool, error) {
	fee, net := splitFee(inv.AmountPaid, s.opts.PlatformFeeBps)
	e := &store.Earning{
		CreatorID:             sub.CreatorID,
		SubscriberID:          sub.SubscriberID,
		SubscriptionID:        sub.ID,
		StripeInvoiceID:       inv.ID,
		StripePaymentIntentID: inv.PaymentIntentID,
		GrossCents:            inv.AmountPaid,
		FeeCents:              fee,
		NetCents:              net,
	}
	if !inv.Created.IsZero() && inv.Created.Unix() > 0 {
		e.CreatedAt = inv.Created
	}
	inserted, err := s.store.InsertEarning(ctx, e)
	if err != nil {
		return false, err
	}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"creator_id": sub.CreatorID,
		"invoice_id": inv.ID,
	})
	if !inserted {
		log.Info("invoice already credited")
		return false, nil
	}
	metrics.EarningsCreditedCents.Add(float64(net))
	log.WithFields(logrus.Fields{"gross_cents": inv.AmountPaid, "net_cents": net}).Info("earning credited")
	return true, nil
}

func (s *Server) onSubscriptionUpdated(ctx context.Context, ev stripe.Event) error {
	return s.applySubscriptionEvent(ctx, ev, false)
}

func (s *Server) onSubscriptionDeleted(ctx context.Context, ev stripe.Event) error {
	return s.applySubscriptionEvent(ctx, ev, true)
}

func (s *Server) applySubscriptionEvent(ctx context.Context, ev stripe.Event, deleted bool) error {
	var sub subscriptionPayload
	if err := decodeObject(ev, &sub); err != nil {
		return err
	}
	if sub.ID == "" {
		return fmt.Errorf("%s: subscription has no id", ev.Type)
	}
	st := store.RemoteState{
		SubscriptionRef:   sub.ID,
		CustomerRef:       sub.Customer,
		Status:            localStatus(sub.Status),
		PeriodEnd:         unixPtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Ended:             deleted,
		EventAt:           ev.Created,
	}
	if id, ok := identityFrom(sub.Metadata); ok {
		st.SubscriberID, st.CreatorID = id.SubscriberID, id.CreatorID
	}
	applied, err := s.store.ApplyRemoteState(ctx, st)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"subscription_ref": sub.ID,
		"remote_status":    sub.Status,
		"applied":          applied,
	}).Info("subscription state received")
	return nil
}

func (s *Server) onInvoicePaymentFailed(ctx context.Context, ev stripe.Event) error {
	var inv invoicePayload
	if err := decodeObject(ev, &inv); err != nil {
		return err
	}
	if inv.Subscription == "" {
		return nil
	}
	applied, err := s.store.MarkPastDue(ctx, inv.Subscription, ev.Created)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).WithFields(logrus.Fields{
		"subscription_ref": inv.Subscription,
		"applied":          applied,
	}).Info("renewal payment failed")
	return nil
}
