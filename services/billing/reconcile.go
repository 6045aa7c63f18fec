// reconcile.go - periodic diff of local subscriptions against the provider.
//
// Webhook handlers acknowledge even when local persistence fails, so this job
// is the recovery path: every subscription whose lifecycle is still running
// is re-fetched and applied as a full-state snapshot, and its paid invoices
// are credited if an invoice.payment_succeeded delivery was lost.
//
// Triggered by POST /billing/admin/reconcile, `billingctl reconcile` and the
// RECONCILE_SCHEDULE cron.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/lock"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/metrics"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	Checked            int `json:"checked"`
	Updated            int `json:"updated"`
	Ended              int `json:"ended"`
	EarningsBackfilled int `json:"earnings_backfilled"`
	Errors             int `json:"errors"`
}

// Reconcile runs one pass. Overlapping runs fail with a ConflictError.
func (s *Server) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	if err := s.billingRequired(); err != nil {
		return nil, err
	}
	unlock, err := s.locks.TryLock(ctx, "reconcile")
	if errors.Is(err, lock.ErrLocked) {
		metrics.ReconcileRuns.WithLabelValues("skipped").Inc()
		return nil, &ConflictError{Code: "reconcile_running", Message: "A reconciliation run is already in progress"}
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := logging.FromContext(ctx).WithField("job", "reconcile")
	subs, err := s.store.ListReconcilable(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	res := &ReconcileResult{Checked: len(subs)}
	for i := range subs {
		if ctx.Err() != nil {
			break
		}
		s.reconcileOne(ctx, log, &subs[i], res)
	}

	outcome := "ok"
	if res.Errors > 0 {
		outcome = "partial"
	}
	metrics.ReconcileRuns.WithLabelValues(outcome).Inc()
	log.WithFields(logrus.Fields{
		"checked":             res.Checked,
		"updated":             res.Updated,
		"ended":               res.Ended,
		"earnings_backfilled": res.EarningsBackfilled,
		"errors":              res.Errors,
	}).Info("reconciliation finished")
	return res, nil
}

func (s *Server) reconcileOne(ctx context.Context, log *logrus.Entry, sub *store.Subscription, res *ReconcileResult) {
	log = log.WithFields(logrus.Fields{
		"subscription_id":  sub.ID,
		"subscription_ref": sub.StripeSubscriptionID,
	})
	fail := func(msg string, err error) {
		res.Errors++
		log.WithError(err).Warn(msg)
		telemetry.CaptureError(err, map[string]string{"operation": "reconcile", "subscription_id": sub.ID})
	}

	st := store.RemoteState{
		SubscriptionRef: sub.StripeSubscriptionID,
		SubscriberID:    sub.SubscriberID,
		CreatorID:       sub.CreatorID,
		EventAt:         s.now().Unix(),
	}
	remote, err := s.stripe.GetSubscription(ctx, sub.StripeSubscriptionID)
	switch {
	case stripeclient.IsNotFound(err):
		st.Ended = true
	case err != nil:
		fail("fetch remote subscription failed", err)
		return
	default:
		st.CustomerRef = remote.CustomerID
		st.Status = localStatus(remote.Status)
		st.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
		st.Ended = remoteEnded(remote.Status)
		if !remote.CurrentPeriodEnd.IsZero() {
			end := remote.CurrentPeriodEnd
			st.PeriodEnd = &end
		}
	}

	applied, err := s.store.ApplyRemoteState(ctx, st)
	if err != nil {
		fail("apply remote state failed", err)
		return
	}
	if applied && (st.Ended || st.Status != sub.Status) {
		res.Updated++
	}
	if applied && st.Ended {
		res.Ended++
	}
	if remote == nil {
		return
	}

	invoices, err := s.stripe.ListPaidInvoices(ctx, sub.StripeSubscriptionID)
	if err != nil {
		fail("list paid invoices failed", err)
		return
	}
	for _, inv := range invoices {
		inserted, err := s.creditInvoice(ctx, sub, inv)
		if err != nil {
			fail("backfill earning failed", err)
			continue
		}
		if inserted {
			res.EarningsBackfilled++
		}
	}
}

// remoteEnded reports provider statuses that end the lifecycle for good.
func remoteEnded(status string) bool {
	return status == string(stripe.SubscriptionStatusCanceled) ||
		status == string(stripe.SubscriptionStatusIncompleteExpired)
}

// StartScheduler runs Reconcile on a cron spec with seconds. The caller
// stops the returned cron on shutdown.
func (s *Server) StartScheduler(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		ctx = logging.WithContext(ctx, s.log)
		if _, err := s.Reconcile(ctx); err != nil {
			s.log.WithError(err).Warn("scheduled reconciliation did not run")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.log.WithField("schedule", spec).Info("reconciliation scheduler started")
	return c, nil
}
