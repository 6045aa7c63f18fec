package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const subscriptionColumns = `id, subscriber_id, creator_id, status,
	stripe_customer_id, stripe_subscription_id, current_period_end,
	cancel_at_period_end, provider_ended, last_event_at, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*Subscription, error) {
	var (
		sub       Subscription
		customer  sql.NullString
		ref       sql.NullString
		periodEnd sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.SubscriberID, &sub.CreatorID, &sub.Status,
		&customer, &ref, &periodEnd,
		&sub.CancelAtPeriodEnd, &sub.ProviderEnded, &sub.LastEventAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.StripeCustomerID = customer.String
	sub.StripeSubscriptionID = ref.String
	sub.CurrentPeriodEnd = timePtr(periodEnd)
	return &sub, nil
}

// GetSubscription returns a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx, s.db,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return sub, nil
}

// GetSubscriptionByPair returns the row for a (subscriber, creator) pair.
func (s *Store) GetSubscriptionByPair(ctx context.Context, subscriberID, creatorID string) (*Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx, s.db,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscriber_id = ? AND creator_id = ?`,
		subscriberID, creatorID))
	if err != nil {
		return nil, notFound(err)
	}
	return sub, nil
}

// GetSubscriptionByRef returns the row holding a billing-subscription-reference.
func (s *Store) GetSubscriptionByRef(ctx context.Context, ref string) (*Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx, s.db,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ?`, ref))
	if err != nil {
		return nil, notFound(err)
	}
	return sub, nil
}

// HasActiveSubscription reports whether the pair has an active row.
func (s *Store) HasActiveSubscription(ctx context.Context, subscriberID, creatorID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, s.db, `
		SELECT COUNT(*) FROM subscriptions
		WHERE subscriber_id = ? AND creator_id = ? AND status = ?`,
		subscriberID, creatorID, SubscriptionActive,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check active subscription: %w", err)
	}
	return n > 0, nil
}

// CountActiveSubscribers counts active rows for a creator.
func (s *Store) CountActiveSubscribers(ctx context.Context, creatorID string) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*) FROM subscriptions WHERE creator_id = ? AND status = ?`,
		creatorID, SubscriptionActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active subscribers: %w", err)
	}
	return n, nil
}

// ActivateFree creates or reactivates a free subscription for the pair.
// It returns ErrConflict when the pair already has an active row and
// ErrBillingLive when the row still tracks a provider subscription that has
// not ended.
func (s *Store) ActivateFree(ctx context.Context, subscriberID, creatorID string) (*Subscription, error) {
	now := s.now()
	res, err := s.exec(ctx, s.db, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, NULL, NULL, NULL, FALSE, FALSE, 0, ?, ?)
		ON CONFLICT (subscriber_id, creator_id) DO UPDATE SET
			status = excluded.status,
			stripe_customer_id = NULL,
			stripe_subscription_id = NULL,
			current_period_end = NULL,
			cancel_at_period_end = FALSE,
			provider_ended = FALSE,
			updated_at = excluded.updated_at
		WHERE subscriptions.status <> ?
		  AND (subscriptions.stripe_subscription_id IS NULL OR subscriptions.provider_ended)`,
		uuid.NewString(), subscriberID, creatorID, SubscriptionActive, now, now,
		SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("activate free subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		cur, err := s.GetSubscriptionByPair(ctx, subscriberID, creatorID)
		if err != nil {
			return nil, err
		}
		if cur.Status != SubscriptionActive && cur.StripeSubscriptionID != "" && !cur.ProviderEnded {
			return nil, ErrBillingLive
		}
		return nil, ErrConflict
	}
	return s.GetSubscriptionByPair(ctx, subscriberID, creatorID)
}

// CheckoutActivation is the state carried by a completed checkout.
type CheckoutActivation struct {
	SubscriberID    string
	CreatorID       string
	CustomerRef     string
	SubscriptionRef string
	PeriodEnd       *time.Time
	EventAt         int64
}

// UpsertFromCheckout activates the pair's row from a completed checkout.
//
// A reference different from the stored one starts a new lifecycle and
// applies unless it is older than the stored lifecycle's last event while
// that lifecycle is still running. The same reference applies only while
// the provider has not ended it and the event is not stale.
func (s *Store) UpsertFromCheckout(ctx context.Context, a CheckoutActivation) (bool, error) {
	now := s.now()
	res, err := s.exec(ctx, s.db, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, FALSE, ?, ?, ?)
		ON CONFLICT (subscriber_id, creator_id) DO UPDATE SET
			status = excluded.status,
			stripe_customer_id = excluded.stripe_customer_id,
			stripe_subscription_id = excluded.stripe_subscription_id,
			current_period_end = COALESCE(excluded.current_period_end, subscriptions.current_period_end),
			cancel_at_period_end = FALSE,
			provider_ended = FALSE,
			last_event_at = excluded.last_event_at,
			updated_at = excluded.updated_at
		WHERE subscriptions.stripe_subscription_id IS NULL
		   OR (subscriptions.stripe_subscription_id <> excluded.stripe_subscription_id
		       AND (subscriptions.provider_ended OR subscriptions.last_event_at <= excluded.last_event_at))
		   OR (subscriptions.stripe_subscription_id = excluded.stripe_subscription_id
		       AND NOT subscriptions.provider_ended
		       AND subscriptions.last_event_at <= excluded.last_event_at)`,
		uuid.NewString(), a.SubscriberID, a.CreatorID, SubscriptionActive,
		nullString(a.CustomerRef), a.SubscriptionRef, nullTime(a.PeriodEnd),
		a.EventAt, now, now)
	if err != nil {
		return false, fmt.Errorf("upsert checkout subscription: %w", err)
	}
	return affected(res)
}

// RemoteState is a full snapshot of a provider subscription.
type RemoteState struct {
	SubscriptionRef   string
	CustomerRef       string
	SubscriberID      string // optional embedded identity
	CreatorID         string // optional embedded identity
	Status            string
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	Ended             bool // provider deleted the subscription
	EventAt           int64
}

// HasIdentity reports whether the snapshot carries the embedded pair.
func (r RemoteState) HasIdentity() bool { return r.SubscriberID != "" && r.CreatorID != "" }

// ApplyRemoteState folds a provider snapshot into the local row.
//
// With embedded identity the row is upserted on the pair, so an event that
// arrives before the checkout completion still lands. Without it the row is
// located by reference. Either way an ended lifecycle is terminal and stale
// snapshots (older than the last applied event) are discarded, except
// deletion, which always applies.
func (s *Store) ApplyRemoteState(ctx context.Context, st RemoteState) (bool, error) {
	if st.Ended {
		st.Status = SubscriptionCanceled
	}
	if st.HasIdentity() {
		return s.upsertRemoteState(ctx, st)
	}
	return s.updateRemoteStateByRef(ctx, st)
}

func (s *Store) upsertRemoteState(ctx context.Context, st RemoteState) (bool, error) {
	now := s.now()
	res, err := s.exec(ctx, s.db, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscriber_id, creator_id) DO UPDATE SET
			status = excluded.status,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, subscriptions.stripe_customer_id),
			stripe_subscription_id = excluded.stripe_subscription_id,
			current_period_end = COALESCE(excluded.current_period_end, subscriptions.current_period_end),
			cancel_at_period_end = excluded.cancel_at_period_end,
			provider_ended = excluded.provider_ended,
			last_event_at = CASE
				WHEN subscriptions.stripe_subscription_id = excluded.stripe_subscription_id
				 AND subscriptions.last_event_at > excluded.last_event_at
				THEN subscriptions.last_event_at
				ELSE excluded.last_event_at END,
			updated_at = excluded.updated_at
		WHERE subscriptions.stripe_subscription_id IS NULL
		   OR (subscriptions.stripe_subscription_id <> excluded.stripe_subscription_id
		       AND subscriptions.provider_ended)
		   OR (subscriptions.stripe_subscription_id = excluded.stripe_subscription_id
		       AND (excluded.provider_ended
		            OR (NOT subscriptions.provider_ended
		                AND subscriptions.last_event_at <= excluded.last_event_at)))`,
		uuid.NewString(), st.SubscriberID, st.CreatorID, st.Status,
		nullString(st.CustomerRef), st.SubscriptionRef, nullTime(st.PeriodEnd),
		st.CancelAtPeriodEnd, st.Ended, st.EventAt, now, now)
	if err != nil {
		return false, fmt.Errorf("upsert remote subscription state: %w", err)
	}
	return affected(res)
}

func (s *Store) updateRemoteStateByRef(ctx context.Context, st RemoteState) (bool, error) {
	now := s.now()
	var (
		res sql.Result
		err error
	)
	if st.Ended {
		res, err = s.exec(ctx, s.db, `
			UPDATE subscriptions SET
				status = ?,
				current_period_end = COALESCE(?, current_period_end),
				cancel_at_period_end = ?,
				provider_ended = TRUE,
				last_event_at = CASE WHEN last_event_at > ? THEN last_event_at ELSE ? END,
				updated_at = ?
			WHERE stripe_subscription_id = ?`,
			st.Status, nullTime(st.PeriodEnd), st.CancelAtPeriodEnd,
			st.EventAt, st.EventAt, now, st.SubscriptionRef)
	} else {
		res, err = s.exec(ctx, s.db, `
			UPDATE subscriptions SET
				status = ?,
				current_period_end = COALESCE(?, current_period_end),
				cancel_at_period_end = ?,
				last_event_at = ?,
				updated_at = ?
			WHERE stripe_subscription_id = ?
			  AND NOT provider_ended
			  AND last_event_at <= ?`,
			st.Status, nullTime(st.PeriodEnd), st.CancelAtPeriodEnd,
			st.EventAt, now, st.SubscriptionRef, st.EventAt)
	}
	if err != nil {
		return false, fmt.Errorf("update remote subscription state: %w", err)
	}
	return affected(res)
}

// MarkPastDue flags a failed renewal unless the row is ended or the event stale.
func (s *Store) MarkPastDue(ctx context.Context, ref string, eventAt int64) (bool, error) {
	res, err := s.exec(ctx, s.db, `
		UPDATE subscriptions SET status = ?, last_event_at = ?, updated_at = ?
		WHERE stripe_subscription_id = ?
		  AND NOT provider_ended
		  AND last_event_at <= ?`,
		SubscriptionPastDue, eventAt, s.now(), ref, eventAt)
	if err != nil {
		return false, fmt.Errorf("mark past due: %w", err)
	}
	return affected(res)
}

// MarkCancelAtPeriodEnd mirrors a provider-side end-of-period cancellation.
// A row already ended by the provider keeps its terminal status.
func (s *Store) MarkCancelAtPeriodEnd(ctx context.Context, id, status string, periodEnd *time.Time) (*Subscription, error) {
	res, err := s.exec(ctx, s.db, `
		UPDATE subscriptions SET
			cancel_at_period_end = TRUE,
			current_period_end = COALESCE(?, current_period_end),
			status = CASE WHEN provider_ended THEN status ELSE ? END,
			updated_at = ?
		WHERE id = ?`,
		nullTime(periodEnd), status, s.now(), id)
	if err != nil {
		return nil, fmt.Errorf("mark cancel at period end: %w", err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.GetSubscription(ctx, id)
}

// ListReconcilable returns rows whose provider lifecycle is still running.
func (s *Store) ListReconcilable(ctx context.Context) ([]Subscription, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE stripe_subscription_id IS NOT NULL AND NOT provider_ended
		ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list reconcilable subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
