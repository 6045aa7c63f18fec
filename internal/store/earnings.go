package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// InsertEarning records a credited charge once per invoice. It reports
// false, with no error, when the invoice was already credited.
func (s *Store) InsertEarning(ctx context.Context, e *Earning) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = EarningAvailable
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	res, err := s.exec(ctx, s.db, `
		INSERT INTO creator_earnings (
			id, creator_id, subscriber_id, subscription_id,
			stripe_invoice_id, stripe_payment_intent_id,
			gross_cents, fee_cents, net_cents, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (stripe_invoice_id) DO NOTHING`,
		e.ID, e.CreatorID, e.SubscriberID, e.SubscriptionID,
		e.StripeInvoiceID, nullString(e.StripePaymentIntentID),
		e.GrossCents, e.FeeCents, e.NetCents, e.Status, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert earning: %w", err)
	}
	return affected(res)
}

// ListEarnings returns a creator's earnings, oldest first.
func (s *Store) ListEarnings(ctx context.Context, creatorID string) ([]Earning, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT id, creator_id, subscriber_id, subscription_id, stripe_invoice_id,
			stripe_payment_intent_id, gross_cents, fee_cents, net_cents, status,
			payout_id, created_at
		FROM creator_earnings WHERE creator_id = ?
		ORDER BY created_at, id`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	var out []Earning
	for rows.Next() {
		var (
			e             Earning
			intent, payID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CreatorID, &e.SubscriberID, &e.SubscriptionID, &e.StripeInvoiceID,
			&intent, &e.GrossCents, &e.FeeCents, &e.NetCents, &e.Status,
			&payID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		e.StripePaymentIntentID = intent.String
		e.PayoutID = payID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// AvailableBalance is the creator's withdrawable amount in cents: net of
// available earnings minus the unsettled part of in-flight and completed payouts.
func (s *Store) AvailableBalance(ctx context.Context, creatorID string) (int64, error) {
	return s.availableBalance(ctx, s.db, creatorID)
}

func (s *Store) availableBalance(ctx context.Context, q querier, creatorID string) (int64, error) {
	var earned, reserved int64
	if err := s.queryRow(ctx, q, `
		SELECT COALESCE(SUM(net_cents), 0) FROM creator_earnings
		WHERE creator_id = ? AND status = ?`,
		creatorID, EarningAvailable,
	).Scan(&earned); err != nil {
		return 0, fmt.Errorf("sum available earnings: %w", err)
	}
	if err := s.queryRow(ctx, q, `
		SELECT COALESCE(SUM(amount_cents - settled_cents), 0) FROM creator_payouts
		WHERE creator_id = ? AND status IN (?, ?, ?)`,
		creatorID, PayoutPending, PayoutProcessing, PayoutCompleted,
	).Scan(&reserved); err != nil {
		return 0, fmt.Errorf("sum reserved payouts: %w", err)
	}
	return earned - reserved, nil
}

// EarningsTotals aggregates a creator's money movements in cents.
type EarningsTotals struct {
	TotalNetCents       int64
	TotalFeeCents       int64
	AvailableCents      int64
	PendingPayoutCents  int64
	PaidOutCents        int64
	ActiveSubscriptions int
}

// EarningsTotals computes the creator's earnings summary.
func (s *Store) EarningsTotals(ctx context.Context, creatorID string) (*EarningsTotals, error) {
	var t EarningsTotals
	if err := s.queryRow(ctx, s.db, `
		SELECT COALESCE(SUM(net_cents), 0), COALESCE(SUM(fee_cents), 0)
		FROM creator_earnings WHERE creator_id = ?`, creatorID,
	).Scan(&t.TotalNetCents, &t.TotalFeeCents); err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}
	if err := s.queryRow(ctx, s.db, `
		SELECT
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN amount_cents ELSE 0 END), 0)
		FROM creator_payouts WHERE creator_id = ?`,
		PayoutPending, PayoutProcessing, PayoutCompleted, creatorID,
	).Scan(&t.PendingPayoutCents, &t.PaidOutCents); err != nil {
		return nil, fmt.Errorf("sum payouts: %w", err)
	}
	available, err := s.AvailableBalance(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	t.AvailableCents = available
	if t.ActiveSubscriptions, err = s.CountActiveSubscribers(ctx, creatorID); err != nil {
		return nil, err
	}
	return &t, nil
}
