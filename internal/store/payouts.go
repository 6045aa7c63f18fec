package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsufficientFundsError is returned when a payout exceeds the balance
// computed inside the requesting transaction.
type InsufficientFundsError struct {
	AvailableCents int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("store: insufficient funds (available %d cents)", e.AvailableCents)
}

// TransitionError is returned for a payout status change that is not allowed.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("store: payout cannot move from %s to %s", e.From, e.To)
}

var payoutTransitions = map[string][]string{
	PayoutPending:    {PayoutProcessing, PayoutCompleted, PayoutFailed},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
}

// CanTransitionPayout reports whether a payout may move from one status to another.
func CanTransitionPayout(from, to string) bool {
	for _, s := range payoutTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const payoutColumns = `id, creator_id, amount_cents, settled_cents, method, payout_details,
	status, notes, created_at, processed_at, updated_at`

func scanPayout(row interface{ Scan(...any) error }) (*Payout, error) {
	var (
		p         Payout
		details   sql.NullString
		notes     sql.NullString
		processed sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.CreatorID, &p.AmountCents, &p.SettledCents, &p.Method, &details,
		&p.Status, &notes, &p.CreatedAt, &processed, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Notes = notes.String
	p.ProcessedAt = timePtr(processed)
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &p.Details); err != nil {
			return nil, fmt.Errorf("decode payout_details for payout %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// CreatePayout records a pending payout after re-checking the creator's
// balance under a per-creator lock in the same transaction. It returns
// *InsufficientFundsError when the amount exceeds the balance.
func (s *Store) CreatePayout(ctx context.Context, p *Payout) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.Status = PayoutPending
	p.CreatedAt, p.UpdatedAt = now, now
	details, err := encodeDetails(p.Details)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockKey(ctx, tx, "payout:"+p.CreatorID); err != nil {
			return err
		}
		balance, err := s.availableBalance(ctx, tx, p.CreatorID)
		if err != nil {
			return err
		}
		if p.AmountCents > balance {
			return &InsufficientFundsError{AvailableCents: balance}
		}
		_, err = s.exec(ctx, tx, `
			INSERT INTO creator_payouts (`+payoutColumns+`)
			VALUES (?, ?, ?, 0, ?, ?, ?, NULL, ?, NULL, ?)`,
			p.ID, p.CreatorID, p.AmountCents, p.Method, details, p.Status, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
		return nil
	})
}

// GetPayout returns a payout by id.
func (s *Store) GetPayout(ctx context.Context, id string) (*Payout, error) {
	p, err := scanPayout(s.queryRow(ctx, s.db,
		`SELECT `+payoutColumns+` FROM creator_payouts WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListPayouts returns a creator's payouts, newest first.
func (s *Store) ListPayouts(ctx context.Context, creatorID string) ([]Payout, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+payoutColumns+` FROM creator_payouts
		WHERE creator_id = ? ORDER BY created_at DESC`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// TransitionPayout moves a payout to a new status. Terminal statuses stamp
// processed_at; completion also settles the oldest available earnings that
// fit within the payout amount. Returns *TransitionError for disallowed moves.
func (s *Store) TransitionPayout(ctx context.Context, id, status, notes string) (*Payout, error) {
	var out *Payout
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var creatorID string
		if err := s.queryRow(ctx, tx,
			`SELECT creator_id FROM creator_payouts WHERE id = ?`, id).Scan(&creatorID); err != nil {
			return notFound(err)
		}
		if err := s.lockKey(ctx, tx, "payout:"+creatorID); err != nil {
			return err
		}
		// Status is read under the lock.
		p, err := scanPayout(s.queryRow(ctx, tx,
			`SELECT `+payoutColumns+` FROM creator_payouts WHERE id = ?`, id))
		if err != nil {
			return notFound(err)
		}
		if !CanTransitionPayout(p.Status, status) {
			return &TransitionError{From: p.Status, To: status}
		}

		now := s.now()
		p.Status = status
		p.UpdatedAt = now
		if notes != "" {
			p.Notes = notes
		}
		if p.IsTerminal() {
			p.ProcessedAt = &now
		}
		if status == PayoutCompleted {
			settled, err := s.settleEarnings(ctx, tx, p)
			if err != nil {
				return err
			}
			p.SettledCents = settled
		}

		_, err = s.exec(ctx, tx, `
			UPDATE creator_payouts SET
				status = ?, notes = ?, processed_at = ?, settled_cents = ?, updated_at = ?
			WHERE id = ?`,
			p.Status, nullString(p.Notes), nullTime(p.ProcessedAt), p.SettledCents, p.UpdatedAt, p.ID)
		if err != nil {
			return fmt.Errorf("update payout: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// settleEarnings flips the oldest available earnings to paid_out while their
// running total stays within the payout amount, and returns that total.
func (s *Store) settleEarnings(ctx context.Context, tx *sql.Tx, p *Payout) (int64, error) {
	rows, err := s.query(ctx, tx, `
		SELECT id, net_cents FROM creator_earnings
		WHERE creator_id = ? AND status = ?
		ORDER BY created_at, id`,
		p.CreatorID, EarningAvailable)
	if err != nil {
		return 0, fmt.Errorf("select earnings to settle: %w", err)
	}
	var (
		ids   []string
		total int64
	)
	for rows.Next() {
		var (
			id  string
			net int64
		)
		if err := rows.Scan(&id, &net); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan earning: %w", err)
		}
		if total+net > p.AmountCents {
			break
		}
		total += net
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := s.exec(ctx, tx, `
			UPDATE creator_earnings SET status = ?, payout_id = ? WHERE id = ?`,
			EarningPaidOut, p.ID, id); err != nil {
			return 0, fmt.Errorf("settle earning %s: %w", id, err)
		}
	}
	return total, nil
}

// SetClock replaces the store's time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }
