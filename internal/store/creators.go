package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GetProfile returns the identity mirror row for a user.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := s.queryRow(ctx, s.db, `
		SELECT id, email, display_name, is_admin, created_at
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// UpsertProfile inserts or refreshes an identity mirror row.
func (s *Store) UpsertProfile(ctx context.Context, p *Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO profiles (id, email, display_name, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			is_admin = excluded.is_admin`,
		p.ID, p.Email, p.DisplayName, p.IsAdmin, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

const creatorColumns = `id, user_id, handle, display_name, price_cents,
	stripe_product_id, stripe_price_id, payout_method, payout_email, payout_details,
	created_at, updated_at`

func scanCreator(row interface{ Scan(...any) error }) (*Creator, error) {
	var c Creator
	var productID, priceID, method, email, details sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Handle, &c.DisplayName, &c.PriceCents,
		&productID, &priceID, &method, &email, &details,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.StripeProductID = productID.String
	c.StripePriceID = priceID.String
	c.PayoutMethod = method.String
	c.PayoutEmail = email.String
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &c.PayoutDetails); err != nil {
			return nil, fmt.Errorf("decode payout_details for creator %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// GetCreator returns a creator by id.
func (s *Store) GetCreator(ctx context.Context, id string) (*Creator, error) {
	c, err := scanCreator(s.queryRow(ctx, s.db,
		`SELECT `+creatorColumns+` FROM creators WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetCreatorByUserID returns the creator owned by a user.
func (s *Store) GetCreatorByUserID(ctx context.Context, userID string) (*Creator, error) {
	c, err := scanCreator(s.queryRow(ctx, s.db,
		`SELECT `+creatorColumns+` FROM creators WHERE user_id = ? ORDER BY created_at LIMIT 1`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// CreateCreator inserts a creator, assigning an id when empty.
func (s *Store) CreateCreator(ctx context.Context, c *Creator) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	details, err := encodeDetails(c.PayoutDetails)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.db, `
		INSERT INTO creators (`+creatorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Handle, c.DisplayName, c.PriceCents,
		nullString(c.StripeProductID), nullString(c.StripePriceID),
		nullString(c.PayoutMethod), nullString(c.PayoutEmail), details,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert creator: %w", err)
	}
	return nil
}

// ClaimProductRef stores productID as the creator's product reference only
// if none is set yet, and returns the reference that ended up stored. A
// caller that loses the race gets the winner's id back.
func (s *Store) ClaimProductRef(ctx context.Context, creatorID, productID string) (string, error) {
	_, err := s.exec(ctx, s.db, `
		UPDATE creators SET stripe_product_id = ?, updated_at = ?
		WHERE id = ? AND stripe_product_id IS NULL`,
		productID, s.now(), creatorID)
	if err != nil {
		return "", fmt.Errorf("claim product ref: %w", err)
	}
	var stored sql.NullString
	if err := s.queryRow(ctx, s.db,
		`SELECT stripe_product_id FROM creators WHERE id = ?`, creatorID,
	).Scan(&stored); err != nil {
		return "", notFound(err)
	}
	return stored.String, nil
}

// SetPriceRef switches the creator's active price reference and amount in one statement.
func (s *Store) SetPriceRef(ctx context.Context, creatorID, priceID string, priceCents int64) error {
	res, err := s.exec(ctx, s.db, `
		UPDATE creators SET stripe_price_id = ?, price_cents = ?, updated_at = ?
		WHERE id = ?`,
		priceID, priceCents, s.now(), creatorID)
	if err != nil {
		return fmt.Errorf("set price ref: %w", err)
	}
	return requireRow(res)
}

// ClearPriceRef makes the creator free: no price reference, zero price.
// The product reference is kept for reuse.
func (s *Store) ClearPriceRef(ctx context.Context, creatorID string) error {
	res, err := s.exec(ctx, s.db, `
		UPDATE creators SET stripe_price_id = NULL, price_cents = 0, updated_at = ?
		WHERE id = ?`,
		s.now(), creatorID)
	if err != nil {
		return fmt.Errorf("clear price ref: %w", err)
	}
	return requireRow(res)
}

func encodeDetails(d PayoutDetails) (sql.NullString, error) {
	if d == (PayoutDetails{}) {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode payout details: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
