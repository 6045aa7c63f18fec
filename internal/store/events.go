package store

import (
	"context"
	"fmt"
)

// IsEventProcessed reports whether a provider event id was already handled.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*) FROM stripe_events WHERE stripe_event_id = ?`, eventID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkEventProcessed records a handled event. Marking twice is a no-op.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO stripe_events (stripe_event_id, event_type, processed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (stripe_event_id) DO NOTHING`,
		eventID, eventType, s.now())
	if err != nil {
		return fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return nil
}
