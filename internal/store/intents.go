package store

import (
	"context"
	"database/sql"

	"venue-order-service/internal/models"
)

// GetIntentByUserID retrieves the user's pending order intent.
// Returns (nil, nil) when the user has no current order.
func (s *Store) GetIntentByUserID(ctx context.Context, userID string) (*models.OrderIntent, error) {
	var intent models.OrderIntent
	err := s.db.GetContext(ctx, &intent,
		"SELECT * FROM order_intents WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// SaveIntent creates or replaces the user's pending order intent.
func (s *Store) SaveIntent(ctx context.Context, intent *models.OrderIntent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_intents (user_id, order_type, geofencing, post_status, pending_order_id, order_payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			order_type = EXCLUDED.order_type,
			geofencing = EXCLUDED.geofencing,
			post_status = EXCLUDED.post_status,
			pending_order_id = EXCLUDED.pending_order_id,
			order_payload = EXCLUDED.order_payload,
			updated_at = NOW()`,
		intent.UserID, intent.OrderType, intent.Geofencing, intent.PostStatus,
		intent.PendingOrderID, intent.Order)
	return err
}

// SetPendingOrderID persists the order id minted for a confirmation attempt.
// The id doubles as the capture idempotency key, so it must be written before
// the first capture call and reused on every retry of the same intent.
// Returns false when a concurrent attempt persisted its id first; the caller
// must then reload the intent and capture under the persisted id.
func (s *Store) SetPendingOrderID(ctx context.Context, userID, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE order_intents SET pending_order_id = $1, updated_at = NOW()
		WHERE user_id = $2 AND pending_order_id = ''`,
		orderID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompleteIntent flips the intent's idempotency guard with a conditional write.
// Returns false when another confirmation already flipped it, in which case the
// caller must not run fan-out side effects again.
func (s *Store) CompleteIntent(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE order_intents
		SET post_status = $1, geofencing = $2, updated_at = NOW()
		WHERE user_id = $3 AND post_status = $4`,
		models.PostStatusComplete, models.GeofencingComplete,
		userID, models.PostStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearIntent removes the user's pending order intent.
func (s *Store) ClearIntent(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM order_intents WHERE user_id = $1", userID)
	return err
}
