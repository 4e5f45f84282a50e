package store

import (
	"context"
	"database/sql"
	"fmt"

	"venue-order-service/internal/models"
)

// CreateOrder persists a finalized order and its items. The insert ignores an
// id conflict so a retried confirmation that already persisted the order is a
// no-op rather than an error.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, venue_id, user_id, payment_type, status, payment_intent, table_no, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, order.VenueID, order.UserID, order.PaymentType, order.Status,
		order.PaymentIntent, order.TableNo, order.Date)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already persisted by a previous attempt.
		return tx.Commit()
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, dish_id, dish_name, price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			order.ID, item.DishID, item.DishName, item.PriceCents, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves the user's most recent orders, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// MarkOrderRefunded records the refund and moves the order to its terminal state
func (s *Store) MarkOrderRefunded(ctx context.Context, orderID, refundID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, refund_id = $2, updated_at = NOW() WHERE id = $3",
		models.OrderStatusRefunded, refundID, orderID)
	return err
}
