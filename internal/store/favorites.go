package store

import (
	"context"

	"venue-order-service/internal/models"
)

// CreateFavorite inserts a write-once favorite record. Favorites are never
// updated; the unique (user_id, order_id, dish_id) index drops duplicates on
// a retried fan-out instead of erroring.
func (s *Store) CreateFavorite(ctx context.Context, fav *models.Favorite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, user_id, venue_id, dish_id, order_id, order_type, payment_type, payment_distance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, order_id, dish_id) DO NOTHING`,
		fav.ID, fav.UserID, fav.VenueID, fav.DishID, fav.OrderID,
		fav.OrderType, fav.PaymentType, fav.PaymentDistance)
	return err
}

// GetFavoritesByUserID retrieves all favorites for a user
func (s *Store) GetFavoritesByUserID(ctx context.Context, userID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := s.db.SelectContext(ctx, &favorites,
		"SELECT * FROM favorites WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return favorites, err
}
