package store

import (
	"context"

	"venue-order-service/internal/models"
)

// AddRewardPoints grants points in one category via an atomic increment.
// Concurrent grants never lose updates because the addition happens in the
// database, not in a read-modify-write cycle.
func (s *Store) AddRewardPoints(ctx context.Context, userID, category string, points int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rewards (user_id, category, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, category) DO UPDATE SET points = rewards.points + EXCLUDED.points`,
		userID, category, points)
	return err
}

// GetRewards retrieves all reward balances for a user
func (s *Store) GetRewards(ctx context.Context, userID string) ([]models.Reward, error) {
	var rewards []models.Reward
	err := s.db.SelectContext(ctx, &rewards,
		"SELECT * FROM rewards WHERE user_id = $1 ORDER BY category", userID)
	return rewards, err
}
