package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"venue-order-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound wraps all row-miss errors so callers can map them to 404s.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetDevices retrieves all registered push devices for a user
func (s *Store) GetDevices(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.SelectContext(ctx, &devices,
		"SELECT * FROM user_devices WHERE user_id = $1 ORDER BY name", userID)
	return devices, err
}

// UpsertDevice registers a device or refreshes its push token when it changed
func (s *Store) UpsertDevice(ctx context.Context, device *models.Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_devices (user_id, name, push_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO UPDATE SET push_token = EXCLUDED.push_token`,
		device.UserID, device.Name, device.PushToken)
	return err
}

// GetVenueMemberships retrieves the venues a user has staff access to
func (s *Store) GetVenueMemberships(ctx context.Context, userID string) ([]models.VenueMembership, error) {
	var memberships []models.VenueMembership
	err := s.db.SelectContext(ctx, &memberships,
		"SELECT * FROM venue_memberships WHERE user_id = $1", userID)
	return memberships, err
}

// GetVenue retrieves a venue by ID
func (s *Store) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	var venue models.Venue
	err := s.db.GetContext(ctx, &venue, "SELECT * FROM venues WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("venue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &venue, nil
}
