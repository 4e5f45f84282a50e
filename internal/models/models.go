package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User represents an account holder. Devices and venue memberships live in
// their own tables and are loaded on demand.
type User struct {
	ID               string    `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	Phone            string    `db:"phone" json:"phone"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Device is a registered push target for a user.
type Device struct {
	UserID    string `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	PushToken string `db:"push_token" json:"push_token"`
}

// VenueMembership grants a user staff access to a venue.
type VenueMembership struct {
	UserID  string `db:"user_id" json:"user_id"`
	VenueID string `db:"venue_id" json:"venue_id"`
	Role    string `db:"role" json:"role"`
}

// Venue is a restaurant that receives orders and payouts.
type Venue struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	OwnerID         string `db:"owner_id" json:"owner_id"`
	PayoutAccountID string `db:"payout_account_id" json:"payout_account_id"`
}

// OrderIntent is a user's not-yet-finalized order, captured before arrival
// and confirmed by a geofence crossing or a seated check-in. At most one row
// per user. PostStatus is the idempotency guard: it flips pending -> complete
// exactly once via a conditional write.
type OrderIntent struct {
	UserID         string      `db:"user_id" json:"user_id"`
	OrderType      string      `db:"order_type" json:"order_type"`
	Geofencing     string      `db:"geofencing" json:"geofencing"`
	PostStatus     string      `db:"post_status" json:"post_status"`
	PendingOrderID string      `db:"pending_order_id" json:"pending_order_id,omitempty"`
	Order          IntentOrder `db:"order_payload" json:"order"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// IntentOrder is the order payload embedded in an intent, stored as JSONB.
type IntentOrder struct {
	VenueID              string       `json:"venue_id"`
	VenueName            string       `json:"venue_name"`
	VenuePayoutAccount   string       `json:"venue_payout_account"`
	SetupAuthorizationID string       `json:"setup_authorization_id"`
	PaymentDistance      float64      `json:"payment_distance,omitempty"`
	TableNo              int          `json:"table_no,omitempty"`
	Items                []IntentItem `json:"items"`
}

// Value implements driver.Valuer so the payload round-trips through a JSONB column.
func (o IntentOrder) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *IntentOrder) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	case nil:
		*o = IntentOrder{}
		return nil
	default:
		return fmt.Errorf("unsupported type %T for IntentOrder", src)
	}
}

// IntentItem is a line item on an intent. TotalPrice is in dollars; when it is
// zero the price of the first listed size applies instead.
type IntentItem struct {
	DishID     string     `json:"dish_id"`
	DishName   string     `json:"dish_name"`
	TotalPrice float64    `json:"total_price,omitempty"`
	Sizes      []DishSize `json:"sizes,omitempty"`
	Quantity   int        `json:"quantity"`
}

// DishSize carries the per-size price as the decimal string the menu service supplies.
type DishSize struct {
	Size  string `json:"size"`
	Price string `json:"price"`
}

// Order is a finalized order. ID is client-minted and collision-resistant;
// PaymentIntent is the capture reference and is set at most once.
type Order struct {
	ID            string    `db:"id" json:"order_id"`
	VenueID       string    `db:"venue_id" json:"venue_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	PaymentType   string    `db:"payment_type" json:"payment_type"`
	Status        string    `db:"status" json:"status"`
	PaymentIntent string    `db:"payment_intent" json:"payment_intent,omitempty"`
	RefundID      string    `db:"refund_id" json:"refund_id,omitempty"`
	TableNo       int       `db:"table_no" json:"table_no,omitempty"`
	Date          string    `db:"date" json:"date"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a finalized line item with its cent price locked in.
type OrderItem struct {
	ID         int64  `db:"id" json:"id"`
	OrderID    string `db:"order_id" json:"order_id"`
	DishID     string `db:"dish_id" json:"dish_id"`
	DishName   string `db:"dish_name" json:"dish_name"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
	Quantity   int    `db:"quantity" json:"quantity"`
}

// Favorite is a derived, write-once record per (user, dish) of a finalized order.
type Favorite struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	VenueID         string    `db:"venue_id" json:"venue_id"`
	DishID          string    `db:"dish_id" json:"dish_id"`
	OrderID         string    `db:"order_id" json:"order_id"`
	OrderType       string    `db:"order_type" json:"order_type"`
	PaymentType     string    `db:"payment_type" json:"payment_type"`
	PaymentDistance float64   `db:"payment_distance" json:"payment_distance,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Reward is a per-category point balance for a user.
type Reward struct {
	UserID   string `db:"user_id" json:"user_id"`
	Category string `db:"category" json:"category"`
	Points   int64  `db:"points" json:"points"`
}

// Order types on an intent
const (
	OrderTypeOnApproach = "on-approach"
	OrderTypeSeated     = "seated"
)

// Geofencing states
const (
	GeofencingIncomplete = "incomplete"
	GeofencingComplete   = "complete"
)

// Post statuses (idempotency guard)
const (
	PostStatusPending  = "pending"
	PostStatusComplete = "complete"
)

// Finalized order statuses
const (
	OrderStatusPendingOnApproach = "PENDING_ON_APPROACH"
	OrderStatusWaiting           = "WAITING"
	OrderStatusComplete          = "COMPLETE"
	OrderStatusExpired           = "EXPIRED"
	OrderStatusRefunded          = "REFUNDED"
)

// Payment types
const (
	PaymentTypeOnApproach = "ON_APPROACH"
	PaymentTypeImmediate  = "IMMEDIATE"
)

// Reward categories
const (
	RewardHighUser = "high-user"
	RewardReviewer = "reviewer"
	RewardReserver = "reserver"
)

// Points granted per confirmed order.
const HighUserPointsPerOrder = 2

// ValidOrderStatus reports whether s is a status venue staff may set.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPendingOnApproach, OrderStatusWaiting, OrderStatusComplete, OrderStatusExpired:
		return true
	}
	return false
}
