package models

import "time"

// Event types
const (
	EventTypeGeofenceCompleted  = "GEOFENCE_COMPLETED"
	EventTypeOrderConfirmed     = "ORDER_CONFIRMED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderRefunded      = "ORDER_REFUNDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// GeofenceCompletedEvent arrives when a client reports physical arrival at the
// ordered venue. Delivery is at least once; the intent's post-status guard
// absorbs duplicates.
type GeofenceCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// OrderConfirmedEvent is published after payment is captured and the order posted.
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	VenueID     string `json:"venue_id"`
	PaymentType string `json:"payment_type"`
	AmountCents int64  `json:"amount_cents"`
}

// OrderStatusChangedEvent is published on venue-side status advances.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	VenueID string `json:"venue_id"`
	Status  string `json:"status"`
}

// OrderRefundedEvent is published when a captured order is refunded.
type OrderRefundedEvent struct {
	BaseEvent
	OrderID  string `json:"order_id"`
	VenueID  string `json:"venue_id"`
	RefundID string `json:"refund_id"`
}
