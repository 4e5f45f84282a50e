package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"venue-order-service/internal/models"
	"venue-order-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishOrderConfirmed publishes OrderConfirmed after a capture and post
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, order *models.Order, amountCents int64) error {
	event := &models.OrderConfirmedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderConfirmed),
		OrderID:     order.ID,
		UserID:      order.UserID,
		VenueID:     order.VenueID,
		PaymentType: order.PaymentType,
		AmountCents: amountCents,
	}
	return ep.producer.PublishEvent(ctx, "order-"+order.ID, event)
}

// PublishOrderStatusChanged publishes a venue-side status advance
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, status string) error {
	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   order.ID,
		VenueID:   order.VenueID,
		Status:    status,
	}
	return ep.producer.PublishEvent(ctx, "order-"+order.ID, event)
}

// PublishOrderRefunded publishes OrderRefunded
func (ep *EventPublisher) PublishOrderRefunded(ctx context.Context, order *models.Order, refundID string) error {
	event := &models.OrderRefundedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderRefunded),
		OrderID:   order.ID,
		VenueID:   order.VenueID,
		RefundID:  refundID,
	}
	return ep.producer.PublishEvent(ctx, "order-"+order.ID, event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onGeofenceCompleted func(context.Context, *models.GeofenceCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnGeofenceCompleted registers a handler for GeofenceCompleted events
func (eh *EventHandler) OnGeofenceCompleted(handler func(context.Context, *models.GeofenceCompletedEvent) error) {
	eh.onGeofenceCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeGeofenceCompleted:
		if eh.onGeofenceCompleted != nil {
			var event models.GeofenceCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal GeofenceCompleted event: %w", err)
			}
			return eh.onGeofenceCompleted(ctx, &event)
		}

	default:
		util.GetLogger().Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
