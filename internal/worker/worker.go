package worker

import (
	"context"
	"errors"

	"venue-order-service/internal/broker"
	"venue-order-service/internal/models"
	"venue-order-service/internal/payment"
	"venue-order-service/internal/service"
	"venue-order-service/internal/util"

	"go.uber.org/zap"
)

// GeofenceWorker consumes geofence-completed events and runs the same
// confirmation path as the HTTP trigger. Delivery is at least once, so a
// duplicate event lands on an already-completed intent and short-circuits.
type GeofenceWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	engine       *service.ConfirmationEngine
	logger       *zap.Logger
}

// NewGeofenceWorker creates a new geofence worker
func NewGeofenceWorker(consumer *broker.Consumer, engine *service.ConfirmationEngine) *GeofenceWorker {
	w := &GeofenceWorker{
		consumer: consumer,
		engine:   engine,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnGeofenceCompleted(w.handleGeofenceCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *GeofenceWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting geofence worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *GeofenceWorker) Stop() error {
	w.logger.Info("Stopping geofence worker")
	return w.consumer.Close()
}

// handleGeofenceCompleted confirms the user's intent. Only transient failures
// propagate (leaving the message uncommitted for redelivery); business
// rejections are terminal and must not spin the consumer.
func (w *GeofenceWorker) handleGeofenceCompleted(ctx context.Context, event *models.GeofenceCompletedEvent) error {
	result, err := w.engine.ConfirmOnGeofence(ctx, event.UserID)
	if err != nil {
		if payment.Retryable(err) || errors.Is(err, service.ErrConfirmationInProgress) {
			return err
		}
		w.logger.Warn("Geofence confirmation rejected",
			zap.String("user_id", event.UserID),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return nil
	}

	if result.AlreadyCompleted {
		w.logger.Debug("Duplicate geofence event ignored",
			zap.String("user_id", event.UserID),
			zap.String("event_id", event.EventID))
	}
	return nil
}
