package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venue-order-service/internal/models"
	"venue-order-service/internal/notify"
	"venue-order-service/internal/payment"
	"venue-order-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrNoCaptureReference = errors.New("order has no payment information")
	ErrInvalidIntent      = errors.New("invalid order intent")
)

// RecentOrdersLimit caps the user-facing order history.
const RecentOrdersLimit = 5

// OrderService handles venue-side order mutations and user-facing reads.
type OrderService struct {
	store     Store
	provider  payment.Provider
	notifier  notify.Notifier
	cache     OrderCache
	publisher Publisher
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store Store,
	provider payment.Provider,
	notifier notify.Notifier,
	cache OrderCache,
	publisher Publisher,
	cacheTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:     store,
		provider:  provider,
		notifier:  notifier,
		cache:     cache,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		logger:    util.GetLogger(),
	}
}

// SaveCurrentOrder creates or replaces the user's pending order intent. The
// intent starts with a fresh idempotency guard: replacing an intent abandons
// any confirmation attempt on the previous one.
func (s *OrderService) SaveCurrentOrder(ctx context.Context, userID, orderType string, order models.IntentOrder) error {
	ctx, span := util.StartSpan(ctx, "OrderService.SaveCurrentOrder")
	defer span.End()

	if orderType != models.OrderTypeOnApproach && orderType != models.OrderTypeSeated {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidIntent, orderType)
	}
	if len(order.Items) == 0 {
		return fmt.Errorf("%w: no line items", ErrInvalidIntent)
	}
	if order.VenueID == "" {
		return fmt.Errorf("%w: missing venue", ErrInvalidIntent)
	}
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: non-positive quantity for dish %s", ErrInvalidIntent, item.DishID)
		}
	}

	intent := &models.OrderIntent{
		UserID:     userID,
		OrderType:  orderType,
		Geofencing: models.GeofencingIncomplete,
		PostStatus: models.PostStatusPending,
		Order:      order,
	}
	if err := s.store.SaveIntent(ctx, intent); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}

	s.logger.Info("Current order saved",
		zap.String("user_id", userID),
		zap.String("venue_id", order.VenueID),
		zap.String("order_type", orderType),
		zap.Int("items", len(order.Items)))
	return nil
}

// UpdateOrderStatus advances an order through its venue lifecycle. The actor
// must hold a membership for the order's venue, or, when they hold none at
// all, be the order's own creator. On COMPLETE the order's user is notified.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actorID, orderID, status, message string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	memberships, err := s.store.GetVenueMemberships(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	if len(memberships) > 0 {
		if !hasVenue(memberships, order.VenueID) {
			return fmt.Errorf("%w: no membership for venue %s", ErrAccessDenied, order.VenueID)
		}
	} else if order.UserID != actorID {
		return fmt.Errorf("%w: not the order owner", ErrAccessDenied)
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", status))

	if status == models.OrderStatusComplete {
		if message == "" {
			message = "Your order is ready!"
		}
		s.notifyUser(ctx, order.UserID, message)
	}

	if err := s.cache.InvalidateOrders(ctx, order.UserID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.Error(err))
	}

	if err := s.publisher.PublishOrderStatusChanged(ctx, order, status); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return nil
}

// Refund refunds a captured order. Only the owner of the order's venue may
// refund it, and the order must carry a capture reference.
func (s *OrderService) Refund(ctx context.Context, actorID, venueID, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Refund")
	defer span.End()

	venue, err := s.store.GetVenue(ctx, venueID)
	if err != nil {
		return "", err
	}
	if venue.OwnerID != actorID {
		return "", fmt.Errorf("%w: not the venue owner", ErrAccessDenied)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.PaymentIntent == "" {
		return "", ErrNoCaptureReference
	}

	refundID, err := s.provider.Refund(ctx, order.PaymentIntent)
	if err != nil {
		return "", fmt.Errorf("refund failed: %w", err)
	}

	if err := s.store.MarkOrderRefunded(ctx, orderID, refundID); err != nil {
		return "", fmt.Errorf("failed to record refund: %w", err)
	}
	util.RefundsTotal.Inc()

	s.logger.Info("Order refunded",
		zap.String("order_id", orderID),
		zap.String("refund_id", refundID))

	if err := s.cache.InvalidateOrders(ctx, order.UserID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.Error(err))
	}
	if err := s.publisher.PublishOrderRefunded(ctx, order, refundID); err != nil {
		s.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
	}

	return refundID, nil
}

// CancelCurrentOrder drops the user's pending intent. The saved card payment
// methods are listed to verify the customer record is reachable; detaching
// them is intentionally skipped so the card stays usable for the next order.
func (s *OrderService) CancelCurrentOrder(ctx context.Context, userID string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelCurrentOrder")
	defer span.End()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.StripeCustomerID != "" {
		if _, err := s.provider.ListCardPaymentMethods(ctx, user.StripeCustomerID); err != nil {
			return fmt.Errorf("failed to check payment methods: %w", err)
		}
	}

	if err := s.store.ClearIntent(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear intent: %w", err)
	}

	s.logger.Info("Current order cancelled", zap.String("user_id", userID))
	return nil
}

// ListOrders returns the user's most recent orders, newest first, via the cache.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	if cached, err := s.cache.GetCachedOrders(ctx, userID); err != nil {
		s.logger.Warn("Order cache read failed", zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	orders, err := s.store.GetOrdersByUserID(ctx, userID, RecentOrdersLimit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.CacheOrders(ctx, userID, orders, s.cacheTTL); err != nil {
		s.logger.Warn("Order cache write failed", zap.Error(err))
	}
	return orders, nil
}

// GetOrder returns one of the user's own orders with its items.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: not the order owner", ErrAccessDenied)
	}
	return order, nil
}

// ListFavorites returns the user's favorite records
func (s *OrderService) ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error) {
	return s.store.GetFavoritesByUserID(ctx, userID)
}

// ListRewards returns the user's reward balances
func (s *OrderService) ListRewards(ctx context.Context, userID string) ([]models.Reward, error) {
	return s.store.GetRewards(ctx, userID)
}

// RegisterDevice adds a push device for the user, or refreshes the token of a
// device registered under the same name.
func (s *OrderService) RegisterDevice(ctx context.Context, userID, name, pushToken string) error {
	if pushToken == "" {
		return nil
	}
	return s.store.UpsertDevice(ctx, &models.Device{
		UserID:    userID,
		Name:      name,
		PushToken: pushToken,
	})
}

// NotifyUser pushes a message to all of a user's devices.
func (s *OrderService) NotifyUser(ctx context.Context, userID, message string) error {
	devices, err := s.store.GetDevices(ctx, userID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.PushToken)
	}
	return s.notifier.Send(ctx, tokens, message)
}

func (s *OrderService) notifyUser(ctx context.Context, userID, message string) {
	if err := s.NotifyUser(ctx, userID, message); err != nil {
		util.FanoutFailuresTotal.WithLabelValues("notification").Inc()
		s.logger.Error("Failed to notify user",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func hasVenue(memberships []models.VenueMembership, venueID string) bool {
	for _, m := range memberships {
		if m.VenueID == venueID {
			return true
		}
	}
	return false
}
