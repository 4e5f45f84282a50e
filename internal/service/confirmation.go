package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"venue-order-service/internal/models"
	"venue-order-service/internal/notify"
	"venue-order-service/internal/payment"
	"venue-order-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Validation failures surfaced to the caller. None of them is retried
// automatically and none has side effects.
var (
	ErrNoCurrentOrder         = errors.New("user has no current order")
	ErrVenueMismatch          = errors.New("current order is not from this venue")
	ErrMissingAuthorization   = errors.New("no payment authorization on current order")
	ErrMissingPayoutAccount   = errors.New("ordered venue has no payout account")
	ErrConfirmationInProgress = errors.New("a confirmation for this order is already in progress")
)

// Store is the persistence surface the services need. *store.Store satisfies it.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetDevices(ctx context.Context, userID string) ([]models.Device, error)
	UpsertDevice(ctx context.Context, device *models.Device) error
	GetVenueMemberships(ctx context.Context, userID string) ([]models.VenueMembership, error)
	GetVenue(ctx context.Context, id string) (*models.Venue, error)

	GetIntentByUserID(ctx context.Context, userID string) (*models.OrderIntent, error)
	SaveIntent(ctx context.Context, intent *models.OrderIntent) error
	SetPendingOrderID(ctx context.Context, userID, orderID string) (bool, error)
	CompleteIntent(ctx context.Context, userID string) (bool, error)
	ClearIntent(ctx context.Context, userID string) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string, limit int) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	MarkOrderRefunded(ctx context.Context, orderID, refundID string) error

	CreateFavorite(ctx context.Context, fav *models.Favorite) error
	GetFavoritesByUserID(ctx context.Context, userID string) ([]models.Favorite, error)
	AddRewardPoints(ctx context.Context, userID, category string, points int64) error
	GetRewards(ctx context.Context, userID string) ([]models.Reward, error)
}

// Locker narrows the window for concurrent confirmations of the same intent.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Publisher publishes order lifecycle events.
type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, order *models.Order, amountCents int64) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, status string) error
	PublishOrderRefunded(ctx context.Context, order *models.Order, refundID string) error
}

// OrderCache caches a user's recent order list.
type OrderCache interface {
	GetCachedOrders(ctx context.Context, userID string) ([]models.Order, error)
	CacheOrders(ctx context.Context, userID string, orders []models.Order, ttl time.Duration) error
	InvalidateOrders(ctx context.Context, userID string) error
}

// ConfirmationEngine turns a pending order intent into a finalized, paid
// order when its triggering event fires. The intent's post-status guard, the
// conditional write that flips it, and the capture idempotency key together
// make the engine safe under duplicate triggers and retries.
type ConfirmationEngine struct {
	store     Store
	provider  payment.Provider
	notifier  notify.Notifier
	locker    Locker
	cache     OrderCache
	publisher Publisher
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewConfirmationEngine creates a new confirmation engine
func NewConfirmationEngine(
	store Store,
	provider payment.Provider,
	notifier notify.Notifier,
	locker Locker,
	cache OrderCache,
	publisher Publisher,
	lockTTL time.Duration,
) *ConfirmationEngine {
	return &ConfirmationEngine{
		store:     store,
		provider:  provider,
		notifier:  notifier,
		locker:    locker,
		cache:     cache,
		publisher: publisher,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// ConfirmationResult reports the outcome of a confirmation attempt.
// AlreadyCompleted is true when the intent had been confirmed before and no
// new capture or side effect ran.
type ConfirmationResult struct {
	AlreadyCompleted bool   `json:"already_completed,omitempty"`
	OrderID          string `json:"order_id,omitempty"`
	CaptureID        string `json:"capture_id,omitempty"`
	AmountCents      int64  `json:"amount_cents,omitempty"`
}

type confirmTrigger struct {
	name    string // "geofence" or "seated"
	venueID string // seated only; must match the intent's venue
	tableNo int    // seated only
}

// ConfirmOnGeofence confirms the caller's on-approach intent after the client
// reported arrival at the venue. Seated intents are left untouched: their
// trigger is the check-in, so the call degrades to a successful no-op.
func (e *ConfirmationEngine) ConfirmOnGeofence(ctx context.Context, userID string) (*ConfirmationResult, error) {
	ctx, span := util.StartSpan(ctx, "ConfirmationEngine.ConfirmOnGeofence")
	defer span.End()

	return e.confirm(ctx, userID, confirmTrigger{name: "geofence"})
}

// ConfirmSeated confirms the caller's intent after a seated check-in at venueID.
func (e *ConfirmationEngine) ConfirmSeated(ctx context.Context, userID, venueID string, tableNo int) (*ConfirmationResult, error) {
	ctx, span := util.StartSpan(ctx, "ConfirmationEngine.ConfirmSeated")
	defer span.End()

	return e.confirm(ctx, userID, confirmTrigger{name: "seated", venueID: venueID, tableNo: tableNo})
}

func (e *ConfirmationEngine) confirm(ctx context.Context, userID string, trigger confirmTrigger) (*ConfirmationResult, error) {
	lockKey := "confirm:" + userID
	acquired, err := e.locker.AcquireLock(ctx, lockKey, e.lockTTL)
	if err != nil {
		// Redis being down must not block confirmations; the post-status
		// guard and the capture idempotency key still hold.
		e.logger.Warn("Confirmation lock unavailable", zap.Error(err))
	} else if !acquired {
		return nil, ErrConfirmationInProgress
	} else {
		defer func() {
			if err := e.locker.ReleaseLock(ctx, lockKey); err != nil {
				e.logger.Warn("Failed to release confirmation lock", zap.Error(err))
			}
		}()
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	intent, err := e.store.GetIntentByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent: %w", err)
	}
	if intent == nil || len(intent.Order.Items) == 0 {
		return nil, ErrNoCurrentOrder
	}

	if intent.PostStatus == models.PostStatusComplete {
		util.DuplicateConfirmationsTotal.Inc()
		e.logger.Info("Intent already completed, returning prior result",
			zap.String("user_id", userID),
			zap.String("order_id", intent.PendingOrderID))
		return &ConfirmationResult{AlreadyCompleted: true, OrderID: intent.PendingOrderID}, nil
	}

	if trigger.name == "geofence" && intent.OrderType != models.OrderTypeOnApproach {
		// Seated intents wait for the check-in.
		return &ConfirmationResult{}, nil
	}
	if trigger.name == "seated" && intent.Order.VenueID != trigger.venueID {
		return nil, ErrVenueMismatch
	}

	if intent.Order.SetupAuthorizationID == "" {
		util.ConfirmationsFailedTotal.WithLabelValues("missing_authorization").Inc()
		return nil, ErrMissingAuthorization
	}
	if intent.Order.VenuePayoutAccount == "" {
		util.ConfirmationsFailedTotal.WithLabelValues("missing_payout_account").Inc()
		return nil, ErrMissingPayoutAccount
	}

	// The order id doubles as the capture idempotency key. Mint it once and
	// persist it before the first capture call so a retried confirmation
	// reuses it instead of charging again. The persist is a conditional write;
	// losing it means a concurrent confirmation minted first, and capturing
	// under our own id would charge twice, so the persisted id wins.
	orderID := intent.PendingOrderID
	if orderID == "" {
		orderID = uuid.New().String()
		stuck, err := e.store.SetPendingOrderID(ctx, userID, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to persist pending order id: %w", err)
		}
		if !stuck {
			current, err := e.store.GetIntentByUserID(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload intent: %w", err)
			}
			if current == nil || current.PendingOrderID == "" {
				return nil, ErrNoCurrentOrder
			}
			if current.PostStatus == models.PostStatusComplete {
				util.DuplicateConfirmationsTotal.Inc()
				return &ConfirmationResult{AlreadyCompleted: true, OrderID: current.PendingOrderID}, nil
			}
			orderID = current.PendingOrderID
		}
	}

	amount := CaptureAmount(intent.Order.Items)

	util.CaptureAttemptsTotal.Inc()
	start := time.Now()
	captureID, err := e.provider.CaptureAuthorized(ctx, payment.CaptureRequest{
		AuthorizationID: intent.Order.SetupAuthorizationID,
		CustomerID:      user.StripeCustomerID,
		PayoutAccountID: intent.Order.VenuePayoutAccount,
		OrderID:         orderID,
		AmountCents:     amount,
	})
	util.CaptureLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		// No compensation: the order is never posted and the guard stays
		// pending, so the original request remains retryable.
		reason := "declined"
		if payment.Retryable(err) {
			reason = "provider_error"
		}
		util.CaptureFailedTotal.WithLabelValues(reason).Inc()
		util.ConfirmationsFailedTotal.WithLabelValues("capture_failed").Inc()
		e.logger.Warn("Payment capture failed",
			zap.String("user_id", userID),
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, err
	}
	util.CaptureSuccessTotal.Inc()

	order := buildOrder(intent, trigger, orderID, captureID)

	if err := e.store.CreateOrder(ctx, order); err != nil {
		// Fatal: the capture exists but the order does not. The guard is
		// still pending and the idempotency key is persisted, so a retry
		// coalesces on the provider side and lands here again.
		util.ConfirmationsFailedTotal.WithLabelValues("persist_failed").Inc()
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	util.OrdersPostedTotal.WithLabelValues(order.PaymentType).Inc()

	flipped, err := e.store.CompleteIntent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete intent: %w", err)
	}
	if !flipped {
		// A concurrent confirmation won the conditional write and owns the
		// fan-out. Report success without duplicating side effects.
		util.DuplicateConfirmationsTotal.Inc()
		return &ConfirmationResult{AlreadyCompleted: true, OrderID: orderID, CaptureID: captureID, AmountCents: amount}, nil
	}

	e.fanOut(ctx, user, intent, order, amount)

	util.ConfirmationsTotal.WithLabelValues(trigger.name).Inc()
	e.logger.Info("Order confirmed",
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
		zap.String("venue_id", order.VenueID),
		zap.Int64("amount_cents", amount))

	return &ConfirmationResult{OrderID: orderID, CaptureID: captureID, AmountCents: amount}, nil
}

// fanOut runs the post-confirmation enrichments. Every step is best-effort:
// the paid order must never look failed because a favorite, a reward grant or
// a notification did not go through.
func (e *ConfirmationEngine) fanOut(ctx context.Context, user *models.User, intent *models.OrderIntent, order *models.Order, amountCents int64) {
	for _, item := range intent.Order.Items {
		fav := &models.Favorite{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			VenueID:         order.VenueID,
			DishID:          item.DishID,
			OrderID:         order.ID,
			OrderType:       intent.OrderType,
			PaymentType:     order.PaymentType,
			PaymentDistance: intent.Order.PaymentDistance,
		}
		if err := e.store.CreateFavorite(ctx, fav); err != nil {
			util.FanoutFailuresTotal.WithLabelValues("favorite").Inc()
			e.logger.Error("Failed to add favorite",
				zap.String("order_id", order.ID),
				zap.String("dish_id", item.DishID),
				zap.Error(err))
		}
	}

	if err := e.store.AddRewardPoints(ctx, user.ID, models.RewardHighUser, models.HighUserPointsPerOrder); err != nil {
		util.FanoutFailuresTotal.WithLabelValues("rewards").Inc()
		e.logger.Error("Failed to grant reward points",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	e.notifyDevices(ctx, user.ID, orderSubmittedMessage(intent))

	if err := e.cache.InvalidateOrders(ctx, user.ID); err != nil {
		e.logger.Warn("Failed to invalidate order cache",
			zap.String("user_id", user.ID),
			zap.Error(err))
	}

	if err := e.publisher.PublishOrderConfirmed(ctx, order, amountCents); err != nil {
		util.FanoutFailuresTotal.WithLabelValues("publish").Inc()
		e.logger.Error("Failed to publish OrderConfirmed event",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func (e *ConfirmationEngine) notifyDevices(ctx context.Context, userID, message string) {
	devices, err := e.store.GetDevices(ctx, userID)
	if err != nil {
		util.FanoutFailuresTotal.WithLabelValues("notification").Inc()
		e.logger.Error("Failed to load devices", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if len(devices) == 0 {
		return
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.PushToken)
	}

	if err := e.notifier.Send(ctx, tokens, message); err != nil {
		util.FanoutFailuresTotal.WithLabelValues("notification").Inc()
		e.logger.Error("Failed to send push notification",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func buildOrder(intent *models.OrderIntent, trigger confirmTrigger, orderID, captureID string) *models.Order {
	order := &models.Order{
		ID:            orderID,
		VenueID:       intent.Order.VenueID,
		UserID:        intent.UserID,
		PaymentIntent: captureID,
		Date:          time.Now().UTC().Format(time.RFC3339),
	}

	if trigger.name == "seated" {
		order.PaymentType = models.PaymentTypeImmediate
		order.Status = models.OrderStatusWaiting
		order.TableNo = trigger.tableNo
		if order.TableNo == 0 {
			order.TableNo = intent.Order.TableNo
		}
	} else {
		order.PaymentType = models.PaymentTypeOnApproach
		order.Status = models.OrderStatusPendingOnApproach
	}

	order.Items = make([]models.OrderItem, 0, len(intent.Order.Items))
	for _, item := range intent.Order.Items {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:    orderID,
			DishID:     item.DishID,
			DishName:   item.DishName,
			PriceCents: unitPriceCents(item),
			Quantity:   item.Quantity,
		})
	}
	return order
}

// CaptureAmount computes the capture total in cents: the sum over line items
// of unit price times quantity, where the unit price is the item's total
// price when present and the price of its first listed size otherwise.
// Rounding to cents happens once, on the final sum.
func CaptureAmount(items []models.IntentItem) int64 {
	var total float64
	for _, item := range items {
		total += unitPrice(item) * float64(item.Quantity)
	}
	return int64(math.Round(total * 100))
}

func unitPrice(item models.IntentItem) float64 {
	if item.TotalPrice != 0 {
		return item.TotalPrice
	}
	if len(item.Sizes) > 0 {
		if p, err := strconv.ParseFloat(item.Sizes[0].Price, 64); err == nil {
			return p
		}
	}
	return 0
}

func unitPriceCents(item models.IntentItem) int64 {
	return int64(math.Round(unitPrice(item) * 100))
}

func orderSubmittedMessage(intent *models.OrderIntent) string {
	names := make([]string, 0, len(intent.Order.Items))
	for _, item := range intent.Order.Items {
		names = append(names, item.DishName)
	}
	return fmt.Sprintf(
		"Your order of %s at %s has been submitted to the venue! You'll receive another notification when your order is completed.",
		strings.Join(names, " & "), intent.Order.VenueName)
}
