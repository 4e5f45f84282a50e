package service

import (
	"context"
	"testing"
	"time"

	"venue-order-service/internal/models"
	"venue-order-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	store     *fakeStore
	provider  *fakeProvider
	notifier  *fakeNotifier
	cache     *fakeCache
	publisher *fakePublisher
	svc       *OrderService
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		store:     newFakeStore(),
		provider:  &fakeProvider{},
		notifier:  &fakeNotifier{},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
	}
	f.svc = NewOrderService(f.store, f.provider, f.notifier, f.cache, f.publisher, time.Minute)
	return f
}

func (f *orderFixture) seedOrder() *models.Order {
	order := &models.Order{
		ID:            "order-1",
		VenueID:       "venue-1",
		UserID:        "customer-1",
		PaymentType:   models.PaymentTypeOnApproach,
		Status:        models.OrderStatusPendingOnApproach,
		PaymentIntent: "pi_1",
	}
	f.store.orders[order.ID] = order
	return order
}

func TestSaveCurrentOrder(t *testing.T) {
	f := newOrderFixture()

	order := models.IntentOrder{
		VenueID:              "venue-1",
		VenueName:            "Trattoria Uno",
		VenuePayoutAccount:   "acct_1",
		SetupAuthorizationID: "seti_1",
		Items:                []models.IntentItem{{DishID: "dish-1", DishName: "Margherita", TotalPrice: 12.00, Quantity: 2}},
	}

	err := f.svc.SaveCurrentOrder(context.Background(), "customer-1", models.OrderTypeOnApproach, order)
	require.NoError(t, err)

	intent := f.store.intents["customer-1"]
	require.NotNil(t, intent)
	assert.Equal(t, models.PostStatusPending, intent.PostStatus)
	assert.Equal(t, models.GeofencingIncomplete, intent.Geofencing)
	assert.Empty(t, intent.PendingOrderID)
	assert.Equal(t, "venue-1", intent.Order.VenueID)

	// Replacing the intent resets the guard for the new order.
	intent.PostStatus = models.PostStatusComplete
	intent.PendingOrderID = "old-order"
	err = f.svc.SaveCurrentOrder(context.Background(), "customer-1", models.OrderTypeSeated, order)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, f.store.intents["customer-1"].PostStatus)
	assert.Empty(t, f.store.intents["customer-1"].PendingOrderID)
}

func TestSaveCurrentOrderValidation(t *testing.T) {
	f := newOrderFixture()

	valid := models.IntentOrder{
		VenueID: "venue-1",
		Items:   []models.IntentItem{{DishID: "dish-1", TotalPrice: 12.00, Quantity: 1}},
	}

	err := f.svc.SaveCurrentOrder(context.Background(), "customer-1", "takeaway", valid)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	noItems := valid
	noItems.Items = nil
	err = f.svc.SaveCurrentOrder(context.Background(), "customer-1", models.OrderTypeSeated, noItems)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	noVenue := valid
	noVenue.VenueID = ""
	err = f.svc.SaveCurrentOrder(context.Background(), "customer-1", models.OrderTypeSeated, noVenue)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	badQty := valid
	badQty.Items = []models.IntentItem{{DishID: "dish-1", TotalPrice: 12.00, Quantity: 0}}
	err = f.svc.SaveCurrentOrder(context.Background(), "customer-1", models.OrderTypeSeated, badQty)
	assert.ErrorIs(t, err, ErrInvalidIntent)

	assert.Empty(t, f.store.intents)
}

func TestUpdateOrderStatusByVenueMember(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.memberships["staff-1"] = []models.VenueMembership{{UserID: "staff-1", VenueID: "venue-1", Role: "staff"}}
	f.store.devices["customer-1"] = []models.Device{{UserID: "customer-1", Name: "phone", PushToken: "ExponentPushToken[abc]"}}

	err := f.svc.UpdateOrderStatus(context.Background(), "staff-1", "order-1", models.OrderStatusComplete, "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusComplete, f.store.orders["order-1"].Status)
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, "Your order is ready!", f.notifier.messages[0])
	assert.Equal(t, []string{"order-1"}, f.publisher.statusChanged)
	assert.Equal(t, []string{"customer-1"}, f.cache.invalidated)
}

func TestUpdateOrderStatusCustomMessage(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.memberships["staff-1"] = []models.VenueMembership{{UserID: "staff-1", VenueID: "venue-1"}}
	f.store.devices["customer-1"] = []models.Device{{PushToken: "ExponentPushToken[abc]"}}

	err := f.svc.UpdateOrderStatus(context.Background(), "staff-1", "order-1", models.OrderStatusComplete, "Table 4 is up")
	require.NoError(t, err)
	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, "Table 4 is up", f.notifier.messages[0])
}

func TestUpdateOrderStatusMemberOfOtherVenueDenied(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.memberships["staff-1"] = []models.VenueMembership{{UserID: "staff-1", VenueID: "venue-2"}}

	err := f.svc.UpdateOrderStatus(context.Background(), "staff-1", "order-1", models.OrderStatusWaiting, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, models.OrderStatusPendingOnApproach, f.store.orders["order-1"].Status)
}

func TestUpdateOrderStatusOwnerWithoutMemberships(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	err := f.svc.UpdateOrderStatus(context.Background(), "customer-1", "order-1", models.OrderStatusExpired, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusExpired, f.store.orders["order-1"].Status)
}

func TestUpdateOrderStatusStrangerDenied(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	err := f.svc.UpdateOrderStatus(context.Background(), "someone-else", "order-1", models.OrderStatusWaiting, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateOrderStatusRejectsInvalidStatus(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	err := f.svc.UpdateOrderStatus(context.Background(), "customer-1", "order-1", "BOGUS", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// REFUNDED is set by the refund path, never directly.
	err = f.svc.UpdateOrderStatus(context.Background(), "customer-1", "order-1", models.OrderStatusRefunded, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateOrderStatusNoDevicesIsStillSuccess(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.memberships["staff-1"] = []models.VenueMembership{{UserID: "staff-1", VenueID: "venue-1"}}

	err := f.svc.UpdateOrderStatus(context.Background(), "staff-1", "order-1", models.OrderStatusComplete, "")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sends)
	assert.Equal(t, models.OrderStatusComplete, f.store.orders["order-1"].Status)
}

func TestRefundByVenueOwner(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.venues["venue-1"] = &models.Venue{ID: "venue-1", OwnerID: "owner-1", PayoutAccountID: "acct_1"}

	refundID, err := f.svc.Refund(context.Background(), "owner-1", "venue-1", "order-1")
	require.NoError(t, err)

	assert.Equal(t, "re_1", refundID)
	assert.Equal(t, []string{"pi_1"}, f.provider.refunds)
	assert.Equal(t, models.OrderStatusRefunded, f.store.orders["order-1"].Status)
	assert.Equal(t, "re_1", f.store.orders["order-1"].RefundID)
	assert.Equal(t, []string{"order-1"}, f.publisher.refunded)
}

func TestRefundNotOwnerDenied(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()
	f.store.venues["venue-1"] = &models.Venue{ID: "venue-1", OwnerID: "owner-1"}

	_, err := f.svc.Refund(context.Background(), "staff-1", "venue-1", "order-1")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Empty(t, f.provider.refunds)
}

func TestRefundUnknownVenue(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	_, err := f.svc.Refund(context.Background(), "owner-1", "venue-404", "order-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefundWithoutCaptureReference(t *testing.T) {
	f := newOrderFixture()
	order := f.seedOrder()
	order.PaymentIntent = ""
	f.store.venues["venue-1"] = &models.Venue{ID: "venue-1", OwnerID: "owner-1"}

	_, err := f.svc.Refund(context.Background(), "owner-1", "venue-1", "order-1")
	assert.ErrorIs(t, err, ErrNoCaptureReference)
	assert.Empty(t, f.provider.refunds)
}

func TestCancelCurrentOrder(t *testing.T) {
	f := newOrderFixture()
	f.store.users["customer-1"] = &models.User{ID: "customer-1", StripeCustomerID: "cus_1"}
	f.store.intents["customer-1"] = &models.OrderIntent{UserID: "customer-1", PostStatus: models.PostStatusPending}
	f.provider.methods = []string{"pm_1"}

	err := f.svc.CancelCurrentOrder(context.Background(), "customer-1")
	require.NoError(t, err)
	assert.NotContains(t, f.store.intents, "customer-1")
}

func TestCancelCurrentOrderWithoutCustomerRecord(t *testing.T) {
	f := newOrderFixture()
	f.store.users["customer-1"] = &models.User{ID: "customer-1"}
	f.store.intents["customer-1"] = &models.OrderIntent{UserID: "customer-1"}
	f.provider.listErr = assert.AnError

	// No Stripe customer means the provider is never consulted.
	err := f.svc.CancelCurrentOrder(context.Background(), "customer-1")
	require.NoError(t, err)
	assert.NotContains(t, f.store.intents, "customer-1")
}

func TestListOrdersCachesResult(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	orders, err := f.svc.ListOrders(context.Background(), "customer-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// Later writes are invisible until the cache entry is invalidated.
	f.store.orders["order-2"] = &models.Order{ID: "order-2", UserID: "customer-1"}
	orders, err = f.svc.ListOrders(context.Background(), "customer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestGetOrderOwnerOnly(t *testing.T) {
	f := newOrderFixture()
	f.seedOrder()

	order, err := f.svc.GetOrder(context.Background(), "customer-1", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)

	_, err = f.svc.GetOrder(context.Background(), "someone-else", "order-1")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.svc.GetOrder(context.Background(), "customer-1", "order-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterDevice(t *testing.T) {
	f := newOrderFixture()

	require.NoError(t, f.svc.RegisterDevice(context.Background(), "customer-1", "phone", "ExponentPushToken[abc]"))
	require.Len(t, f.store.devices["customer-1"], 1)

	// Same device name refreshes the token in place.
	require.NoError(t, f.svc.RegisterDevice(context.Background(), "customer-1", "phone", "ExponentPushToken[def]"))
	require.Len(t, f.store.devices["customer-1"], 1)
	assert.Equal(t, "ExponentPushToken[def]", f.store.devices["customer-1"][0].PushToken)
}

func TestRegisterDeviceEmptyTokenIsNoop(t *testing.T) {
	f := newOrderFixture()
	require.NoError(t, f.svc.RegisterDevice(context.Background(), "customer-1", "phone", ""))
	assert.Empty(t, f.store.devices["customer-1"])
}

func TestNotifyUserWithoutDevicesIsNoop(t *testing.T) {
	f := newOrderFixture()
	f.notifier.err = assert.AnError

	err := f.svc.NotifyUser(context.Background(), "customer-1", "hello")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sends)
}

func TestNotifyUserSendsToAllDevices(t *testing.T) {
	f := newOrderFixture()
	f.store.devices["customer-1"] = []models.Device{
		{PushToken: "ExponentPushToken[a]"},
		{PushToken: "ExponentPushToken[b]"},
	}

	err := f.svc.NotifyUser(context.Background(), "customer-1", "hello")
	require.NoError(t, err)
	require.Len(t, f.notifier.sends, 1)
	assert.Len(t, f.notifier.sends[0], 2)
}
