package api

import (
	"errors"
	"net/http"
	"time"

	"venue-order-service/internal/models"
	"venue-order-service/internal/payment"
	"venue-order-service/internal/service"
	"venue-order-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	engine   *service.ConfirmationEngine
	orders   *service.OrderService
	verifier TokenVerifier
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *service.ConfirmationEngine, orders *service.OrderService, verifier TokenVerifier) *Handler {
	return &Handler{
		engine:   engine,
		orders:   orders,
		verifier: verifier,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/", authMiddleware(h.verifier))
	{
		auth.PUT("/current-order", h.saveCurrentOrder)
		auth.GET("/complete-geofencing", h.completeGeofencing)
		auth.POST("/seated-pay-post", h.seatedPayPost)
		auth.GET("/cancel-current-order", h.cancelCurrentOrder)
		auth.PUT("/order/:orderId", h.updateOrderStatus)
		auth.POST("/refund", h.refund)
		auth.GET("/orders", h.listOrders)
		auth.GET("/order-status/:orderId", h.getOrderStatus)
		auth.GET("/favourites", h.listFavourites)
		auth.GET("/rewards", h.listRewards)
		auth.POST("/device", h.registerDevice)
		auth.POST("/user-notify", h.notifyUser)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type saveCurrentOrderRequest struct {
	OrderType string             `json:"orderType" binding:"required"`
	Order     models.IntentOrder `json:"order" binding:"required"`
}

// saveCurrentOrder creates or replaces the caller's pending order intent
func (h *Handler) saveCurrentOrder(c *gin.Context) {
	var req saveCurrentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.SaveCurrentOrder(c.Request.Context(), principal(c), req.OrderType, req.Order); err != nil {
		if errors.Is(err, service.ErrInvalidIntent) {
			c.String(http.StatusBadRequest, "Error %s", err.Error())
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// completeGeofencing confirms the caller's on-approach order after arrival.
// Already-completed intents report success without a second capture.
func (h *Handler) completeGeofencing(c *gin.Context) {
	result, err := h.engine.ConfirmOnGeofence(c.Request.Context(), principal(c))
	if err != nil {
		h.confirmationError(c, err, true)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": result.OrderID})
}

type seatedPayPostRequest struct {
	BizID   string `json:"bizId" binding:"required"`
	TableNo int    `json:"tableNo"`
}

// seatedPayPost confirms the caller's order on a seated check-in
func (h *Handler) seatedPayPost(c *gin.Context) {
	var req seatedPayPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.engine.ConfirmSeated(c.Request.Context(), principal(c), req.BizID, req.TableNo)
	if err != nil {
		h.confirmationError(c, err, false)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": result.OrderID})
}

// confirmationError maps confirmation failures onto the HTTP surface. All
// validation and business failures are 402s with a textual reason; the
// geofencing route reports a venue mismatch as 403 instead.
func (h *Handler) confirmationError(c *gin.Context, err error, geofence bool) {
	var declined *payment.DeclinedError

	switch {
	case geofence && errors.Is(err, service.ErrVenueMismatch):
		c.String(http.StatusForbidden, "Error %s", err.Error())
	case errors.Is(err, service.ErrNoCurrentOrder),
		errors.Is(err, service.ErrVenueMismatch),
		errors.Is(err, service.ErrMissingAuthorization),
		errors.Is(err, service.ErrMissingPayoutAccount),
		errors.Is(err, payment.ErrAuthorizationNotFound),
		errors.Is(err, payment.ErrNoPaymentMethod),
		errors.As(err, &declined):
		c.String(http.StatusPaymentRequired, "Error %s", err.Error())
	case errors.Is(err, service.ErrConfirmationInProgress):
		c.String(http.StatusConflict, "Error %s", err.Error())
	case errors.Is(err, store.ErrNotFound):
		c.String(http.StatusNotFound, "Error %s", err.Error())
	case payment.Retryable(err):
		// No capture happened; the client may retry the same request.
		c.String(http.StatusBadGateway, "Error %s", err.Error())
	default:
		c.String(http.StatusInternalServerError, "Error %s", err.Error())
	}
}

// cancelCurrentOrder clears the caller's pending intent
func (h *Handler) cancelCurrentOrder(c *gin.Context) {
	if err := h.orders.CancelCurrentOrder(c.Request.Context(), principal(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.String(http.StatusNotFound, "Error %s", err.Error())
			return
		}
		c.String(http.StatusPaymentRequired, "Error %s", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updateOrderStatusRequest struct {
	OrderStatus string `json:"orderStatus" binding:"required"`
	Message     string `json:"message"`
}

// updateOrderStatus advances an order through the venue lifecycle
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.orders.UpdateOrderStatus(c.Request.Context(), principal(c), c.Param("orderId"), req.OrderStatus, req.Message)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, service.ErrAccessDenied):
		c.String(http.StatusForbidden, "Error %s", err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		c.String(http.StatusBadRequest, "Error %s", err.Error())
	case errors.Is(err, store.ErrNotFound):
		c.String(http.StatusNotFound, "Error %s", err.Error())
	default:
		c.String(http.StatusInternalServerError, "Error %s", err.Error())
	}
}

type refundRequest struct {
	BizID   string `json:"bizId" binding:"required"`
	OrderID string `json:"orderId" binding:"required"`
}

// refund refunds a captured order on behalf of the venue owner
func (h *Handler) refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"refunded": false, "error": err.Error()})
		return
	}

	refundID, err := h.orders.Refund(c.Request.Context(), principal(c), req.BizID, req.OrderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"refunded": true, "refundId": refundID})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusUnauthorized, gin.H{"refunded": false, "error": err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrNoCaptureReference):
		c.JSON(http.StatusNotFound, gin.H{"refunded": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"refunded": false, "error": err.Error()})
	}
}

// listOrders returns the caller's recent orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), principal(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrderStatus returns one of the caller's orders with its items
func (h *Handler) getOrderStatus(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), principal(c), c.Param("orderId"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"order": order})
	case errors.Is(err, service.ErrAccessDenied):
		c.String(http.StatusForbidden, "Error %s", err.Error())
	case errors.Is(err, store.ErrNotFound):
		c.String(http.StatusNotFound, "Error %s", err.Error())
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// listFavourites returns the caller's favorite records
func (h *Handler) listFavourites(c *gin.Context) {
	favourites, err := h.orders.ListFavorites(c.Request.Context(), principal(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list favourites", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favourites": favourites})
}

// listRewards returns the caller's reward balances
func (h *Handler) listRewards(c *gin.Context) {
	rewards, err := h.orders.ListRewards(c.Request.Context(), principal(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rewards", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

type registerDeviceRequest struct {
	DeviceName string `json:"deviceName" binding:"required"`
	PushToken  string `json:"pushToken"`
}

// registerDevice registers a push device for the caller
func (h *Handler) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.RegisterDevice(c.Request.Context(), principal(c), req.DeviceName, req.PushToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, true)
}

type notifyUserRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// notifyUser pushes a message to another user's devices (venue-side use)
func (h *Handler) notifyUser(c *gin.Context) {
	var req notifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.NotifyUser(c.Request.Context(), req.UserID, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to notify user", "details": err.Error()})
		return
	}
	c.String(http.StatusOK, "ok")
}
