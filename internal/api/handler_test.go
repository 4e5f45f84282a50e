package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"venue-order-service/internal/payment"
	"venue-order-service/internal/service"
	"venue-order-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestConfirmationErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{}

	tests := []struct {
		name     string
		err      error
		geofence bool
		want     int
	}{
		{"no current order", service.ErrNoCurrentOrder, true, http.StatusPaymentRequired},
		{"missing authorization", service.ErrMissingAuthorization, true, http.StatusPaymentRequired},
		{"missing payout account", service.ErrMissingPayoutAccount, true, http.StatusPaymentRequired},
		{"geofence venue mismatch", service.ErrVenueMismatch, true, http.StatusForbidden},
		{"seated venue mismatch", service.ErrVenueMismatch, false, http.StatusPaymentRequired},
		{"authorization not found", payment.ErrAuthorizationNotFound, true, http.StatusPaymentRequired},
		{"no payment method", payment.ErrNoPaymentMethod, false, http.StatusPaymentRequired},
		{"declined", &payment.DeclinedError{Status: "requires_payment_method"}, true, http.StatusPaymentRequired},
		{"confirmation in progress", service.ErrConfirmationInProgress, true, http.StatusConflict},
		{"not found", store.ErrNotFound, true, http.StatusNotFound},
		{"transient provider failure", &payment.ProviderError{Err: errors.New("timeout")}, true, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), true, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			h.confirmationError(c, tt.err, tt.geofence)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
