package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v76"
)

func TestClassifyRetrieveError(t *testing.T) {
	missing := &stripe.Error{Code: stripe.ErrorCodeResourceMissing}
	assert.ErrorIs(t, classifyRetrieveError(missing), ErrAuthorizationNotFound)

	transport := errors.New("connection reset")
	err := classifyRetrieveError(transport)
	assert.True(t, Retryable(err))
	assert.ErrorIs(t, err, transport)
}

func TestClassifyCaptureError(t *testing.T) {
	cardErr := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}
	err := classifyCaptureError(cardErr)

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.False(t, Retryable(err))
	assert.Equal(t, string(stripe.ErrorCodeCardDeclined), declined.Status)

	badRequest := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest}
	assert.ErrorAs(t, classifyCaptureError(badRequest), &declined)

	apiErr := &stripe.Error{Type: stripe.ErrorTypeAPI}
	assert.True(t, Retryable(classifyCaptureError(apiErr)))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(ErrNoPaymentMethod))
	assert.False(t, Retryable(ErrAuthorizationNotFound))
	assert.False(t, Retryable(&DeclinedError{Status: "requires_payment_method"}))
	assert.True(t, Retryable(&ProviderError{Err: errors.New("timeout")}))

	wrapped := &ProviderError{Err: errors.New("timeout")}
	assert.True(t, Retryable(errors.Join(errors.New("context"), wrapped)))
}
