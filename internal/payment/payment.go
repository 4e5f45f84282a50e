package payment

import (
	"context"
	"errors"
	"fmt"
)

// Validation failures on the authorization itself. Neither is retryable: the
// client has to collect a new payment method before trying again.
var (
	ErrAuthorizationNotFound = errors.New("payment authorization not found")
	ErrNoPaymentMethod       = errors.New("no payment method attached to authorization")
)

// DeclinedError is a terminal business decline from the provider, e.g. a card
// refused or a capture that settled in a non-succeeded status. Not retryable.
type DeclinedError struct {
	Status string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment not succeeded: %s", e.Status)
}

// ProviderError is a transport or API failure before any capture outcome was
// observed. The caller may retry; the idempotency key on the capture request
// guarantees the provider coalesces a duplicate attempt.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is a transient provider failure rather than a
// business decline or validation failure.
func Retryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// CaptureRequest describes a single off-session capture against a previously
// created setup authorization. OrderID is minted once per logical intent and
// serves as both the transfer group and the idempotency key, so a duplicate
// call can never charge twice.
type CaptureRequest struct {
	AuthorizationID string
	CustomerID      string
	PayoutAccountID string
	OrderID         string
	AmountCents     int64
}

// Provider is the single external payment-authorization-and-capture capability
// the confirmation engine orchestrates around.
type Provider interface {
	// CaptureAuthorized charges the payment method attached to the setup
	// authorization and routes funds to the venue's payout account. Returns
	// the capture reference on success.
	CaptureAuthorized(ctx context.Context, req CaptureRequest) (string, error)

	// Refund refunds a previously captured payment. Returns the refund id.
	Refund(ctx context.Context, captureID string) (string, error)

	// ListCardPaymentMethods lists the ids of card payment methods saved for
	// a customer.
	ListCardPaymentMethods(ctx context.Context, customerID string) ([]string, error)
}
