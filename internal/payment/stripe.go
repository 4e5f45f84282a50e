package payment

import (
	"context"
	"errors"

	"venue-order-service/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeProvider implements Provider against the Stripe API. The client is
// constructed once at process start and injected; there is no lazy global.
type StripeProvider struct {
	api      *client.API
	currency string
	logger   *zap.Logger
}

// NewStripeProvider creates a Stripe-backed payment provider
func NewStripeProvider(secretKey, currency string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeProvider{
		api:      api,
		currency: currency,
		logger:   util.GetLogger(),
	}
}

// CaptureAuthorized retrieves the setup authorization, then creates an
// off-session auto-confirmed payment intent against its payment method.
func (p *StripeProvider) CaptureAuthorized(ctx context.Context, req CaptureRequest) (string, error) {
	si, err := p.api.SetupIntents.Get(req.AuthorizationID, &stripe.SetupIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return "", classifyRetrieveError(err)
	}

	if si.PaymentMethod == nil || si.PaymentMethod.ID == "" {
		return "", ErrNoPaymentMethod
	}

	params := &stripe.PaymentIntentParams{
		Params:        stripe.Params{Context: ctx},
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(p.currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(si.PaymentMethod.ID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.PayoutAccountID),
		},
		TransferGroup: stripe.String(req.OrderID),
	}
	// The order id is minted once per intent, so a retried capture reuses the
	// same key and Stripe coalesces it instead of charging twice.
	params.SetIdempotencyKey("capture-" + req.OrderID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", classifyCaptureError(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", &DeclinedError{Status: string(pi.Status)}
	}

	p.logger.Info("Payment captured",
		zap.String("order_id", req.OrderID),
		zap.String("capture_id", pi.ID),
		zap.Int64("amount_cents", req.AmountCents))

	return pi.ID, nil
}

// Refund refunds a captured payment intent
func (p *StripeProvider) Refund(ctx context.Context, captureID string) (string, error) {
	refund, err := p.api.Refunds.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(captureID),
	})
	if err != nil {
		return "", classifyCaptureError(err)
	}
	return refund.ID, nil
}

// ListCardPaymentMethods lists saved card payment method ids for a customer
func (p *StripeProvider) ListCardPaymentMethods(ctx context.Context, customerID string) ([]string, error) {
	iter := p.api.PaymentMethods.List(&stripe.PaymentMethodListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Customer:   stripe.String(customerID),
		Type:       stripe.String("card"),
	})

	var ids []string
	for iter.Next() {
		ids = append(ids, iter.PaymentMethod().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, &ProviderError{Err: err}
	}
	return ids, nil
}

func classifyRetrieveError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) && sErr.Code == stripe.ErrorCodeResourceMissing {
		return ErrAuthorizationNotFound
	}
	return &ProviderError{Err: err}
}

func classifyCaptureError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return &DeclinedError{Status: string(sErr.Code)}
		}
	}
	return &ProviderError{Err: err}
}
