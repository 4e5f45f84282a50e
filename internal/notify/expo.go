package notify

import (
	"context"
	"fmt"

	"venue-order-service/internal/util"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
)

// Notifier delivers a push message to a set of device tokens. Delivery is
// best-effort; callers log failures and move on.
type Notifier interface {
	Send(ctx context.Context, pushTokens []string, message string) error
}

// ExpoNotifier sends push notifications through the Expo push service,
// filtering out tokens that are not valid Expo push tokens before sending.
type ExpoNotifier struct {
	client *expo.PushClient
	logger *zap.Logger
}

// NewExpoNotifier creates a new Expo-backed notifier
func NewExpoNotifier() *ExpoNotifier {
	return &ExpoNotifier{
		client: expo.NewPushClient(nil),
		logger: util.GetLogger(),
	}
}

// Send pushes message to every valid token. Invalid tokens are logged and
// skipped; zero valid tokens is a no-op, not an error.
func (n *ExpoNotifier) Send(ctx context.Context, pushTokens []string, message string) error {
	tokens := make([]expo.ExponentPushToken, 0, len(pushTokens))
	for _, raw := range pushTokens {
		token, err := expo.NewExponentPushToken(raw)
		if err != nil {
			n.logger.Warn("Skipping invalid push token", zap.String("token", raw))
			continue
		}
		tokens = append(tokens, token)
	}

	if len(tokens) == 0 {
		return nil
	}

	resp, err := n.client.Publish(&expo.PushMessage{
		To:       tokens,
		Body:     message,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	})
	if err != nil {
		return fmt.Errorf("failed to publish push notification: %w", err)
	}

	if err := resp.ValidateResponse(); err != nil {
		return fmt.Errorf("push notification rejected: %w", err)
	}

	util.NotificationsSentTotal.Add(float64(len(tokens)))
	return nil
}
