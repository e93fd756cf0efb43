package compliance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GoDataGuard/go-data-guard/models"
)

// Notifier is the outbound notification service collaborator. The engine
// never sends email itself; it publishes the erasure event and a registered
// notifier reacts to it.
type Notifier interface {
	SendErasureConfirmation(ctx context.Context, userID string) error
}

// RegisterNotifier subscribes the notifier to erasure-completed events.
// Notification failures are logged, never surfaced to the erasure caller.
func RegisterNotifier(bus models.EventBus, notifier Notifier, logger models.Logger) (models.SubscriptionID, error) {
	if bus == nil {
		return 0, fmt.Errorf("event bus is required")
	}
	if notifier == nil {
		return 0, fmt.Errorf("notifier is required")
	}

	return bus.Subscribe(EventErasureCompleted, func(ctx context.Context, event models.Event) error {
		var payload ErasureCompletedEvent
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			logger.Error("failed to decode erasure event", "error", err)
			return nil
		}

		if err := notifier.SendErasureConfirmation(ctx, payload.UserID); err != nil {
			logger.Error("failed to send erasure confirmation",
				"user_id", payload.UserID,
				"error", err,
			)
		}
		return nil
	})
}
