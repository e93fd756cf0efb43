package util

import (
	"context"
	"time"

	"github.com/GoDataGuard/go-data-guard/models"
)

// PublishEventAsync publishes an event asynchronously without blocking the
// caller. If the event bus is nil, it safely returns. Publish failures are
// logged but never returned: events are telemetry, not part of the request
// contract.
func PublishEventAsync(eventBus models.EventBus, logger models.Logger, event models.Event) {
	if eventBus == nil {
		return
	}

	go func(evt models.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := eventBus.Publish(ctx, evt); err != nil {
			if logger != nil {
				logger.Error("failed to publish event asynchronously",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"error", err,
				)
			}
		}
	}(event)
}
