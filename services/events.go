package services

import (
	"context"
	"log/slog"
	"time"

	"floorops/logger"
	"floorops/models"
)

func publish(ctx context.Context, n Notifier, log *logger.Logger, now time.Time, name string, payload map[string]interface{}) {
	if n == nil {
		return
	}
	err := n.Publish(ctx, models.Event{Name: name, Payload: payload, Timestamp: now})
	if err != nil && log != nil {
		log.Error(ctx, "event_publish_failed", "failed to publish event", err, slog.String("event", name))
	}
}
