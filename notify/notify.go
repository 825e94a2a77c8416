// Package notify delivers core events to the outside: browsers on the websocket hub,
// RabbitMQ consumers, WhatsApp and e-mail recipients, and prometheus.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"floorops/logger"
	"floorops/models"
	"floorops/services"
)

// Multi publishes every event to all sinks and joins their errors.
type Multi []services.Notifier

func (m Multi) Publish(ctx context.Context, e models.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async hands events to a slow sink on a goroutine so the caller never waits on an
// SMTP or HTTP round-trip. Delivery errors are logged.
type Async struct {
	Sink    services.Notifier
	Log     *logger.Logger
	Timeout time.Duration
}

func (a Async) Publish(ctx context.Context, e models.Event) error {
	timeout := a.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	requestID := logger.RequestID(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(logger.WithRequestID(context.Background(), requestID), timeout)
		defer cancel()
		if err := a.Sink.Publish(ctx, e); err != nil {
			a.Log.Error(ctx, "event_delivery_failed", "async sink failed", err, slog.String("event", e.Name))
		}
	}()
	return nil
}

// LogSink writes every event as a debug line.
type LogSink struct {
	Log *logger.Logger
}

func (l LogSink) Publish(ctx context.Context, e models.Event) error {
	l.Log.Debug(ctx, "event", e.Name, slog.Any("dados", e.Payload))
	return nil
}

// Only forwards the named events to Sink and drops the rest.
func Only(sink services.Notifier, names ...string) services.Notifier {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return filtered{sink: sink, names: set}
}

type filtered struct {
	sink  services.Notifier
	names map[string]bool
}

func (f filtered) Publish(ctx context.Context, e models.Event) error {
	if !f.names[e.Name] {
		return nil
	}
	return f.sink.Publish(ctx, e)
}
