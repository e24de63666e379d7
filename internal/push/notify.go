package push

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-crowd-planner/app/observability/metrics"
)

const notifyTimeout = 2 * time.Second

// Notify publishes without letting the caller observe the outcome. Failures are logged and counted.
// The publish is detached from ctx cancellation so a finished request does not abort it.
func Notify(ctx context.Context, pub Publisher, logger *slog.Logger, room, event string, payload any) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := pub.Publish(ctx, room, event, payload); err != nil {
		logger.WarnContext(ctx, "Push event not delivered",
			slog.String("room", room),
			slog.String("event", event),
			slog.Any("error", err))
		metrics.Get().PushPublishFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	}
}
