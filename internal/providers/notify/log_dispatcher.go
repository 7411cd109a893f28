package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher records events on the structured log. Deployments that
// deliver email or push swap in their own Dispatcher implementation.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.Named("notify")}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event) {
	d.log.Info("notification dispatched",
		zap.String("event", event.Type),
		zap.String("payee", event.Payee.String()),
		zap.String("target_id", event.TargetID.String()),
		zap.Any("metadata", event.Metadata),
	)
}
