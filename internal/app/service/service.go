package service

import (
	"context"
	"time"

	"code_duel/internal/domain/model"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"go.uber.org/zap"
)

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Enqueuer hands a submission id to the judge workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, submissionID string) error
}

// publish is best effort: a lost notification never fails the state change
// that produced it.
func publish(ctx context.Context, n notify.Notifier, ev model.Event) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, ev); err != nil {
		logger.L().Warn("event_publish_failed",
			zap.String("topic", ev.Topic),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
	}
}
