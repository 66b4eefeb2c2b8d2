// Package notify publishes "state changed" events for the realtime relay.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"code_duel/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

type Notifier interface {
	Publish(ctx context.Context, ev model.Event) error
}

// RedisNotifier PUBLISHes each event as JSON on channel prefix+topic.
type RedisNotifier struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisNotifier(rdb *redis.Client, prefix string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, prefix: prefix}
}

func (n *RedisNotifier) Publish(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.prefix+ev.Topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
