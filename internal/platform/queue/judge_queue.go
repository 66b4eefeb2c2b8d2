package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JudgeQueue is a Redis list of submission ids awaiting evaluation.
// Producers LPUSH and workers BRPOP, so ids are served oldest first.
type JudgeQueue struct {
	rdb  *redis.Client
	name string
}

func NewJudgeQueue(rdb *redis.Client, name string) *JudgeQueue {
	return &JudgeQueue{rdb: rdb, name: name}
}

func (q *JudgeQueue) Name() string { return q.name }

func (q *JudgeQueue) Enqueue(ctx context.Context, submissionID string) error {
	if err := q.rdb.LPush(ctx, q.name, submissionID).Err(); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", submissionID, q.name, err)
	}
	return nil
}

// Requeue puts an id back at the consuming end so it is retried next.
func (q *JudgeQueue) Requeue(ctx context.Context, submissionID string) error {
	if err := q.rdb.RPush(ctx, q.name, submissionID).Err(); err != nil {
		return fmt.Errorf("requeue %s on %s: %w", submissionID, q.name, err)
	}
	return nil
}

// Dequeue blocks up to timeout. It returns "" with a nil error when nothing arrived.
func (q *JudgeQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	// res is [queueName, value]
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

const attemptsTTL = 24 * time.Hour

func (q *JudgeQueue) attemptsKey(submissionID string) string {
	return q.name + ":attempts:" + submissionID
}

// RecordAttempt counts one failed evaluation of submissionID and returns the
// running total. Counters expire a day after the last failure.
func (q *JudgeQueue) RecordAttempt(ctx context.Context, submissionID string) (int64, error) {
	key := q.attemptsKey(submissionID)
	pipe := q.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, attemptsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record attempt for %s: %w", submissionID, err)
	}
	return incr.Val(), nil
}

func (q *JudgeQueue) ClearAttempts(ctx context.Context, submissionID string) error {
	return q.rdb.Del(ctx, q.attemptsKey(submissionID)).Err()
}

func (q *JudgeQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
