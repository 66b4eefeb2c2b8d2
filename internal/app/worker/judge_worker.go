package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/queue"

	"go.uber.org/zap"
)

// SubmissionEvaluator judges, scores and records one submission by id.
// Evaluate returns common.ErrNotFound only when the submission does not exist.
type SubmissionEvaluator interface {
	Evaluate(ctx context.Context, submissionID string) error
	Fail(ctx context.Context, submissionID string, cause error) error
}

type Options struct {
	Concurrency int
	PopTimeout  time.Duration
	// MaxAttempts is how many failed evaluations a submission gets before it
	// is recorded as a judge failure.
	MaxAttempts int
}

// JudgeWorker drains the judge queue. Each submission is evaluated on its own
// goroutine, at most Concurrency at a time, under a per-submission lock.
type JudgeWorker struct {
	queue     *queue.JudgeQueue
	locker    *queue.Locker
	evaluator SubmissionEvaluator
	opts      Options
	wg        sync.WaitGroup
}

func NewJudgeWorker(q *queue.JudgeQueue, locker *queue.Locker, evaluator SubmissionEvaluator, opts Options) *JudgeWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &JudgeWorker{queue: q, locker: locker, evaluator: evaluator, opts: opts}
}

// Start blocks until ctx is cancelled and in-flight evaluations return.
func (w *JudgeWorker) Start(ctx context.Context) {
	logger.L().Info("judge_worker_started",
		zap.String("queue", w.queue.Name()),
		zap.Int("concurrency", w.opts.Concurrency),
	)
	sem := make(chan struct{}, w.opts.Concurrency)
	defer func() {
		w.wg.Wait()
		logger.L().Info("judge_worker_stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}

		id, err := w.queue.Dequeue(ctx, w.opts.PopTimeout)
		if err != nil {
			<-sem
			if ctx.Err() != nil {
				return
			}
			logger.L().Error("judge_queue_pop_failed", zap.String("queue", w.queue.Name()), zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if id == "" {
			<-sem
			continue
		}

		w.wg.Add(1)
		go func(id string) {
			defer func() {
				<-sem
				w.wg.Done()
			}()
			w.processWithLock(ctx, id)
		}(id)
	}
}

func (w *JudgeWorker) processWithLock(ctx context.Context, submissionID string) {
	lock, err := w.locker.Acquire(ctx, submissionID)
	if err != nil {
		logger.L().Error("judge_lock_failed", zap.String("submission_id", submissionID), zap.Error(err))
		w.requeue(submissionID)
		return
	}
	if lock == nil {
		// Someone else is evaluating it; their result is recorded once.
		logger.L().Info("judge_lock_busy", zap.String("submission_id", submissionID))
		return
	}
	defer func() {
		released, err := lock.Release(context.Background())
		if err != nil {
			logger.L().Error("judge_lock_release_failed", zap.String("key", lock.Key()), zap.Error(err))
		} else if !released {
			logger.L().Warn("judge_lock_expired", zap.String("key", lock.Key()))
		}
	}()

	start := time.Now()
	err = w.evaluator.Evaluate(ctx, submissionID)
	switch {
	case err == nil:
		logger.L().Info("judge_job_done",
			zap.String("submission_id", submissionID),
			zap.Duration("took", time.Since(start)),
		)
		w.clearAttempts(submissionID)
	case errors.Is(err, common.ErrNotFound):
		logger.L().Warn("judge_job_dropped", zap.String("submission_id", submissionID), zap.Error(err))
		w.clearAttempts(submissionID)
	case ctx.Err() != nil:
		// Shutdown interrupted the evaluation; it does not count as an attempt.
		w.requeue(submissionID)
	default:
		w.retryOrFail(submissionID, err)
	}
}

// retryOrFail requeues a failed evaluation until the attempt budget is spent,
// then records the submission as a judge failure so its match can finish.
func (w *JudgeWorker) retryOrFail(submissionID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	attempt, err := w.queue.RecordAttempt(ctx, submissionID)
	if err != nil {
		logger.L().Error("judge_attempt_count_failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
	logger.L().Error("judge_job_failed",
		zap.String("submission_id", submissionID),
		zap.Int64("attempt", attempt),
		zap.Int("max_attempts", w.opts.MaxAttempts),
		zap.Error(cause),
	)
	if attempt < int64(w.opts.MaxAttempts) {
		w.requeue(submissionID)
		return
	}

	failure := fmt.Errorf("gave up after %d attempts: %v: %w", attempt, cause, common.ErrJudgeExecution)
	if err := w.evaluator.Fail(ctx, submissionID, failure); err != nil {
		logger.L().Error("judge_job_abandoned", zap.String("submission_id", submissionID), zap.Error(err))
	} else {
		logger.L().Warn("judge_job_failed_permanently", zap.String("submission_id", submissionID), zap.Int64("attempts", attempt))
	}
	w.clearAttempts(submissionID)
}

func (w *JudgeWorker) clearAttempts(submissionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.ClearAttempts(ctx, submissionID); err != nil {
		logger.L().Warn("judge_attempts_clear_failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
}

// requeue uses a fresh context so ids survive shutdown cancellation.
func (w *JudgeWorker) requeue(submissionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Requeue(ctx, submissionID); err != nil {
		logger.L().Error("judge_requeue_failed", zap.String("submission_id", submissionID), zap.Error(err))
		return
	}
	logger.L().Info("judge_job_requeued", zap.String("submission_id", submissionID))
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
