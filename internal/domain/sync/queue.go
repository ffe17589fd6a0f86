package sync

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// RetryQueue durable backoff-retry subsystem for operations that failed
// transiently. Timers are not kept in-process: an item becomes due by
// wall-clock comparison on the next drain, which runs inside the next
// synchronization cycle.
type RetryQueue struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewRetryQueue(repo Repository, log *slog.Logger) *RetryQueue {
	return &RetryQueue{
		repo: repo,
		log:  log.With(slog.String("component", "retry_queue")),
		now:  time.Now,
	}
}

// Backoff computes the delay before the given attempt:
// min(multiplier^attempts * 1s, maxBackoffSeconds * 1s).
func Backoff(policy RetryPolicy, attempts int) time.Duration {
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	delay := time.Duration(math.Pow(multiplier, float64(attempts)) * float64(time.Second))
	if max := time.Duration(policy.MaxBackoffSeconds) * time.Second; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// Enqueue adds a failed operation to the queue with its first backoff delay.
func (q *RetryQueue) Enqueue(ctx context.Context, clientID string, op Operation, strategy Strategy, cause error) error {
	item := &QueueItem{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		OperationID:  op.ID,
		ResourceType: op.ResourceType,
		ResourceID:   op.ResourceID,
		Op:           op.Op,
		Payload:      op.Payload,
		BaseVersion:  op.BaseVersion,
		Priority:     strategy.Priority,
		Attempts:     1,
		LastAttempt:  q.now(),
		NextAttempt:  q.now().Add(Backoff(strategy.Retry, 1)),
		Error:        cause.Error(),
	}
	if err := q.repo.EnqueueRetry(ctx, item); err != nil {
		return fmt.Errorf("enqueue retry: %w", err)
	}
	q.log.Debug("operation queued for retry",
		"operation_id", op.ID, "resource", op.ResourceType+"/"+op.ResourceID,
		"next_attempt", item.NextAttempt)
	return nil
}

// DrainResult what one drain cycle accomplished.
type DrainResult struct {
	Cleared []QueueItem
	Failed  []QueueItem
}

// Drain retries every due item sequentially, ordered by strategy priority
// then by scheduling time. run performs one attempt; a nil return clears the
// item, an error reschedules it or, past MaxAttempts, moves it to the
// terminal failed list.
func (q *RetryQueue) Drain(ctx context.Context, clientID string, strategies *StrategyRegistry, run func(ctx context.Context, item *QueueItem) error) (*DrainResult, error) {
	due, err := q.repo.ListDueRetries(ctx, clientID, q.now())
	if err != nil {
		return nil, fmt.Errorf("list due retries: %w", err)
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority < due[j].Priority
		}
		return due[i].NextAttempt.Before(due[j].NextAttempt)
	})

	result := &DrainResult{}
	for _, item := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		attemptErr := run(ctx, item)
		if attemptErr == nil {
			if err := q.repo.DeleteRetry(ctx, item.ID); err != nil {
				q.log.Warn("failed to clear retried item", "item_id", item.ID, "error", err)
			}
			result.Cleared = append(result.Cleared, *item)
			continue
		}

		item.Attempts++
		item.LastAttempt = q.now()
		item.Error = attemptErr.Error()

		policy := strategies.For(item.ResourceType).Retry
		if item.Attempts > policy.MaxAttempts {
			if err := q.repo.MarkRetryFailed(ctx, item); err != nil {
				q.log.Warn("failed to mark retry as terminal", "item_id", item.ID, "error", err)
			}
			q.log.Info("retries exhausted",
				"operation_id", item.OperationID, "attempts", item.Attempts)
			result.Failed = append(result.Failed, *item)
			continue
		}

		item.NextAttempt = q.now().Add(Backoff(policy, item.Attempts))
		if err := q.repo.UpdateRetry(ctx, item); err != nil {
			q.log.Warn("failed to reschedule retry", "item_id", item.ID, "error", err)
		}
	}

	return result, nil
}
