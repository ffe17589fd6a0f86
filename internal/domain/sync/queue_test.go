package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name     string
		policy   RetryPolicy
		attempts int
		want     time.Duration
	}{
		{
			name:     "first attempt",
			policy:   RetryPolicy{BackoffMultiplier: 2, MaxBackoffSeconds: 60},
			attempts: 1,
			want:     2 * time.Second,
		},
		{
			name:     "third attempt",
			policy:   RetryPolicy{BackoffMultiplier: 2, MaxBackoffSeconds: 60},
			attempts: 3,
			want:     8 * time.Second,
		},
		{
			name:     "capped at max backoff",
			policy:   RetryPolicy{BackoffMultiplier: 2, MaxBackoffSeconds: 60},
			attempts: 10,
			want:     60 * time.Second,
		},
		{
			name:     "unset multiplier falls back to two",
			policy:   RetryPolicy{MaxBackoffSeconds: 60},
			attempts: 2,
			want:     4 * time.Second,
		},
		{
			name:     "multiplier one keeps the delay constant",
			policy:   RetryPolicy{BackoffMultiplier: 1, MaxBackoffSeconds: 60},
			attempts: 5,
			want:     time.Second,
		},
		{
			name:     "larger multiplier",
			policy:   RetryPolicy{BackoffMultiplier: 3, MaxBackoffSeconds: 300},
			attempts: 4,
			want:     81 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(tt.policy, tt.attempts))
		})
	}
}

func queueFixture(t *testing.T) (*RetryQueue, *memRepository, *StrategyRegistry) {
	t.Helper()
	repo := newMemRepository()
	return NewRetryQueue(repo, slog.Default()), repo, testRegistry()
}

func queueOp(id string) Operation {
	return Operation{
		ID:           id,
		ResourceType: "note",
		ResourceID:   "res-" + id,
		Op:           OpUpdate,
		Payload:      []byte(`{}`),
		BaseVersion:  1,
		Timestamp:    time.Now(),
	}
}

func TestRetryQueue_Enqueue(t *testing.T) {
	q, repo, reg := queueFixture(t)

	err := q.Enqueue(context.Background(), "client-1", queueOp("op-1"), reg.For("note"), errors.New("503"))
	require.NoError(t, err)

	require.Len(t, repo.queue, 1)
	for _, item := range repo.queue {
		assert.Equal(t, "op-1", item.OperationID)
		assert.Equal(t, 1, item.Attempts)
		assert.Equal(t, "503", item.Error)
		assert.True(t, item.NextAttempt.After(time.Now()), "first attempt is delayed")
	}
}

func TestRetryQueue_Drain_SuccessClearsItem(t *testing.T) {
	q, repo, reg := queueFixture(t)
	require.NoError(t, q.Enqueue(context.Background(), "client-1", queueOp("op-1"), reg.For("note"), errors.New("503")))

	// Make the item due now.
	repo.mu.Lock()
	for _, item := range repo.queue {
		item.NextAttempt = time.Now().Add(-time.Second)
	}
	repo.mu.Unlock()

	result, err := q.Drain(context.Background(), "client-1", reg, func(ctx context.Context, item *QueueItem) error {
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, result.Cleared, 1)
	assert.Empty(t, result.Failed)
	assert.Empty(t, repo.queue)
}

func TestRetryQueue_Drain_FailureReschedulesWithBackoff(t *testing.T) {
	q, repo, reg := queueFixture(t)
	require.NoError(t, q.Enqueue(context.Background(), "client-1", queueOp("op-1"), reg.For("note"), errors.New("503")))

	repo.mu.Lock()
	for _, item := range repo.queue {
		item.NextAttempt = time.Now().Add(-time.Second)
	}
	repo.mu.Unlock()

	before := time.Now()
	result, err := q.Drain(context.Background(), "client-1", reg, func(ctx context.Context, item *QueueItem) error {
		return errors.New("still down")
	})
	require.NoError(t, err)
	assert.Empty(t, result.Cleared)
	assert.Empty(t, result.Failed)

	require.Len(t, repo.queue, 1)
	for _, item := range repo.queue {
		assert.Equal(t, 2, item.Attempts)
		assert.Equal(t, "still down", item.Error)
		// attempt 2 with multiplier 2 -> 4s delay
		assert.True(t, item.NextAttempt.After(before.Add(3*time.Second)))
	}
}

func TestRetryQueue_Drain_ExhaustedMovesToFailed(t *testing.T) {
	q, repo, reg := queueFixture(t)
	require.NoError(t, q.Enqueue(context.Background(), "client-1", queueOp("op-1"), reg.For("note"), errors.New("503")))

	// note strategy allows 2 attempts; force the item to its last one.
	repo.mu.Lock()
	for _, item := range repo.queue {
		item.Attempts = 2
		item.NextAttempt = time.Now().Add(-time.Second)
	}
	repo.mu.Unlock()

	result, err := q.Drain(context.Background(), "client-1", reg, func(ctx context.Context, item *QueueItem) error {
		return errors.New("permanent outage")
	})
	require.NoError(t, err)
	assert.Empty(t, result.Cleared)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 3, result.Failed[0].Attempts)

	assert.Empty(t, repo.queue)
	require.Len(t, repo.failed, 1)
}

func TestRetryQueue_Drain_SkipsNotDueItems(t *testing.T) {
	q, repo, reg := queueFixture(t)
	require.NoError(t, q.Enqueue(context.Background(), "client-1", queueOp("op-1"), reg.For("note"), errors.New("503")))

	calls := 0
	result, err := q.Drain(context.Background(), "client-1", reg, func(ctx context.Context, item *QueueItem) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls, "backoff delay not elapsed yet")
	assert.Empty(t, result.Cleared)
	require.Len(t, repo.queue, 1)
}

func TestRetryQueue_Drain_PriorityOrder(t *testing.T) {
	q, repo, _ := queueFixture(t)

	reg := NewStrategyRegistry(DefaultStrategy())
	reg.Register(Strategy{ResourceType: "urgent", Priority: 1})
	reg.Register(Strategy{ResourceType: "bulk", Priority: 50})

	bulk := queueOp("op-bulk")
	bulk.ResourceType = "bulk"
	urgent := queueOp("op-urgent")
	urgent.ResourceType = "urgent"

	require.NoError(t, q.Enqueue(context.Background(), "client-1", bulk, reg.For("bulk"), errors.New("503")))
	require.NoError(t, q.Enqueue(context.Background(), "client-1", urgent, reg.For("urgent"), errors.New("503")))

	repo.mu.Lock()
	for _, item := range repo.queue {
		item.NextAttempt = time.Now().Add(-time.Second)
	}
	repo.mu.Unlock()

	var order []string
	_, err := q.Drain(context.Background(), "client-1", reg, func(ctx context.Context, item *QueueItem) error {
		order = append(order, item.OperationID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-urgent", "op-bulk"}, order)
}
