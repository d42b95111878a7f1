package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/models"
	"github.com/gopost/repost/internal/queue"
)

const waitTimeout = 2 * time.Second

// waitForTerminal polls until the job reaches a terminal state.
func waitForTerminal(t *testing.T, q *queue.Queue, id uuid.UUID) models.Job {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		job, ok := q.Status(id)
		if ok && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("job %s never reached a terminal state", id)
	return models.Job{}
}

func TestQueueExecutesInOrder(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	var mu sync.Mutex
	var order []int

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		n := i
		ids = append(ids, q.Enqueue(func(context.Context) (any, error) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return n, nil
		}))
	}

	for _, id := range ids {
		waitForTerminal(t, q, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueTaskFailureDoesNotBlockNext(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	failID := q.Enqueue(func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	okID := q.Enqueue(func(context.Context) (any, error) {
		return "done", nil
	})

	failed := waitForTerminal(t, q, failID)
	assert.Equal(t, models.JobError, failed.Status)
	assert.Equal(t, "boom", failed.Error)
	require.NotNil(t, failed.FinishedAt)

	succeeded := waitForTerminal(t, q, okID)
	assert.Equal(t, models.JobSuccess, succeeded.Status)
	assert.Equal(t, "done", succeeded.Result)
	assert.Empty(t, succeeded.Error)
}

func TestQueueStatusUnknownJob(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	id := q.Enqueue(func(context.Context) (any, error) { return nil, nil })
	waitForTerminal(t, q, id)

	_, ok := q.Status(uuid.New())
	assert.False(t, ok)
}

func TestQueueSingleConsumer(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		ids = append(ids, q.Enqueue(func(context.Context) (any, error) {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil, nil
		}))
	}

	for _, id := range ids {
		waitForTerminal(t, q, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxRunning, "at most one task may run at a time")
}

func TestQueueSnapshot(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	release := make(chan struct{})
	started := make(chan struct{})

	first := q.Enqueue(func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	q.Enqueue(func(context.Context) (any, error) { return nil, nil })
	last := q.Enqueue(func(context.Context) (any, error) { return nil, nil })

	<-started
	snap := q.Snapshot()
	assert.True(t, snap.IsProcessing)
	assert.Equal(t, 2, snap.QueuedCount)

	close(release)
	waitForTerminal(t, q, first)
	waitForTerminal(t, q, last)

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		snap = q.Snapshot()
		if !snap.IsProcessing {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, 0, snap.QueuedCount)
}

func TestQueueStatusReturnsCopy(t *testing.T) {
	q := queue.New(context.Background(), logger.NewNopLogger())

	id := q.Enqueue(func(context.Context) (any, error) { return "result", nil })
	job := waitForTerminal(t, q, id)

	job.Error = "mutated"

	again, ok := q.Status(job.ID)
	require.True(t, ok)
	assert.Empty(t, again.Error)
}
