// Package queue implements a single-consumer FIFO executor for pipeline
// runs with an observable job table.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/models"
)

// maxRetainedJobs bounds the in-memory job table; the oldest terminal
// jobs are pruned first.
const maxRetainedJobs = 1000

// Task is one unit of work. The returned value becomes the job's result.
type Task func(ctx context.Context) (any, error)

// Snapshot is the queue's observable state.
type Snapshot struct {
	QueuedCount  int  `json:"queued_count"`
	IsProcessing bool `json:"is_processing"`
}

type pendingTask struct {
	id   uuid.UUID
	task Task
}

// Queue executes tasks strictly in enqueue order, at most one at a time
// process-wide. A job's terminal state is set exactly once; jobs are
// never re-queued automatically.
type Queue struct {
	mu         sync.Mutex
	pending    []pendingTask
	processing bool
	jobs       map[uuid.UUID]*models.Job
	order      []uuid.UUID

	baseCtx context.Context
	logger  logger.Logger
}

// New creates a queue. Tasks run under baseCtx; cancelling it stops the
// drain after the in-flight task finishes.
func New(baseCtx context.Context, log logger.Logger) *Queue {
	return &Queue{
		jobs:    make(map[uuid.UUID]*models.Job),
		baseCtx: baseCtx,
		logger:  log,
	}
}

// Enqueue appends a task, records its job as queued and triggers
// processing if the queue is idle. It returns immediately.
func (q *Queue) Enqueue(task Task) uuid.UUID {
	id := uuid.New()

	q.mu.Lock()
	q.jobs[id] = &models.Job{
		ID:         id,
		Status:     models.JobQueued,
		EnqueuedAt: time.Now(),
	}
	q.order = append(q.order, id)
	q.pruneLocked()
	q.pending = append(q.pending, pendingTask{id: id, task: task})

	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	q.logger.Debug("Job enqueued", logger.String("job_id", id.String()))

	if start {
		go q.drain()
	}

	return id
}

// drain pops and executes pending tasks until the list empties. Whether a
// task succeeds or fails, the next one runs immediately.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.baseCtx.Err() != nil {
			q.processing = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]

		now := time.Now()
		job := q.jobs[next.id]
		if job != nil {
			job.Status = models.JobRunning
			job.StartedAt = &now
		}
		q.mu.Unlock()

		result, err := next.task(q.baseCtx)

		q.mu.Lock()
		q.finishLocked(next.id, result, err)
		q.mu.Unlock()
	}
}

// finishLocked sets the terminal state exactly once. Callers hold q.mu.
func (q *Queue) finishLocked(id uuid.UUID, result any, err error) {
	job := q.jobs[id]
	if job == nil || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.FinishedAt = &now
	job.Result = result

	if err != nil {
		job.Status = models.JobError
		job.Error = err.Error()
		q.logger.Warn("Job failed",
			logger.String("job_id", id.String()),
			logger.Error(err),
		)
		return
	}

	job.Status = models.JobSuccess
	q.logger.Info("Job completed", logger.String("job_id", id.String()))
}

// Status returns a copy of the job record.
func (q *Queue) Status(id uuid.UUID) (models.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Snapshot returns the queue's current observable state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Snapshot{
		QueuedCount:  len(q.pending),
		IsProcessing: q.processing,
	}
}

// pruneLocked drops the oldest terminal jobs beyond the retention cap.
// Callers hold q.mu.
func (q *Queue) pruneLocked() {
	if len(q.order) <= maxRetainedJobs {
		return
	}

	kept := q.order[:0]
	excess := len(q.order) - maxRetainedJobs
	for _, id := range q.order {
		if excess > 0 {
			if job, ok := q.jobs[id]; ok && job.Status.Terminal() {
				delete(q.jobs, id)
				excess--
				continue
			}
		}
		kept = append(kept, id)
	}
	q.order = kept
}
