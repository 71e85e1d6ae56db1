package task

import (
	"context"
	"log/slog"
	"sync"
)

// Queue is an unbounded in-memory FIFO of generation jobs. Enqueue never
// blocks and never fails. The backlog is process-local state and does not
// survive a restart.
type Queue struct {
	mu     sync.Mutex
	jobs   []Job
	notify chan struct{}
	logger *slog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		logger: log.With(slog.String("component", "task_queue")),
	}
}

// Enqueue appends a job to the tail of the queue and wakes the worker.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	depth := len(q.jobs)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	q.logger.Debug("job enqueued",
		slog.String("task_id", job.TaskID.String()),
		slog.Int("queue_depth", depth))
}

// Dequeue removes and returns the oldest job, blocking until one is
// available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			if len(q.jobs) == 0 {
				q.jobs = nil
			}
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

// Len reports the current backlog depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
