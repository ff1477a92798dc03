// Package rollup runs organization rollups asynchronously after a cascade.
package rollup

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// Task is one queued rollup of one organization.
type Task struct {
	ID             string
	OrganizationID int64
	EnqueuedAt     time.Time
	ctx            context.Context
}

// Queue is an unbounded FIFO of rollup tasks served by a fixed set of workers.
// Tasks are neither deduplicated nor retried.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task
	closed  bool
	started bool

	workers int
	hooks   []contract.RollupHook
	logger  *slog.Logger
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

var _ contract.RollupScheduler = &Queue{} // Compile-time check

// NewQueue builds a queue that runs every hook, in order, for each task.
func NewQueue(workers int, logger *slog.Logger, hooks ...contract.RollupHook) *Queue {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{workers: workers, hooks: hooks, logger: logger}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for range q.workers {
		q.wg.Go(func() { q.work(ctx) })
	}
}

// Schedule enqueues a rollup and returns immediately.
func (q *Queue) Schedule(ctx context.Context, organizationID int64) {
	task := Task{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		EnqueuedAt:     time.Now().UTC(),
		ctx:            context.WithoutCancel(ctx),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("rollup queue closed, dropping task", "task_id", task.ID, "organization_id", organizationID)
		return
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	q.cond.Signal()

	q.logger.Debug("rollup scheduled", "task_id", task.ID, "organization_id", organizationID)
}

// Close stops accepting tasks and waits until every pending task has run.
// Tasks queued before Start are run inline.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	q.mu.Unlock()
	q.cond.Broadcast()

	if started {
		q.wg.Wait()
		return
	}
	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.run(task)
	}
}

// Pending returns how many tasks are waiting for a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns how many tasks ran and how many of them had a failing hook.
func (q *Queue) Stats() (processed, failed int64) {
	return q.processed.Load(), q.failed.Load()
}

func (q *Queue) work(ctx context.Context) {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.pop()
		q.mu.Unlock()

		if ctx.Err() != nil {
			q.logger.Warn("rollup skipped, queue context done", "task_id", task.ID, "organization_id", task.OrganizationID)
			q.failed.Add(1)
			continue
		}
		q.run(task)
	}
}

// next pops a task without waiting.
func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Task{}, false
	}
	return q.pop(), true
}

// pop removes the head of the queue. The caller holds mu.
func (q *Queue) pop() Task {
	task := q.pending[0]
	q.pending[0] = Task{}
	q.pending = q.pending[1:]
	return task
}

func (q *Queue) run(task Task) {
	start := time.Now()
	var failed bool
	for _, hook := range q.hooks {
		if err := hook(task.ctx, task.OrganizationID); err != nil {
			failed = true
			q.logger.Error("rollup hook failed", "task_id", task.ID, "organization_id", task.OrganizationID, "error", err)
		}
	}

	q.processed.Add(1)
	if failed {
		q.failed.Add(1)
		return
	}
	q.logger.Debug("rollup finished", "task_id", task.ID, "organization_id", task.OrganizationID,
		"wait", start.Sub(task.EnqueuedAt), "took", time.Since(start))
}

// OrganizationRollup returns the hook that recomputes an organization from its repositories.
func OrganizationRollup(store contract.CompositionStore, now func() time.Time) contract.RollupHook {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, organizationID int64) error {
		return store.WithTx(ctx, func(ctx context.Context, tx contract.CompositionStore) error {
			org, err := tx.GetOrganization(ctx, organizationID)
			if err != nil {
				return err
			}
			repos, err := tx.ListRepositories(ctx, organizationID)
			if err != nil {
				return err
			}

			var total schema.Counts
			for _, repo := range repos {
				total = total.Add(repo.Counts)
			}
			stamp := now().UTC()
			org.Counts = total
			org.LastRolledUpAt = &stamp
			return tx.UpdateOrganization(ctx, org)
		})
	}
}
