package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler runs deferred work after the current reconciliation pass has
// committed its tree mutation.
type Scheduler interface {
	Schedule(task func())
}

// Queue is a FIFO Scheduler that runs its tasks when drained.
//
// Thread-safe: tasks may be scheduled while a drain is running; they run in
// the same drain.
type Queue struct {
	tasks  []func()
	mu     sync.Mutex
	logger *slog.Logger
}

// NewQueue creates an empty queue. Panicking tasks are logged to logger.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// Schedule appends a task.
func (q *Queue) Schedule(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs pending tasks in order until the queue is empty and returns how
// many ran. A panicking task does not stop the others.
func (q *Queue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(task)
		ran++
	}
}

func (q *Queue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("deferred task panicked", "error", fmt.Sprint(r))
		}
	}()
	task()
}
