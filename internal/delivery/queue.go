package delivery

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of deferred work. Tasks run on the queue's goroutine.
type Task func(ctx context.Context)

type task struct {
	at  time.Time
	seq uint64
	fn  Task
}

// taskHeap orders tasks by deadline, then by registration order.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Queue runs one-shot tasks after a delay. Registered tasks cannot be
// cancelled; anything still pending when the queue stops is dropped.
type Queue struct {
	mu    sync.Mutex
	tasks taskHeap
	seq   uint64

	now  func() time.Time
	wake chan struct{}
}

type QueueOpt func(*Queue)

// WithClock replaces the clock used to compute deadlines.
func WithClock(now func() time.Time) QueueOpt {
	return func(q *Queue) {
		q.now = now
	}
}

func NewQueue(opts ...QueueOpt) *Queue {
	q := &Queue{
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Now returns the queue's current time.
func (q *Queue) Now() time.Time {
	return q.now()
}

// After registers fn to run once d has elapsed. It never blocks.
func (q *Queue) After(d time.Duration, fn Task) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.tasks, &task{
		at:  q.now().Add(d),
		seq: q.seq,
		fn:  fn,
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Tick runs every task whose deadline has passed, in deadline order.
func (q *Queue) Tick(ctx context.Context) error {
	for {
		fn, ok := q.popDue(q.now())
		if !ok {
			return nil
		}
		fn(ctx)
	}
}

func (q *Queue) popDue(now time.Time) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 || q.tasks[0].at.After(now) {
		return nil, false
	}
	return heap.Pop(&q.tasks).(*task).fn, true
}

func (q *Queue) next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return time.Time{}, false
	}
	return q.tasks[0].at, true
}

func (q *Queue) Start(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if err := q.Tick(ctx); err != nil {
			return err
		}

		if at, ok := q.next(); ok {
			timer.Reset(max(at.Sub(q.now()), 0))
		}

		select {
		case <-ctx.Done():
			if n := q.Len(); n > 0 {
				slog.InfoContext(ctx, "dropping pending deliveries", "count", n)
			}
			return nil
		case <-timer.C:
		case <-q.wake:
			timer.Stop()
		}
	}
}
