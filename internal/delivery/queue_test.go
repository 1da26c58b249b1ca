package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestQueue_Tick(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now))
	ctx := context.Background()

	var ran []string
	record := func(name string) Task {
		return func(context.Context) { ran = append(ran, name) }
	}

	q.After(2*time.Second, record("two"))
	q.After(0, record("zero"))
	q.After(time.Second, record("one-a"))
	q.After(time.Second, record("one-b"))
	testutil.AssertEqual(t, "pending", q.Len(), 4)

	if err := q.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "at t+0", ran, []string{"zero"})

	clock.Advance(time.Second)
	if err := q.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "at t+1s", ran, []string{"zero", "one-a", "one-b"})

	clock.Advance(10 * time.Second)
	if err := q.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "at t+11s", ran, []string{"zero", "one-a", "one-b", "two"})
	testutil.AssertEqual(t, "pending", q.Len(), 0)
}

func TestQueue_TaskCanScheduleTask(t *testing.T) {
	clock := newFakeClock()
	q := NewQueue(WithClock(clock.Now))
	ctx := context.Background()

	var ran []string
	q.After(0, func(context.Context) {
		ran = append(ran, "outer")
		q.After(0, func(context.Context) { ran = append(ran, "inner") })
	})

	if err := q.Tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "ran", ran, []string{"outer", "inner"})
}

func TestQueue_Start(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- q.Start(ctx) }()

	fired := make(chan int, 3)
	for i := range 3 {
		q.After(time.Duration(i)*10*time.Millisecond, func(context.Context) { fired <- i })
	}

	for exp := range 3 {
		select {
		case got := <-fired:
			testutil.AssertEqual(t, "order", got, exp)
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d did not fire", exp)
		}
	}

	// Pending tasks do not block shutdown
	q.After(time.Hour, func(context.Context) { t.Error("task should not run") })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop")
	}
	testutil.AssertEqual(t, "pending", q.Len(), 1)
}
