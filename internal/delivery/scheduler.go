package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pixil98/go-mailbot/internal/mailbox"
	"golang.org/x/time/rate"
)

// DefaultDelay is the gap between two messages of one batch.
const DefaultDelay = 3 * time.Second

// Sender delivers a line of text to a single player.
type Sender interface {
	SendPrivate(ctx context.Context, to string, text string) error
}

// Observer is notified after each delivery attempt.
type Observer interface {
	ObserveDelivery(err error)
}

// Scheduler releases batches of messages to a reader one at a time so the
// chat channel is not flooded. Deliveries are fire and forget.
type Scheduler struct {
	queue    *Queue
	sender   Sender
	delay    time.Duration
	observer Observer
	limiter  *rate.Limiter
}

type SchedulerOpt func(*Scheduler)

// WithDelay sets the gap between consecutive deliveries in a batch.
func WithDelay(d time.Duration) SchedulerOpt {
	return func(s *Scheduler) {
		s.delay = d
	}
}

// WithObserver registers an observer for delivery results.
func WithObserver(o Observer) SchedulerOpt {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithRateLimit caps deliveries across all batches. A delivery that cannot get
// a token before ctx ends is dropped and reported as failed.
func WithRateLimit(l *rate.Limiter) SchedulerOpt {
	return func(s *Scheduler) {
		s.limiter = l
	}
}

func NewScheduler(q *Queue, sender Sender, opts ...SchedulerOpt) *Scheduler {
	s := &Scheduler{
		queue:  q,
		sender: sender,
		delay:  DefaultDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// After runs fn once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn Task) {
	s.queue.After(d, fn)
}

// ScheduleBatch delivers msgs to reader, message i after i*Delay. The age of
// each message is computed when it is delivered, not when it is scheduled.
func (s *Scheduler) ScheduleBatch(reader string, msgs []mailbox.Message) {
	for i, m := range msgs {
		seq := i + 1
		s.queue.After(time.Duration(i)*s.delay, func(ctx context.Context) {
			if err := s.wait(ctx); err != nil {
				s.observe(ctx, reader, fmt.Errorf("waiting for send slot: %w", err))
				return
			}
			line := Render(seq, AgeString(s.queue.Now(), m.SentAt()), m)
			s.deliver(ctx, reader, line)
		})
	}
}

func (s *Scheduler) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Scheduler) deliver(ctx context.Context, reader, line string) {
	s.observe(ctx, reader, s.sender.SendPrivate(ctx, reader, line))
}

func (s *Scheduler) observe(ctx context.Context, reader string, err error) {
	if err != nil {
		slog.WarnContext(ctx, "delivering message", "reader", reader, "error", err)
	}
	if s.observer != nil {
		s.observer.ObserveDelivery(err)
	}
}

// Render formats a delivered message as "<seq> <age> <from> : <text>".
func Render(seq int, age string, m mailbox.Message) string {
	return fmt.Sprintf("%d %s %s : %s", seq, age, m.From, m.Text)
}
