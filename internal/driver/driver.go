package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixil98/go-mailbot/internal/transport"
)

const (
	DefaultTickLength = time.Second * 2
)

type Manager interface {
	Tick(context.Context) error
}

type EventHandler interface {
	HandleEvent(context.Context, transport.Event) error
}

// Driver is the bot's main loop. Each event is handled to completion before
// the next one is taken, and managers are ticked between events.
type Driver struct {
	tickLength time.Duration
	events     <-chan transport.Event
	handler    EventHandler
	managers   []Manager
}

func NewDriver(events <-chan transport.Event, handler EventHandler, managers []Manager, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		events:     events,
		handler:    handler,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	events := d.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				slog.WarnContext(ctx, "event source closed")
				events = nil
				continue
			}
			d.Handle(ctx, ev)
		}
	}
}

// Handle passes a single event to the handler. Handler errors are logged and
// never stop the loop.
func (d *Driver) Handle(ctx context.Context, ev transport.Event) {
	if err := d.handler.HandleEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "handling event", "type", ev.Type, "error", err)
	}
}

func (d *Driver) Tick(ctx context.Context) error {
	for _, m := range d.managers {
		if err := m.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}
