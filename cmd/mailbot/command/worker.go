package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/bot"
	"github.com/pixil98/go-mailbot/internal/console"
	"github.com/pixil98/go-mailbot/internal/delivery"
	"github.com/pixil98/go-mailbot/internal/driver"
	"github.com/pixil98/go-mailbot/internal/listener"
	"github.com/pixil98/go-mailbot/internal/mailbox"
	"github.com/pixil98/go-mailbot/internal/metrics"
	"github.com/pixil98/go-mailbot/internal/presence"
	"github.com/pixil98/go-service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	logCloser, err := cfg.Log.install()
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	ctx := context.Background()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Mailbox state
	backend, err := cfg.Storage.buildBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}
	store := mailbox.NewStore(backend, mailbox.WithPersistObserver(m))
	store.Load(ctx)

	tracker := presence.NewTracker()
	queue := delivery.NewQueue()

	// Game link
	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	tr := cfg.Transport.buildTransport(cfg.Bot, cfg.Nats, natsServer)

	scheduler := delivery.NewScheduler(queue, tr,
		append(cfg.Bot.schedulerOpts(), delivery.WithObserver(m))...,
	)

	engine, err := bot.NewEngine(cfg.Bot.Name, store, tracker, scheduler, tr,
		bot.WithClassifier(cfg.Bot.classifier()),
		bot.WithReplies(cfg.Bot.Replies),
		bot.WithObserver(m),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bot engine: %w", err)
	}

	// Operator console
	consoleOpts := []console.ConsoleOpt{
		console.WithLoginDelay(cfg.Console.loginDelay()),
	}
	if cfg.Console.Password != "" {
		consoleOpts = append(consoleOpts, console.WithPassword(cfg.Console.Password))
	}
	if cfg.Console.Prompt != "" {
		consoleOpts = append(consoleOpts, console.WithPrompt(cfg.Console.Prompt))
	}
	if cfg.Console.Width > 0 {
		consoleOpts = append(consoleOpts, console.WithWidth(cfg.Console.Width))
	}
	consoleOpts = append(consoleOpts, console.WithStatus(engine, queue))
	cm := listener.NewConnectionManager(
		console.NewConsole(store, tracker, tr, consoleOpts...),
		listener.WithMaxSessions(cfg.Console.MaxSessions),
	)

	listeners := make(service.WorkerList, len(cfg.Console.Listeners))
	for i, l := range cfg.Console.Listeners {
		lw, err := l.BuildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("listener-%d", i)] = lw
	}

	sampler := metrics.NewSampler(m, tracker.Count, queue.Len, cm.Active)

	// Setup the bot driver
	d := driver.NewDriver(tr.Events(), engine, []driver.Manager{
		store,
		sampler,
	}, driver.WithTickLength(cfg.tickInterval()))

	workers := service.WorkerList{
		"driver":    d,
		"transport": tr,
		"delivery":  queue,
		"listeners": &listeners,
		"closer":    &closer{closers: []io.Closer{store, backend, logCloser}},
	}
	if natsServer != nil {
		workers["nats"] = natsServer
	}
	if cfg.Metrics.enabled() {
		workers["metrics"] = metrics.NewServer(cfg.Metrics.Addr, reg)
	}

	return workers, nil
}

// closer releases process resources once the service is shutting down.
type closer struct {
	closers []io.Closer
}

func (c *closer) Start(ctx context.Context) error {
	<-ctx.Done()

	el := errors.NewErrorList()
	for _, cl := range c.closers {
		if cl == nil {
			continue
		}
		el.Add(cl.Close())
	}
	if err := el.Err(); err != nil {
		slog.Error("closing resources", "error", err)
		return err
	}
	return nil
}
