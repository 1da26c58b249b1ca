package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailbot"

// Metrics holds the bot's prometheus collectors. It satisfies the observer
// hooks of the engine, the delivery scheduler and the mailbox store.
type Metrics struct {
	MessagesStored  *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	PersistFailures prometheus.Counter

	PlayersOnline   prometheus.Gauge
	PendingTasks    prometheus.Gauge
	ConsoleSessions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MessagesStored: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_stored_total",
				Help:      "Messages appended to a mailbox, by kind.",
			},
			[]string{"kind"},
		),
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Chat commands handled, by command.",
			},
			[]string{"command"},
		),
		Deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Scheduled message deliveries, by result.",
			},
			[]string{"result"},
		),
		PersistFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_failures_total",
				Help:      "Mailbox snapshot writes that failed.",
			},
		),
		PlayersOnline: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "players_online",
				Help:      "Players with a live game session.",
			},
		),
		PendingTasks: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_tasks",
				Help:      "Deliveries and greetings waiting to fire.",
			},
		),
		ConsoleSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "console_sessions",
				Help:      "Open operator console sessions.",
			},
		),
	}
}

func (m *Metrics) ObserveCommand(kind string) {
	m.Commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveStored(kind string) {
	m.MessagesStored.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveDelivery(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePersist(err error) {
	if err != nil {
		m.PersistFailures.Inc()
	}
}

// Sampler copies point in time counts into the gauges on every tick.
type Sampler struct {
	metrics  *Metrics
	online   func() int
	pending  func() int
	sessions func() int
}

// NewSampler builds a driver manager for the gauges. Any source may be nil.
func NewSampler(m *Metrics, online, pending, sessions func() int) *Sampler {
	return &Sampler{
		metrics:  m,
		online:   online,
		pending:  pending,
		sessions: sessions,
	}
}

func (s *Sampler) Tick(_ context.Context) error {
	set := func(g prometheus.Gauge, src func() int) {
		if src != nil {
			g.Set(float64(src()))
		}
	}
	set(s.metrics.PlayersOnline, s.online)
	set(s.metrics.PendingTasks, s.pending)
	set(s.metrics.ConsoleSessions, s.sessions)
	return nil
}
