package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "mailbot"

type NatsOpt func(*NatsTransport)

// WithSubjectPrefix sets the subject namespace, "mailbot" by default.
func WithSubjectPrefix(prefix string) NatsOpt {
	return func(t *NatsTransport) {
		t.prefix = prefix
	}
}

// WithSession sets the session id the bot reports for itself on connect.
func WithSession(session string) NatsOpt {
	return func(t *NatsTransport) {
		t.session = session
	}
}

// WithReconnectWait sets the pause between reconnect attempts.
func WithReconnectWait(d time.Duration) NatsOpt {
	return func(t *NatsTransport) {
		t.reconnectWait = d
	}
}

// WithToken authenticates to the broker with a shared token.
func WithToken(token string) NatsOpt {
	return func(t *NatsTransport) {
		t.token = token
	}
}

// NatsTransport exchanges envelopes with a game bridge over NATS subjects:
// events arrive on <prefix>.events, chat lines leave on <prefix>.chat and
// roster requests on <prefix>.roster.
type NatsTransport struct {
	url           string
	name          string
	session       string
	prefix        string
	token         string
	reconnectWait time.Duration

	events    chan Event
	announced atomic.Bool

	mu   sync.RWMutex
	conn *nats.Conn
}

func NewNatsTransport(url, name string, opts ...NatsOpt) *NatsTransport {
	t := &NatsTransport{
		url:           url,
		name:          name,
		prefix:        defaultSubjectPrefix,
		reconnectWait: 2 * time.Second,
		events:        make(chan Event, defaultEventBuffer),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *NatsTransport) Events() <-chan Event {
	return t.events
}

func (t *NatsTransport) subject(name string) string {
	return t.prefix + "." + name
}

// Start connects, subscribes and forwards events until ctx is cancelled.
func (t *NatsTransport) Start(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(t.name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(t.reconnectWait),
		nats.ConnectHandler(func(_ *nats.Conn) {
			t.announceOnce(ctx)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.InfoContext(ctx, "reconnected to nats", "url", t.url)
			t.announce(ctx)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.WarnContext(ctx, "disconnected from nats", "error", err)
			}
		}),
	}
	if t.token != "" {
		opts = append(opts, nats.Token(t.token))
	}

	conn, err := nats.Connect(t.url, opts...)
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	t.setConn(conn)
	defer func() {
		t.setConn(nil)
		conn.Close()
	}()

	sub, err := conn.Subscribe(t.subject("events"), func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.WarnContext(ctx, "discarding game event", "subject", msg.Subject, "error", err)
			return
		}
		t.emit(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", t.subject("events"), err)
	}
	defer sub.Unsubscribe()

	if conn.IsConnected() {
		t.announceOnce(ctx)
	}
	slog.InfoContext(ctx, "nats transport started", "url", t.url, "prefix", t.prefix)

	<-ctx.Done()
	return nil
}

// announce reports the bot's own identity. The nats bridge has no handshake
// to learn it from, so the configured name and session are used. The session
// may be empty, in which case the bot claims no session of its own.
func (t *NatsTransport) announce(ctx context.Context) {
	t.emit(ctx, Event{Type: EventConnected, Session: t.session, Name: t.name})
}

func (t *NatsTransport) announceOnce(ctx context.Context) {
	if t.announced.CompareAndSwap(false, true) {
		t.announce(ctx)
	}
}

func (t *NatsTransport) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *NatsTransport) SendPrivate(_ context.Context, to, text string) error {
	return t.publish(t.subject("chat"), typeChat, chatPayload{Text: Compose(to, text)})
}

func (t *NatsTransport) RequestRoster(_ context.Context) error {
	return t.publish(t.subject("roster"), typeRoster, nil)
}

func (t *NatsTransport) publish(subject, typ string, payload any) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	data, err := encodeEnvelope(typ, payload)
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

func (t *NatsTransport) setConn(conn *nats.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
}
