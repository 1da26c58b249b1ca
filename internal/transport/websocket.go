package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultDialAttempts = 12
	defaultRetryDelay   = 500 * time.Millisecond
	defaultEventBuffer  = 256
)

type WebsocketOpt func(*WebsocketTransport)

// WithIdent sets the identity string sent in the hello envelope.
func WithIdent(ident string) WebsocketOpt {
	return func(t *WebsocketTransport) {
		t.ident = ident
	}
}

// WithRetryDelay sets the pause between dial attempts and reconnects.
func WithRetryDelay(d time.Duration) WebsocketOpt {
	return func(t *WebsocketTransport) {
		t.retryDelay = d
	}
}

// WithDialAttempts sets how many dials are tried before a reconnect round gives up.
func WithDialAttempts(n int) WebsocketOpt {
	return func(t *WebsocketTransport) {
		t.dialAttempts = n
	}
}

// WebsocketTransport speaks the envelope protocol to a game server over a
// websocket, reconnecting whenever the connection drops.
type WebsocketTransport struct {
	url          string
	name         string
	ident        string
	clientID     string
	retryDelay   time.Duration
	dialAttempts int

	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebsocketTransport(url, name string, opts ...WebsocketOpt) *WebsocketTransport {
	t := &WebsocketTransport{
		url:          url,
		name:         name,
		clientID:     uuid.New().String(),
		retryDelay:   defaultRetryDelay,
		dialAttempts: defaultDialAttempts,
		events:       make(chan Event, defaultEventBuffer),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *WebsocketTransport) Events() <-chan Event {
	return t.events
}

// Start connects and reads events until ctx is cancelled.
func (t *WebsocketTransport) Start(ctx context.Context) error {
	if !strings.HasPrefix(t.url, "ws://") && !strings.HasPrefix(t.url, "wss://") {
		return fmt.Errorf("invalid websocket url: %s", t.url)
	}

	for {
		conn, err := t.dialWithRetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.WarnContext(ctx, "unable to reach game server", "url", t.url, "error", err)
		} else {
			err = t.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			slog.WarnContext(ctx, "game server connection lost", "url", t.url, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.retryDelay):
		}
	}
}

func (t *WebsocketTransport) serve(ctx context.Context, conn *websocket.Conn) error {
	t.setConn(conn)
	defer t.setConn(nil)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	if err := t.send(typeHello, helloPayload{Name: t.name, Ident: t.ident, ClientID: t.clientID}); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}
	slog.InfoContext(ctx, "connected to game server", "url", t.url, "client_id", t.clientID)

	return t.readLoop(ctx, conn)
}

func (t *WebsocketTransport) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			slog.WarnContext(ctx, "discarding game event", "error", err)
			continue
		}

		select {
		case t.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *WebsocketTransport) SendPrivate(_ context.Context, to, text string) error {
	return t.send(typeChat, chatPayload{Text: Compose(to, text)})
}

func (t *WebsocketTransport) RequestRoster(_ context.Context) error {
	return t.send(typeRoster, nil)
}

func (t *WebsocketTransport) send(typ string, payload any) error {
	data, err := encodeEnvelope(typ, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebsocketTransport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
}

func (t *WebsocketTransport) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < t.dialAttempts; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.retryDelay):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no dial attempts configured")
	}
	return nil, lastErr
}
