package listener

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

const busyMessage = "Too many console sessions, try again later.\n"

// SessionRunner serves one interactive connection.
type SessionRunner interface {
	RunSession(ctx context.Context, rw io.ReadWriter) error
}

type ManagerOpt func(*ConnectionManager)

// WithMaxSessions caps concurrent sessions across every listener sharing the
// manager. Zero means no cap.
func WithMaxSessions(n int) ManagerOpt {
	return func(m *ConnectionManager) {
		m.max = int64(n)
	}
}

// ConnectionManager hands accepted connections to the session runner and
// counts the sessions in flight.
type ConnectionManager struct {
	runner SessionRunner
	max    int64
	active atomic.Int64
}

func NewConnectionManager(runner SessionRunner, opts ...ManagerOpt) *ConnectionManager {
	m := &ConnectionManager{
		runner: runner,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	n := m.active.Add(1)
	defer m.active.Add(-1)

	if m.max > 0 && n > m.max {
		slog.WarnContext(ctx, "rejecting console session", "active", n-1, "max", m.max)
		_, _ = io.WriteString(conn, busyMessage)
		return
	}

	if err := m.runner.RunSession(ctx, conn); err != nil {
		slog.WarnContext(ctx, "console session", "error", err)
	}
}

// Active returns the number of connections currently held, including any
// being turned away.
func (m *ConnectionManager) Active() int {
	return int(m.active.Load())
}
