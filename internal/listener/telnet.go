package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/iammegalith/telnet"
)

// TelnetListener serves console sessions over plain telnet. It carries no
// transport security, so bind it to a loopback or trusted address.
type TelnetListener struct {
	addr string
	cm   *ConnectionManager
}

func NewTelnetListener(host string, port uint16, cm *ConnectionManager) *TelnetListener {
	return &TelnetListener{
		addr: net.JoinHostPort(host, strconv.Itoa(int(port))),
		cm:   cm,
	}
}

func (l *TelnetListener) Start(ctx context.Context) error {
	sessions := newTelnetSessions(ctx, l.cm)
	svr := telnet.NewServer(l.addr, sessions)

	stop := context.AfterFunc(ctx, func() {
		svr.Stop()
		sessions.close()
	})
	defer stop()

	slog.InfoContext(ctx, "listening for telnet", "addr", l.addr)

	if err := svr.ListenAndServe(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("address %s is already in use (another mailbot running?)", l.addr)
		}
		return fmt.Errorf("serving telnet on %s: %w", l.addr, err)
	}

	return nil
}

// telnetSessions adapts the telnet server's callback to the connection
// manager. Sessions run on a context detached from the listener so they end
// only when close is called.
type telnetSessions struct {
	cm     *ConnectionManager
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newTelnetSessions(parent context.Context, cm *ConnectionManager) *telnetSessions {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &telnetSessions{cm: cm, ctx: ctx, cancel: cancel}
}

func (s *telnetSessions) HandleTelnet(conn *telnet.Connection) {
	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		if err := conn.Close(); err != nil {
			slog.DebugContext(s.ctx, "closing telnet connection", "error", err)
		}
	}()

	s.cm.AcceptConnection(s.ctx, conn)
}

func (s *telnetSessions) close() {
	s.cancel()
	s.wg.Wait()
}
