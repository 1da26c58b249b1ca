package listener

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
)

type SshOpt func(*SshListener)

// WithAuthorizedKeys restricts logins to the given public keys. Without it
// any client may open a session and the console's own password applies.
func WithAuthorizedKeys(keys []ssh.PublicKey) SshOpt {
	return func(l *SshListener) {
		l.authorized = keys
	}
}

// ParseAuthorizedKeys reads every key from an authorized_keys document.
func ParseAuthorizedKeys(data []byte) ([]ssh.PublicKey, error) {
	var keys []ssh.PublicKey
	for len(bytes.TrimSpace(data)) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing authorized key %d: %w", len(keys)+1, err)
		}
		keys = append(keys, key)
		data = rest
	}
	return keys, nil
}

// SshListener serves console sessions over ssh shell channels.
type SshListener struct {
	addr       string
	cm         *ConnectionManager
	hostKey    ssh.Signer
	authorized []ssh.PublicKey

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewSshListener(host string, port uint16, cm *ConnectionManager, hostKey ssh.Signer, opts ...SshOpt) *SshListener {
	l := &SshListener{
		addr:    net.JoinHostPort(host, strconv.Itoa(int(port))),
		cm:      cm,
		hostKey: hostKey,
		ready:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Ready is closed once the listener is accepting connections.
func (l *SshListener) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound address once Ready is closed.
func (l *SshListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *SshListener) serverConfig() *ssh.ServerConfig {
	config := &ssh.ServerConfig{}
	if len(l.authorized) == 0 {
		config.NoClientAuth = true
	} else {
		config.PublicKeyCallback = l.checkKey
	}
	config.AddHostKey(l.hostKey)
	return config
}

func (l *SshListener) checkKey(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
	offered := key.Marshal()
	for _, k := range l.authorized {
		if bytes.Equal(k.Marshal(), offered) {
			return &ssh.Permissions{
				Extensions: map[string]string{"fingerprint": ssh.FingerprintSHA256(key)},
			}, nil
		}
	}
	return nil, fmt.Errorf("key %s is not authorized for %s", ssh.FingerprintSHA256(key), meta.User())
}

func (l *SshListener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.addr, err)
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()
	close(l.ready)

	slog.InfoContext(ctx, "listening for ssh", "addr", ln.Addr().String(), "key_auth", len(l.authorized) > 0)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	// Sessions outlive Accept errors but not shutdown.
	sessCtx, cancelSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSessions()

	config := l.serverConfig()
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				cancelSessions()
				return nil
			}
			slog.ErrorContext(ctx, "accepting ssh connection", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serveConn(sessCtx, conn, config)
		}()
	}
}

func (l *SshListener) serveConn(ctx context.Context, conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		slog.WarnContext(ctx, "ssh handshake", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	defer sshConn.Close()

	attrs := []any{"remote", conn.RemoteAddr(), "user", sshConn.User()}
	if p := sshConn.Permissions; p != nil && p.Extensions["fingerprint"] != "" {
		attrs = append(attrs, "fingerprint", p.Extensions["fingerprint"])
	}
	slog.InfoContext(ctx, "ssh console connected", attrs...)

	stop := context.AfterFunc(ctx, func() { sshConn.Close() })
	defer stop()

	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		l.serveChannel(ctx, nc)
	}
}

func (l *SshListener) serveChannel(ctx context.Context, nc ssh.NewChannel) {
	ch, requests, err := nc.Accept()
	if err != nil {
		slog.ErrorContext(ctx, "accepting ssh channel", "error", err)
		return
	}
	defer ch.Close()

	select {
	case ok := <-awaitShell(requests):
		if ok {
			l.cm.AcceptConnection(ctx, newLineConn(ch))
		}
	case <-ctx.Done():
	}
}

// awaitShell answers channel requests and reports whether the client asked for
// a shell before the channel closed. Clients hold back input until that reply.
// PTYs are refused so the client keeps local echo and line editing.
func awaitShell(requests <-chan *ssh.Request) <-chan bool {
	shell := make(chan bool, 1)
	go func() {
		opened := false
		for req := range requests {
			ok := req.Type == "shell" && !opened
			_ = req.Reply(ok, nil)
			if ok {
				opened = true
				shell <- true
			}
		}
		if !opened {
			shell <- false
		}
	}()
	return shell
}
