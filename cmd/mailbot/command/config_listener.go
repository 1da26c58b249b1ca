package command

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/listener"
	"golang.org/x/crypto/ssh"
)

const defaultLoginDelay = time.Second

type ListenerType int

const (
	ListenerTypeTelnet ListenerType = iota
	ListenerTypeSSH
)

func (lt *ListenerType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "telnet":
		*lt = ListenerTypeTelnet
	case "ssh":
		*lt = ListenerTypeSSH
	default:
		return fmt.Errorf("unknown listener type: %s", text)
	}
	return nil
}

// ConsoleConfig configures the operator console and where it is served.
type ConsoleConfig struct {
	Password    string           `json:"password"`
	LoginDelay  string           `json:"login_delay"`
	Prompt      string           `json:"prompt"`
	Width       uint             `json:"width"`
	MaxSessions int              `json:"max_sessions"`
	Listeners   []ListenerConfig `json:"listeners"`
}

func (c *ConsoleConfig) validate() error {
	el := errors.NewErrorList()

	if c.LoginDelay != "" {
		if _, err := time.ParseDuration(c.LoginDelay); err != nil {
			el.Add(fmt.Errorf("console: parsing login_delay: %w", err))
		}
	}
	if c.MaxSessions < 0 {
		el.Add(fmt.Errorf("console: max_sessions cannot be negative"))
	}
	for i, l := range c.Listeners {
		if err := l.validate(); err != nil {
			el.Add(fmt.Errorf("console listener %d: %w", i, err))
		}
	}
	if len(c.Listeners) > 0 && c.Password == "" {
		slog.Warn("console listeners configured without a password")
	}

	return el.Err()
}

func (c *ConsoleConfig) loginDelay() time.Duration {
	d, err := time.ParseDuration(c.LoginDelay)
	if err != nil {
		return defaultLoginDelay
	}
	return d
}

type ListenerConfig struct {
	Protocol    ListenerType `json:"protocol"`
	Host        string       `json:"host"`
	Port        uint16       `json:"port"`
	HostKeyPath string       `json:"host_key_path,omitempty"`

	AuthorizedKeysPath string `json:"authorized_keys_path,omitempty"`
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}
	if cl.Protocol != ListenerTypeSSH && cl.HostKeyPath != "" {
		el.Add(fmt.Errorf("host_key_path is only used by ssh listeners"))
	}
	if cl.Protocol != ListenerTypeSSH && cl.AuthorizedKeysPath != "" {
		el.Add(fmt.Errorf("authorized_keys_path is only used by ssh listeners"))
	}

	return el.Err()
}

type listenerWorker interface {
	Start(context.Context) error
}

func (cl *ListenerConfig) BuildListener(cm *listener.ConnectionManager) (listenerWorker, error) {
	switch cl.Protocol {
	case ListenerTypeTelnet:
		return listener.NewTelnetListener(cl.Host, cl.Port, cm), nil
	case ListenerTypeSSH:
		hostKey, err := cl.loadOrGenerateHostKey()
		if err != nil {
			return nil, fmt.Errorf("setting up ssh host key: %w", err)
		}
		var opts []listener.SshOpt
		if cl.AuthorizedKeysPath != "" {
			data, err := os.ReadFile(cl.AuthorizedKeysPath)
			if err != nil {
				return nil, fmt.Errorf("reading authorized keys %q: %w", cl.AuthorizedKeysPath, err)
			}
			keys, err := listener.ParseAuthorizedKeys(data)
			if err != nil {
				return nil, fmt.Errorf("loading authorized keys %q: %w", cl.AuthorizedKeysPath, err)
			}
			opts = append(opts, listener.WithAuthorizedKeys(keys))
		}
		return listener.NewSshListener(cl.Host, cl.Port, cm, hostKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown listener type: %v", cl.Protocol)
	}
}

func (cl *ListenerConfig) loadOrGenerateHostKey() (ssh.Signer, error) {
	if cl.HostKeyPath != "" {
		keyBytes, err := os.ReadFile(cl.HostKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading host key %q: %w", cl.HostKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing host key %q: %w", cl.HostKeyPath, err)
		}
		return signer, nil
	}

	slog.Warn("no host_key_path configured for ssh listener, generating ephemeral key")
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer from ephemeral key: %w", err)
	}
	return signer, nil
}
