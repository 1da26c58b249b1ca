package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/messaging"
	"github.com/pixil98/go-mailbot/internal/transport"
)

type TransportType int

const (
	TransportTypeWebsocket TransportType = iota
	TransportTypeNats
)

func (tt *TransportType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "websocket":
		*tt = TransportTypeWebsocket
	case "nats":
		*tt = TransportTypeNats
	default:
		return fmt.Errorf("unknown transport type: %s", text)
	}
	return nil
}

type TransportConfig struct {
	Type          TransportType `json:"type"`
	URL           string        `json:"url"`
	RetryDelay    string        `json:"retry_delay"`
	DialAttempts  int           `json:"dial_attempts"`
	SubjectPrefix string        `json:"subject_prefix"`
	Session       string        `json:"session"`
	Token         string        `json:"token"`
}

func (c *TransportConfig) validate(embedded NatsConfig) error {
	el := errors.NewErrorList()

	if c.RetryDelay != "" {
		if _, err := time.ParseDuration(c.RetryDelay); err != nil {
			el.Add(fmt.Errorf("transport: parsing retry_delay: %w", err))
		}
	}

	if c.DialAttempts < 0 {
		el.Add(fmt.Errorf("transport: dial_attempts cannot be negative"))
	}

	switch c.Type {
	case TransportTypeWebsocket:
		if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
			el.Add(fmt.Errorf("transport: url must be a ws:// or wss:// url"))
		}
	case TransportTypeNats:
		if c.URL == "" && !embedded.Enabled {
			el.Add(fmt.Errorf("transport: url is required unless the embedded nats server is enabled"))
		}
		if c.URL == "" && embedded.Port == -1 {
			el.Add(fmt.Errorf("transport: url is required when the embedded nats server uses a random port"))
		}
	}

	return el.Err()
}

func (c *TransportConfig) retryDelay() (time.Duration, bool) {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 0, false
	}
	return d, true
}

// buildTransport connects to the embedded broker, with its token, when no url
// is configured.
func (c *TransportConfig) buildTransport(bc BotConfig, nc NatsConfig, embedded *messaging.NatsServer) transport.Transport {
	switch c.Type {
	case TransportTypeNats:
		url, token := c.URL, c.Token
		if url == "" && embedded != nil {
			url = embedded.ClientURL()
			if token == "" {
				token = nc.Token
			}
		}

		var opts []transport.NatsOpt
		if c.SubjectPrefix != "" {
			opts = append(opts, transport.WithSubjectPrefix(c.SubjectPrefix))
		}
		if c.Session != "" {
			opts = append(opts, transport.WithSession(c.Session))
		}
		if token != "" {
			opts = append(opts, transport.WithToken(token))
		}
		if d, ok := c.retryDelay(); ok {
			opts = append(opts, transport.WithReconnectWait(d))
		}
		return transport.NewNatsTransport(url, bc.Name, opts...)

	default:
		var opts []transport.WebsocketOpt
		if bc.Ident != "" {
			opts = append(opts, transport.WithIdent(bc.Ident))
		}
		if d, ok := c.retryDelay(); ok {
			opts = append(opts, transport.WithRetryDelay(d))
		}
		if c.DialAttempts > 0 {
			opts = append(opts, transport.WithDialAttempts(c.DialAttempts))
		}
		return transport.NewWebsocketTransport(c.URL, bc.Name, opts...)
	}
}
