package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

const defaultTickInterval = 2 * time.Second

type Config struct {
	TickInterval string          `json:"tick_interval"`
	Bot          BotConfig       `json:"bot"`
	Log          LogConfig       `json:"log"`
	Storage      StorageConfig   `json:"storage"`
	Transport    TransportConfig `json:"transport"`
	Nats         NatsConfig      `json:"nats"`
	Console      ConsoleConfig   `json:"console"`
	Metrics      MetricsConfig   `json:"metrics"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
		}
	}

	el.Add(c.Bot.validate())
	el.Add(c.Log.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Transport.validate(c.Nats))
	el.Add(c.Nats.validate())
	el.Add(c.Console.validate())
	el.Add(c.Metrics.validate())

	return el.Err()
}

func (c *Config) tickInterval() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return defaultTickInterval
	}
	return d
}
