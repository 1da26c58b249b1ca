package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/bot"
	"github.com/pixil98/go-mailbot/internal/delivery"
	"github.com/pixil98/go-mailbot/internal/presence"
	"golang.org/x/time/rate"
)

type BotConfig struct {
	Name         string      `json:"name"`
	Ident        string      `json:"ident"`
	GuestPrefix  string      `json:"guest_prefix"`
	MessageDelay string      `json:"message_delay"`
	SendRate     float64     `json:"send_rate"`
	Replies      bot.Replies `json:"replies"`
}

func (c *BotConfig) validate() error {
	el := errors.NewErrorList()

	if c.Name == "" {
		el.Add(fmt.Errorf("bot: name is required"))
	}

	if c.MessageDelay != "" {
		d, err := time.ParseDuration(c.MessageDelay)
		if err != nil {
			el.Add(fmt.Errorf("bot: parsing message_delay: %w", err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("bot: message_delay must be positive"))
		}
	}

	if c.SendRate < 0 {
		el.Add(fmt.Errorf("bot: send_rate cannot be negative"))
	}

	if err := c.Replies.Validate(); err != nil {
		el.Add(fmt.Errorf("bot: %w", err))
	}

	return el.Err()
}

func (c *BotConfig) messageDelay() time.Duration {
	d, err := time.ParseDuration(c.MessageDelay)
	if err != nil || d <= 0 {
		return delivery.DefaultDelay
	}
	return d
}

// schedulerOpts paces batch deliveries. A zero send_rate leaves them unlimited.
func (c *BotConfig) schedulerOpts() []delivery.SchedulerOpt {
	opts := []delivery.SchedulerOpt{delivery.WithDelay(c.messageDelay())}
	if c.SendRate > 0 {
		opts = append(opts, delivery.WithRateLimit(rate.NewLimiter(rate.Limit(c.SendRate), 1)))
	}
	return opts
}

func (c *BotConfig) classifier() presence.Classifier {
	prefix := c.GuestPrefix
	if prefix == "" {
		prefix = presence.DefaultGuestPrefix
	}
	return presence.NewClassifier(prefix)
}
