package command

import (
	"fmt"
	"net"

	"github.com/pixil98/go-errors"
)

type MetricsConfig struct {
	Addr string `json:"addr"`
}

func (c *MetricsConfig) validate() error {
	el := errors.NewErrorList()

	if c.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			el.Add(fmt.Errorf("metrics: parsing addr: %w", err))
		}
	}

	return el.Err()
}

func (c *MetricsConfig) enabled() bool {
	return c.Addr != ""
}
