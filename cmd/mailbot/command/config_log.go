package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/logging"
)

type LogConfig struct {
	Level      string         `json:"level"`
	Format     logging.Format `json:"format"`
	File       string         `json:"file"`
	MaxSizeMB  int            `json:"max_size_mb"`
	MaxBackups int            `json:"max_backups"`
	MaxAgeDays int            `json:"max_age_days"`
	Compress   bool           `json:"compress"`
}

func (c *LogConfig) validate() error {
	el := errors.NewErrorList()

	if _, err := c.level(); err != nil {
		el.Add(err)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		el.Add(fmt.Errorf("log: rotation limits cannot be negative"))
	}

	return el.Err()
}

func (c *LogConfig) level() (slog.Level, error) {
	var l slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return l, fmt.Errorf("log: parsing level: %w", err)
	}
	return l, nil
}

// install makes the configured logger the process default.
func (c *LogConfig) install() (io.Closer, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.NewLogger(os.Stdout, logging.Options{
		Level:      level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	})
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return closer, nil
}
