package command

import (
	"context"
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mailbot/internal/storage"
)

type StorageType int

const (
	StorageTypeFile StorageType = iota
	StorageTypePebble
	StorageTypeRedis
)

func (st *StorageType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "file":
		*st = StorageTypeFile
	case "pebble":
		*st = StorageTypePebble
	case "redis":
		*st = StorageTypeRedis
	default:
		return fmt.Errorf("unknown storage type: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Type  StorageType `json:"type"`
	Path  string      `json:"path"`
	Redis RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Type {
	case StorageTypeFile, StorageTypePebble:
		if c.Path == "" {
			el.Add(fmt.Errorf("storage: path is required"))
		}
	case StorageTypeRedis:
		if c.Redis.Address == "" {
			el.Add(fmt.Errorf("storage: redis.address is required"))
		}
		if c.Redis.DB < 0 {
			el.Add(fmt.Errorf("storage: redis.db cannot be negative"))
		}
	}

	return el.Err()
}

func (c *StorageConfig) buildBackend(ctx context.Context) (storage.Backend, error) {
	switch c.Type {
	case StorageTypePebble:
		return storage.NewPebbleBackend(c.Path)
	case StorageTypeRedis:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return storage.NewRedisBackend(ctx, storage.RedisOptions{
			Address:  c.Redis.Address,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		})
	default:
		return storage.NewFileBackend(c.Path)
	}
}
