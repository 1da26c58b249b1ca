package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "snapshot/"

// PebbleBackend keeps snapshots in an embedded pebble database.
type PebbleBackend struct {
	db *pebble.DB
}

func NewPebbleBackend(path string) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %q: %w", path, err)
	}

	return &PebbleBackend{db: db}, nil
}

func (b *PebbleBackend) Read(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	v, closer, err := b.db.Get([]byte(pebbleKeyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	defer func() { _ = closer.Close() }()

	// The value is only valid until closer is closed
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *PebbleBackend) Write(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := b.db.Set([]byte(pebbleKeyPrefix+key), data, pebble.Sync); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (b *PebbleBackend) Close() error {
	return b.db.Close()
}
