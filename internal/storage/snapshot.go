package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot reads and writes a whole value of type T under a single key.
type Snapshot[T any] struct {
	backend Backend
	key     string
}

func NewSnapshot[T any](b Backend, key string) *Snapshot[T] {
	return &Snapshot[T]{backend: b, key: key}
}

func (s *Snapshot[T]) Key() string {
	return s.key
}

// Load returns the stored value. ErrNotFound is passed through unwrapped so
// callers can tell a fresh install from a damaged snapshot.
func (s *Snapshot[T]) Load(ctx context.Context) (T, error) {
	var v T

	data, err := s.backend.Read(ctx, s.key)
	if err != nil {
		return v, err
	}

	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("unmarshalling %s: %w", s.key, err)
	}

	return v, nil
}

func (s *Snapshot[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", s.key, err)
	}

	return s.backend.Write(ctx, s.key, data)
}
