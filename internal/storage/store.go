// Package storage provides the key-value persistence capability the dashboard
// keeps its watchlist, users and sessions in. Values are JSON text.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a synchronous key-value store with textual values.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// CorruptError reports a stored value that is not valid JSON for the type it
// is read into.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("storage: corrupt value for %q: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// GetJSON reads key and decodes it into v. It returns ErrNotFound for a
// missing key and a *CorruptError for undecodable data.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &CorruptError{Key: key, Err: err}
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
