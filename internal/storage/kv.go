// Package storage provides the persisted key-value store behind the
// aggregation store. Every key holds one JSON document; an absent key means
// the caller's defaults.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

// Persisted keys.
const (
	KeySettings          = "settings"
	KeyJobTimers         = "jobTimers"
	KeyPriceHistories    = "priceHistories"
	KeyCurrentSession    = "currentSession"
	KeyLastHiscoreSearch = "lastHiscoreSearch"
)

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = errors.New("key not found")

// KV is a flat key-value store of JSON documents.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Load decodes the document stored under key. found is false when the key is
// absent; v is then left untouched.
func Load[T any](ctx context.Context, kv KV, key string, v *T) (found bool, err error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Save encodes v and stores it under key.
func Save(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Open creates the backend named by cfg.Driver.
func Open(cfg config.StorageConfig, log *logger.Logger) (KV, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(config.ExpandHome(cfg.Path))
	case "file":
		return NewFile(config.ExpandHome(cfg.Path), log), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
