// Package store persists the engine's local state (settings, seen-record cache,
// recent entries) as JSON documents in a key-value store.
package store

import (
	"context"
	"encoding/json"
)

// Keys used by the engine.
const (
	KeySettings      = "settings"
	KeySeenRecords   = "seen_records"
	KeyRecentEntries = "recent_entries"
)

// KV is implemented by the SQLite and Redis backends.
type KV interface {
	// GetJSON decodes the value at key into out; false when the key is absent.
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	_ KV = (*DB)(nil)
	_ KV = (*Redis)(nil)
)

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}
