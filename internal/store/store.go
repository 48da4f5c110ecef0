// Package store is the local key-value persistence layer. Each stateful
// component serializes a whole collection to one well-known key; malformed or
// missing data always degrades to an empty collection.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Well-known keys for the persisted collections.
const (
	KeyExperiments    = "patternlab:experiments"
	KeyExperimentLogs = "patternlab:experiment_logs"
	KeySignals        = "patternlab:signals"
	KeySignalEvents   = "patternlab:signal_events"
)

// KV is the minimal key-value contract the core relies on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SetJSON marshals v and stores it without expiry.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, raw, 0)
}

// GetJSON loads key into dest. A missing key or undecodable payload leaves
// dest untouched and reports ok=false; only transport errors are returned.
func GetJSON(ctx context.Context, kv KV, key string, dest any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, nil
	}
	return true, nil
}
