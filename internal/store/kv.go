// Package store defines the key-value persistence contract shared by
// the performance and prediction trackers, with interchangeable
// backends. The core never special-cases a backend.
package store

import (
	"context"
)

// KV is the storage contract: get by key, set by key, and list every
// entry under a key prefix. Values are opaque JSON blobs.
type KV interface {
	// Get returns the value for key. The bool is false when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Query returns all key/value pairs whose key starts with prefix.
	Query(ctx context.Context, prefix string) (map[string][]byte, error)
}
