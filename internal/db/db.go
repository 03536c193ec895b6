package db

import (
	"context"
	"time"
)

// Store is the key-value database facade used by durable evidence repositories.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashUpdate sets and deletes fields of one hash.
type HashUpdate struct {
	Key    string
	Set    map[string]string
	Delete []string
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	// HUpdateMulti applies several updates atomically in one round-trip, in order.
	HUpdateMulti(ctx context.Context, updates []HashUpdate) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}
