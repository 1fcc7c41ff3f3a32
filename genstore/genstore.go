// Package genstore keeps per-key generation counters.
//
// Tiers use them to avoid resurrecting invalidated values: the generation is
// snapshotted before a miss is forwarded to the next tier and the write-back
// only happens if no Invalidate bumped it in the meantime.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore (default) for in-process gens, or RedisGenStore when the
// tier's storage is shared between processes.
type GenStore[K comparable] interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key K) (uint64, error)
	// Bump atomically assigns key a generation greater than any handed out
	// before by this store and returns it.
	Bump(ctx context.Context, key K) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
