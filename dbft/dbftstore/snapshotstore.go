// Package dbftstore declares the storage capability
// the consensus engine persists snapshots through.
//
// The store sees only opaque bytes under round-identifying keys;
// snapshot encoding is internal to the engine.
// Concurrent writers for the same key are unsupported
// and must be prevented by the host.
package dbftstore

import "context"

// SnapshotStore is a column-keyed byte store.
type SnapshotStore interface {
	// Put stores value under key, replacing any prior value.
	Put(ctx context.Context, key, value []byte) error

	// Get returns the value stored under key,
	// or nil with no error when the key is absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Delete removes the value under key.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, key []byte) error
}
