package dbftengine

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dbft/dbftstore"
)

// RoundKey returns the store key identifying the round at the given height.
// Views within a height share the key:
// a view change replaces the previous snapshot.
func RoundKey(height uint64) []byte {
	key := make([]byte, 0, 16+8)
	key = append(key, "consensus-state/"...)
	return binary.BigEndian.AppendUint64(key, height)
}

// PersistEngine writes the engine's current snapshot under key.
func PersistEngine(
	ctx context.Context,
	store dbftstore.SnapshotStore,
	key []byte,
	e *Engine,
) error {
	data, err := EncodeSnapshot(e.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// LoadEngine rebuilds an engine from the snapshot stored under key.
//
// It returns (nil, nil) when no snapshot is stored.
// Any decode failure, and any contained message that fails
// the same validation pipeline as live traffic,
// aborts the load with an error: persisted consensus state
// is never trusted without re-validation,
// forcing the host to fall back to height re-sync instead.
func LoadEngine(
	ctx context.Context,
	store dbftstore.SnapshotStore,
	vals dbftconsensus.ValidatorSet,
	key []byte,
) (*Engine, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	e, err := FromSnapshot(vals, snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot failed re-validation: %w", err)
	}
	return e, nil
}

// ClearSnapshot removes the persisted state under key,
// once the round it belongs to has finalized.
func ClearSnapshot(ctx context.Context, store dbftstore.SnapshotStore, key []byte) error {
	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}
