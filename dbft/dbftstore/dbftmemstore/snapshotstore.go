package dbftmemstore

import (
	"context"
	"sync"
)

// SnapshotStore is an in-memory [dbftstore.SnapshotStore],
// primarily for tests and single-process hosts.
type SnapshotStore struct {
	mu sync.Mutex

	vals map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		vals: make(map[string][]byte),
	}
}

func (s *SnapshotStore) Put(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	s.vals[string(key)] = v
	return nil
}

func (s *SnapshotStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vals[string(key)]
	if !ok {
		return nil, nil
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *SnapshotStore) Delete(_ context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.vals, string(key))
	return nil
}
