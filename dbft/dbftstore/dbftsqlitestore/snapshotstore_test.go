package dbftsqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbft-engine/dbft/dbft/dbftstore"
	"github.com/dbft-engine/dbft/dbft/dbftstore/dbftsqlitestore"
)

var _ dbftstore.SnapshotStore = (*dbftsqlitestore.SnapshotStore)(nil)

func newStore(t *testing.T) *dbftsqlitestore.SnapshotStore {
	t.Helper()

	s, err := dbftsqlitestore.NewSnapshotStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestSnapshotStore_PutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t)
	key := []byte("round/1")

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Put(ctx, key, []byte("alpha")))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), got)

	// Put on an existing key replaces the value.
	require.NoError(t, s.Put(ctx, key, []byte("beta")))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), got)

	require.NoError(t, s.Delete(ctx, key))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Delete(ctx, key))
}

func TestSnapshotStore_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t)

	require.NoError(t, s.Put(ctx, []byte("round/1"), []byte("alpha")))
	require.NoError(t, s.Put(ctx, []byte("round/2"), []byte("beta")))
	require.NoError(t, s.Delete(ctx, []byte("round/1")))

	got, err := s.Get(ctx, []byte("round/2"))
	require.NoError(t, err)
	require.Equal(t, []byte("beta"), got)
}

func TestSnapshotStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "snapshots.db")

	s, err := dbftsqlitestore.NewSnapshotStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, []byte("round/1"), []byte("alpha")))
	require.NoError(t, s.Close())

	reopened, err := dbftsqlitestore.NewSnapshotStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, []byte("round/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("alpha"), got)
}
