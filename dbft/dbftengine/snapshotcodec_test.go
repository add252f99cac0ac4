package dbftengine_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dbft/dbftconsensus/dbftconsensustest"
	"github.com/dbft-engine/dbft/dbft/dbftengine"
)

func midRoundSnapshot(t *testing.T, fx *dbftconsensustest.Fixture) dbftconsensus.SnapshotState {
	t.Helper()

	e := newEngine(fx)
	proposal := dbftconsensus.Hash{0xAB}

	_, err := e.ProcessMessage(fx.SignedMessage(
		testPrimaryIdx, testHeight, 0,
		dbftconsensus.PrepareRequest{
			Proposal: proposal,
			Height:   testHeight,
			TxHashes: []dbftconsensus.Hash{{0x01}, {0x02}},
		},
	))
	require.NoError(t, err)

	for _, idx := range []int{testPrimaryIdx, 0} {
		_, err = e.ProcessMessage(fx.SignedMessage(
			idx, testHeight, 0,
			dbftconsensus.PrepareResponse{Proposal: proposal},
		))
		require.NoError(t, err)
	}

	_, err = e.ProcessMessage(fx.SignedMessage(
		0, testHeight, 0,
		dbftconsensus.Commit{Proposal: proposal},
	))
	require.NoError(t, err)

	return e.Snapshot()
}

func TestSnapshotCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	snap := midRoundSnapshot(t, fx)

	data, err := dbftengine.EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := dbftengine.DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, snap, decoded)
}

func TestSnapshotCodec_RoundTripEmptyRound(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	snap := newEngine(fx).Snapshot()
	require.False(t, snap.HasProposal)

	data, err := dbftengine.EncodeSnapshot(snap)
	require.NoError(t, err)

	decoded, err := dbftengine.DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, snap, decoded)
}

func TestSnapshotCodec_EncodingIsDeterministic(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	snap := midRoundSnapshot(t, fx)

	first, err := dbftengine.EncodeSnapshot(snap)
	require.NoError(t, err)
	second, err := dbftengine.EncodeSnapshot(snap)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSnapshotCodec_DecodeRejectsCorruption(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	data, err := dbftengine.EncodeSnapshot(midRoundSnapshot(t, fx))
	require.NoError(t, err)

	t.Run("truncation at every length", func(t *testing.T) {
		t.Parallel()
		for i := range data {
			_, err := dbftengine.DecodeSnapshot(data[:i])
			require.Errorf(t, err, "truncation to %d bytes must fail", i)
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		t.Parallel()
		_, err := dbftengine.DecodeSnapshot(append(append([]byte{}, data...), 0x00))
		require.ErrorContains(t, err, "trailing")
	})

	t.Run("unsupported version", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte{}, data...)
		bad[0] = 0xFF
		_, err := dbftengine.DecodeSnapshot(bad)
		require.ErrorContains(t, err, "unsupported snapshot version")
	})

	t.Run("message count beyond the data", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte{}, data...)
		// Message count of the first participation section:
		// 15-byte header, 32-byte proposal, section count, kind tag.
		binary.LittleEndian.PutUint32(bad[52:56], 0xFFFF_FFFF)
		_, err := dbftengine.DecodeSnapshot(bad)
		require.ErrorContains(t, err, "short snapshot")
	})

	t.Run("invalid proposal tag", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte{}, data...)
		bad[14] = 7
		_, err := dbftengine.DecodeSnapshot(bad)
		require.ErrorContains(t, err, "invalid proposal tag")
	})
}
