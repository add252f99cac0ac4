package dcryptotest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbft-engine/dbft/dcrypto/dcryptotest"
)

func TestDeterministicEd25519Signers(t *testing.T) {
	t.Parallel()

	first := dcryptotest.DeterministicEd25519Signers(4)
	second := dcryptotest.DeterministicEd25519Signers(4)
	require.Len(t, second, 4)

	for i := range first {
		require.Truef(t, first[i].PubKey().Equal(second[i].PubKey()),
			"signer %d differs across calls", i)
		for j := i + 1; j < len(first); j++ {
			require.Falsef(t, first[i].PubKey().Equal(first[j].PubKey()),
				"signers %d and %d share a key", i, j)
		}
	}

	// Growing the committee keeps the existing prefix.
	larger := dcryptotest.DeterministicEd25519Signers(6)
	for i := range first {
		require.True(t, first[i].PubKey().Equal(larger[i].PubKey()))
	}
}
