package dcryptotest

import (
	"crypto/ed25519"
	"encoding/binary"
	"sync"

	"github.com/dbft-engine/dbft/dcrypto"
)

var (
	sMu          sync.Mutex
	cachedSigner []dcrypto.Ed25519Signer
)

// DeterministicEd25519Signers returns n ed25519 signers
// whose keys are derived from fixed seeds.
//
// Deterministic keys keep logs involving keys or IDs
// stable across test runs, and the generated signers are cached,
// so repeated calls cost effectively nothing beyond the first.
func DeterministicEd25519Signers(n int) []dcrypto.Ed25519Signer {
	sMu.Lock()
	defer sMu.Unlock()

	for i := len(cachedSigner); i < n; i++ {
		seed := make([]byte, ed25519.SeedSize)
		copy(seed, "dbft-deterministic-signer")
		binary.BigEndian.PutUint64(seed[ed25519.SeedSize-8:], uint64(i))

		cachedSigner = append(
			cachedSigner,
			dcrypto.NewEd25519Signer(ed25519.NewKeyFromSeed(seed)),
		)
	}

	out := make([]dcrypto.Ed25519Signer, n)
	copy(out, cachedSigner[:n])
	return out
}
