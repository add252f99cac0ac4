package dcrypto

import "context"

// Signer is the capability to produce signatures
// that validators in a committee can verify
// against the signer's public key.
//
// Signatures are opaque to the consensus core;
// only the concrete PubKey implementation can interpret them.
type Signer interface {
	PubKey() PubKey

	Sign(ctx context.Context, input []byte) ([]byte, error)
}
