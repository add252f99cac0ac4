package dcrypto

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
)

type Ed25519PubKey ed25519.PublicKey

func NewEd25519PubKey(b []byte) (PubKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf(
			"cannot build ed25519 public key: expected %d bytes, got %d",
			ed25519.PublicKeySize, len(b),
		)
	}

	return Ed25519PubKey(b), nil
}

func (e Ed25519PubKey) PubKeyBytes() []byte {
	return []byte(e)
}

func (e Ed25519PubKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(e), msg, sig)
}

func (e Ed25519PubKey) Equal(other PubKey) bool {
	o, ok := other.(Ed25519PubKey)
	if !ok {
		return false
	}

	return bytes.Equal(e, o)
}

type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) Ed25519Signer {
	return Ed25519Signer{priv: priv}
}

func (s Ed25519Signer) PubKey() PubKey {
	return Ed25519PubKey(s.priv.Public().(ed25519.PublicKey))
}

func (s Ed25519Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, input), nil
}
