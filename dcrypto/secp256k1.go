package dcrypto

import (
	"bytes"
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

type Secp256k1PubKey secp256k1.PublicKey

func NewSecp256k1PubKey(b []byte) (PubKey, error) {
	pubKey, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return (*Secp256k1PubKey)(pubKey), nil
}

func (e *Secp256k1PubKey) PubKeyBytes() []byte {
	return (*secp256k1.PublicKey)(e).SerializeCompressed()
}

func (e *Secp256k1PubKey) Verify(msg, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(msg, (*secp256k1.PublicKey)(e))
}

func (e *Secp256k1PubKey) Equal(other PubKey) bool {
	o, ok := other.(*Secp256k1PubKey)
	if !ok {
		return false
	}

	return bytes.Equal(e.PubKeyBytes(), o.PubKeyBytes())
}

type Secp256k1Signer struct {
	priv *secp256k1.PrivateKey
	pub  *Secp256k1PubKey
}

func NewSecp256k1Signer(priv *secp256k1.PrivateKey) Secp256k1Signer {
	return Secp256k1Signer{
		priv: priv,
		pub:  (*Secp256k1PubKey)(priv.PubKey()),
	}
}

func (s Secp256k1Signer) PubKey() PubKey {
	return s.pub
}

func (s Secp256k1Signer) Sign(_ context.Context, input []byte) ([]byte, error) {
	return ecdsa.Sign(s.priv, input).Serialize(), nil
}
