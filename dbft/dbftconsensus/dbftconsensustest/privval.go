package dbftconsensustest

import (
	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dcrypto"
)

// PrivVal is the "private" view of a committee member,
// so that tests have access to the Signer backing the validator too.
type PrivVal struct {
	// The plain consensus validator.
	Val dbftconsensus.Validator

	Signer dcrypto.Signer
}

type PrivVals []PrivVal

func (vs PrivVals) Vals() []dbftconsensus.Validator {
	out := make([]dbftconsensus.Validator, len(vs))
	for i, v := range vs {
		out[i] = v.Val
	}
	return out
}

func (vs PrivVals) PubKeys() []dcrypto.PubKey {
	out := make([]dcrypto.PubKey, len(vs))
	for i, v := range vs {
		out[i] = v.Signer.PubKey()
	}
	return out
}
