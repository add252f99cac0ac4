package dbftconsensustest

import (
	"context"
	"fmt"

	petname "github.com/dustinkirkland/golang-petname"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dcrypto"
	"github.com/dbft-engine/dbft/dcrypto/dcryptotest"
)

// Fixture is a deterministic committee plus the signers behind it,
// with helpers to build authenticated messages for any member.
type Fixture struct {
	Set dbftconsensus.ValidatorSet

	PrivVals PrivVals
}

// DeterministicValidators returns n validators with sequential IDs
// and deterministic ed25519 keys.
//
// Deterministic keys keep logs involving keys or IDs stable
// across test runs, simplifying the debugging process.
func DeterministicValidators(n int) PrivVals {
	res := make(PrivVals, n)
	signers := dcryptotest.DeterministicEd25519Signers(n)

	for i := range res {
		res[i] = PrivVal{
			Val: dbftconsensus.Validator{
				ID:     dbftconsensus.ValidatorID(i),
				PubKey: signers[i].PubKey(),
				Alias:  fmt.Sprintf("%s-%d", petname.Generate(2, "-"), i),
			},
			Signer: signers[i],
		}
	}

	return res
}

// NewFixture returns a fixture with an n-member committee.
func NewFixture(n int) *Fixture {
	pv := DeterministicValidators(n)
	set, err := dbftconsensus.NewValidatorSet(pv.Vals())
	if err != nil {
		panic(fmt.Errorf("failed to build fixture committee: %w", err))
	}
	return &Fixture{Set: set, PrivVals: pv}
}

// NewState returns a fresh round record over the fixture committee.
func (f *Fixture) NewState(height uint64, view dbftconsensus.ViewNumber) *dbftconsensus.ConsensusState {
	return dbftconsensus.NewConsensusState(height, view, f.Set)
}

// PrimaryIndex returns the committee index of the primary
// for the given height and view.
func (f *Fixture) PrimaryIndex(height uint64, view dbftconsensus.ViewNumber) int {
	primary, ok := f.Set.Primary(height, view)
	if !ok {
		panic("fixture committee is empty")
	}
	return f.Set.IndexOf(primary)
}

// SignedMessage builds a correctly signed envelope
// from the committee member at the given index.
func (f *Fixture) SignedMessage(
	idx int,
	height uint64,
	view dbftconsensus.ViewNumber,
	msg dbftconsensus.ConsensusMessage,
) dbftconsensus.SignedMessage {
	sm := dbftconsensus.SignedMessage{
		Height:    height,
		View:      view,
		Validator: f.PrivVals[idx].Val.ID,
		Message:   msg,
	}

	digest := sm.Digest()
	sig, err := f.PrivVals[idx].Signer.Sign(context.Background(), digest[:])
	if err != nil {
		panic(fmt.Errorf("failed to sign fixture message: %w", err))
	}
	sm.Signature = sig
	return sm
}

// Signer exposes the signer backing the committee member
// at the given index, for tests producing bad signatures.
func (f *Fixture) Signer(idx int) dcrypto.Signer {
	return f.PrivVals[idx].Signer
}
