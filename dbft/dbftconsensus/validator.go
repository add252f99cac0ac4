package dbftconsensus

import (
	"fmt"
	"slices"

	"github.com/dbft-engine/dbft/dcrypto"
)

// ValidatorID is the stable identity of a committee member within a round.
// IDs are small, totally ordered, and unique within a [ValidatorSet].
type ValidatorID uint16

// Validator is a single committee member.
type Validator struct {
	ID ValidatorID

	PubKey dcrypto.PubKey

	// Optional human-readable name, only used for diagnostics.
	Alias string
}

// ValidatorSet is the immutable, id-sorted committee for a round.
//
// A ValidatorSet is safe to share read-only across the consensus state,
// snapshots, and signature verification;
// committee membership never changes for the lifetime of the set.
type ValidatorSet struct {
	vals []Validator
}

// NewValidatorSet returns the set of the given validators, sorted by ID.
// It returns an error if two validators share an ID.
func NewValidatorSet(vals []Validator) (ValidatorSet, error) {
	sorted := slices.Clone(vals)
	slices.SortFunc(sorted, func(a, b Validator) int {
		return int(a.ID) - int(b.ID)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return ValidatorSet{}, fmt.Errorf(
				"duplicate validator id %d in committee", sorted[i].ID,
			)
		}
	}

	return ValidatorSet{vals: sorted}, nil
}

func (s ValidatorSet) Len() int {
	return len(s.vals)
}

// Validators returns the committee members in ID order.
// The returned slice must not be modified.
func (s ValidatorSet) Validators() []Validator {
	return s.vals
}

// Quorum returns the minimum number of agreeing votes
// required to finalize a decision: floor(2n/3)+1.
func (s ValidatorSet) Quorum() int {
	return (2*len(s.vals))/3 + 1
}

// Primary returns the ID of the leader for the given height and view.
// The second return is false when the committee is empty.
func (s ValidatorSet) Primary(height uint64, view ViewNumber) (ValidatorID, bool) {
	n := uint64(len(s.vals))
	if n == 0 {
		return 0, false
	}

	idx := (height%n + uint64(view)%n) % n
	return s.vals[idx].ID, true
}

// IndexOf returns the position of the validator with the given ID,
// or -1 when the ID is not in the committee.
func (s ValidatorSet) IndexOf(id ValidatorID) int {
	for i, v := range s.vals {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the validator with the given ID.
func (s ValidatorSet) Get(id ValidatorID) (Validator, bool) {
	i := s.IndexOf(id)
	if i < 0 {
		return Validator{}, false
	}
	return s.vals[i], true
}

// IDs returns every committee member's ID, in order.
func (s ValidatorSet) IDs() []ValidatorID {
	out := make([]ValidatorID, len(s.vals))
	for i, v := range s.vals {
		out[i] = v.ID
	}
	return out
}
