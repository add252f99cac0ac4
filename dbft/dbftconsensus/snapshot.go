package dbftconsensus

import "slices"

// SnapshotState is the immutable, persistable capture of a round.
//
// A snapshot is never trusted on restore:
// [StateFromSnapshot] replays every contained message through
// the live validation pipeline before the state is usable.
type SnapshotState struct {
	Height uint64
	View   ViewNumber

	Proposal    Hash
	HasProposal bool

	// Accepted messages per kind, in arrival order.
	Participation map[MessageKind][]SignedMessage

	// Still-owed votes per kind.
	Expected map[MessageKind][]ValidatorID
}

// Snapshot captures the round into an immutable value.
// The receiving state is unchanged.
func (s *ConsensusState) Snapshot() SnapshotState {
	snap := SnapshotState{
		Height:      s.height,
		View:        s.view,
		Proposal:    s.proposal,
		HasProposal: s.hasProposal,

		Participation: make(map[MessageKind][]SignedMessage, len(s.records)),
		Expected:      make(map[MessageKind][]ValidatorID, len(s.expected)),
	}
	for kind, msgs := range s.records {
		snap.Participation[kind] = slices.Clone(msgs)
	}
	for kind, ids := range s.expected {
		snap.Expected[kind] = slices.Clone(ids)
	}
	return snap
}

// replayOrder fixes the kind order for snapshot restoration,
// so that commits are replayed after the prepare responses
// they depend on.
var replayOrder = []MessageKind{
	KindPrepareRequest,
	KindPrepareResponse,
	KindCommit,
	KindChangeView,
}

// StateFromSnapshot reconstructs a round from a persisted snapshot,
// re-validating every contained message against the supplied committee
// and the snapshot's height and view.
//
// Restoration is fail-closed: the first message that would be rejected
// by the live pipeline aborts the whole load,
// as does a kind/payload mismatch or an unknown expected validator.
// A corrupted or tampered store must never yield a usable state.
func StateFromSnapshot(vals ValidatorSet, snap SnapshotState) (*ConsensusState, error) {
	s := NewConsensusState(snap.Height, snap.View, vals)

	for _, kind := range replayOrder {
		for _, m := range snap.Participation[kind] {
			if m.Kind() != kind {
				return nil, SnapshotKindMismatchError{Want: kind, Got: m.Kind()}
			}
			if err := s.RegisterMessage(m); err != nil {
				return nil, err
			}
		}
	}

	if snap.HasProposal {
		if s.hasProposal && s.proposal != snap.Proposal {
			return nil, ProposalMismatchError{Want: snap.Proposal, Got: s.proposal}
		}
		s.proposal = snap.Proposal
		s.hasProposal = true
	}

	// Replay rebuilt expectations of its own, but the persisted map
	// is authoritative: it holds the quorum clears that happened
	// after the last message was recorded.
	expected := make(map[MessageKind][]ValidatorID, len(snap.Expected))
	for kind, ids := range snap.Expected {
		for _, id := range ids {
			if s.vals.IndexOf(id) < 0 {
				return nil, UnknownValidatorError{ID: id}
			}
		}
		expected[kind] = slices.Clone(ids)
	}
	s.expected = expected
	s.seedPrepareRequestExpectation()

	return s, nil
}
