package dbftconsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
	"github.com/dbft-engine/dbft/dbft/dbftconsensus/dbftconsensustest"
)

func populatedState(t *testing.T, fx *dbftconsensustest.Fixture) *dbftconsensus.ConsensusState {
	t.Helper()

	s := fx.NewState(testHeight, 0)
	proposal := dbftconsensus.Hash{0x33}
	primary := lockProposal(t, s, proposal)

	other := dbftconsensus.ValidatorID((uint16(primary) + 1) % uint16(fx.Set.Len()))
	require.NoError(t, s.RegisterMessage(unsigned(other, 0, dbftconsensus.PrepareResponse{Proposal: proposal})))
	require.NoError(t, s.RegisterMessage(unsigned(other, 0, dbftconsensus.Commit{Proposal: proposal})))
	return s
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	s := populatedState(t, fx)

	snap := s.Snapshot()
	restored, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
	require.NoError(t, err)

	require.Equal(t, s.Height(), restored.Height())
	require.Equal(t, s.View(), restored.View())
	require.Equal(t, s.Tallies(), restored.Tallies())
	require.Equal(t, s.ParticipationByKind(), restored.ParticipationByKind())

	wantProposal, ok := s.Proposal()
	require.True(t, ok)
	gotProposal, ok := restored.Proposal()
	require.True(t, ok)
	require.Equal(t, wantProposal, gotProposal)

	for _, kind := range dbftconsensus.MessageKinds {
		wantExp, wantOK := s.ExpectedParticipants(kind)
		gotExp, gotOK := restored.ExpectedParticipants(kind)
		require.Equal(t, wantOK, gotOK, "expectation presence for %v", kind)
		require.Equal(t, wantExp, gotExp, "expectation for %v", kind)
	}
}

func TestSnapshot_RestoredStateRejectsReplayedMessage(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	s := fx.NewState(testHeight, 0)
	proposal := dbftconsensus.Hash{0x33}
	primary := lockProposal(t, s, proposal)

	other := dbftconsensus.ValidatorID((uint16(primary) + 1) % 4)
	resp := unsigned(other, 0, dbftconsensus.PrepareResponse{Proposal: proposal})
	require.NoError(t, s.RegisterMessage(resp))

	restored, err := dbftconsensus.StateFromSnapshot(fx.Set, s.Snapshot())
	require.NoError(t, err)

	err = restored.RegisterMessage(resp)
	require.ErrorAs(t, err, &dbftconsensus.DuplicateMessageError{})
}

func TestSnapshot_FreshStateRestoresPrimaryExpectation(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	s := fx.NewState(testHeight, 0)

	restored, err := dbftconsensus.StateFromSnapshot(fx.Set, s.Snapshot())
	require.NoError(t, err)

	primary, ok := restored.Primary()
	require.True(t, ok)
	expected, ok := restored.ExpectedParticipants(dbftconsensus.KindPrepareRequest)
	require.True(t, ok)
	require.Equal(t, []dbftconsensus.ValidatorID{primary}, expected)
	require.Equal(t, []dbftconsensus.ValidatorID{primary},
		restored.MissingValidators(dbftconsensus.KindPrepareRequest))
}

func TestSnapshot_RestoreDropsClearedExpectations(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)
	s := fx.NewState(testHeight, 0)

	for _, id := range []dbftconsensus.ValidatorID{0, 1, 2} {
		require.NoError(t, s.RegisterMessage(unsigned(id, 0, dbftconsensus.ChangeView{
			NewView: 1, Reason: dbftconsensus.ReasonTimeout,
		})))
	}

	// The quorum decision clears the change view expectation.
	_, ok := s.Quorum(dbftconsensus.KindChangeView).(dbftconsensus.DecisionViewChange)
	require.True(t, ok)
	_, ok = s.ExpectedParticipants(dbftconsensus.KindChangeView)
	require.False(t, ok)

	// Restoring must not resurrect it from the replayed votes:
	// the persisted expectation map wins over replay bookkeeping.
	restored, err := dbftconsensus.StateFromSnapshot(fx.Set, s.Snapshot())
	require.NoError(t, err)

	_, ok = restored.ExpectedParticipants(dbftconsensus.KindChangeView)
	require.False(t, ok)

	for _, kind := range dbftconsensus.MessageKinds {
		wantExp, wantOK := s.ExpectedParticipants(kind)
		gotExp, gotOK := restored.ExpectedParticipants(kind)
		require.Equal(t, wantOK, gotOK, "expectation presence for %v", kind)
		require.Equal(t, wantExp, gotExp, "expectation for %v", kind)
	}
}

func TestSnapshot_LoadFailsClosed(t *testing.T) {
	t.Parallel()

	fx := dbftconsensustest.NewFixture(4)

	t.Run("message from outside the committee", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		snap.Participation[dbftconsensus.KindPrepareResponse] = append(
			snap.Participation[dbftconsensus.KindPrepareResponse],
			unsigned(9, 0, dbftconsensus.PrepareResponse{Proposal: dbftconsensus.Hash{0x33}}),
		)

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.UnknownValidatorError{})
	})

	t.Run("duplicate vote", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		msgs := snap.Participation[dbftconsensus.KindPrepareResponse]
		snap.Participation[dbftconsensus.KindPrepareResponse] = append(msgs, msgs[0])

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.DuplicateMessageError{})
	})

	t.Run("kind and payload disagree", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		snap.Participation[dbftconsensus.KindCommit] = []dbftconsensus.SignedMessage{
			unsigned(2, 0, dbftconsensus.PrepareResponse{Proposal: dbftconsensus.Hash{0x33}}),
		}

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.SnapshotKindMismatchError{})
	})

	t.Run("message height disagrees with snapshot", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		snap.Height = testHeight + 1

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.HeightMismatchError{})
	})

	t.Run("stored proposal contradicts messages", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		snap.Proposal = dbftconsensus.Hash{0xEE}

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.ProposalMismatchError{})
	})

	t.Run("unknown validator in expected", func(t *testing.T) {
		t.Parallel()

		snap := populatedState(t, fx).Snapshot()
		snap.Expected[dbftconsensus.KindCommit] = []dbftconsensus.ValidatorID{42}

		_, err := dbftconsensus.StateFromSnapshot(fx.Set, snap)
		require.ErrorAs(t, err, &dbftconsensus.UnknownValidatorError{})
	})
}
