// Package dbftengine wraps the consensus state machine
// with message authentication, quorum-driven view changes,
// and snapshot persistence.
package dbftengine

import (
	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
)

// Engine is the processing façade over one [dbftconsensus.ConsensusState].
//
// Like the state machine it owns, an Engine assumes exactly one
// logical owner at a time; hosts serialize access externally.
type Engine struct {
	state *dbftconsensus.ConsensusState
}

// NewEngine wraps the given state.
// The engine takes ownership; the caller must not mutate
// the state afterwards.
func NewEngine(state *dbftconsensus.ConsensusState) *Engine {
	return &Engine{state: state}
}

// FromSnapshot rebuilds an engine from a persisted snapshot,
// re-validating its contents against the supplied committee.
func FromSnapshot(
	vals dbftconsensus.ValidatorSet,
	snap dbftconsensus.SnapshotState,
) (*Engine, error) {
	state, err := dbftconsensus.StateFromSnapshot(vals, snap)
	if err != nil {
		return nil, err
	}
	return NewEngine(state), nil
}

// State exposes the wrapped round record for read-only queries.
func (e *Engine) State() *dbftconsensus.ConsensusState {
	return e.state
}

// TakeState consumes the engine, returning the state it owned.
// The engine must not be used afterwards.
func (e *Engine) TakeState() *dbftconsensus.ConsensusState {
	s := e.state
	e.state = nil
	return s
}

// Snapshot captures the current round into an immutable value.
func (e *Engine) Snapshot() dbftconsensus.SnapshotState {
	return e.state.Snapshot()
}

func (e *Engine) Participation() map[dbftconsensus.MessageKind][]dbftconsensus.ValidatorID {
	return e.state.ParticipationByKind()
}

func (e *Engine) Tallies() map[dbftconsensus.MessageKind]int {
	return e.state.Tallies()
}

func (e *Engine) QuorumThreshold() int {
	return e.state.QuorumThreshold()
}

func (e *Engine) Primary() (dbftconsensus.ValidatorID, bool) {
	return e.state.Primary()
}

func (e *Engine) MissingValidators(kind dbftconsensus.MessageKind) []dbftconsensus.ValidatorID {
	return e.state.MissingValidators(kind)
}

func (e *Engine) ExpectedParticipants(kind dbftconsensus.MessageKind) ([]dbftconsensus.ValidatorID, bool) {
	return e.state.ExpectedParticipants(kind)
}

func (e *Engine) ChangeViewReasonCounts() map[dbftconsensus.ChangeViewReason]int {
	return e.state.ChangeViewReasonCounts()
}

// AdvanceHeight starts a fresh round at a strictly greater height.
func (e *Engine) AdvanceHeight(newHeight uint64) error {
	return e.state.AdvanceHeight(newHeight)
}

// ProcessMessage authenticates, registers, and evaluates one message.
//
// If registration succeeds, the quorum for the message's kind is
// evaluated; a [dbftconsensus.DecisionViewChange] whose target matches
// the message is applied to the state before returning,
// so State().View() reflects the new view.
func (e *Engine) ProcessMessage(m dbftconsensus.SignedMessage) (dbftconsensus.QuorumDecision, error) {
	kind := m.Kind()

	var pendingView dbftconsensus.ViewNumber
	hasPendingView := false
	if cv, ok := m.Message.(dbftconsensus.ChangeView); ok {
		pendingView = cv.NewView
		hasPendingView = true
	}

	if err := e.verifySignature(m); err != nil {
		return nil, err
	}
	if err := e.state.RegisterMessage(m); err != nil {
		return nil, err
	}

	decision := e.state.Quorum(kind)
	if vc, ok := decision.(dbftconsensus.DecisionViewChange); ok {
		if !hasPendingView || pendingView == vc.NewView {
			e.state.ApplyViewChange(vc.NewView)
		}
	}
	return decision, nil
}

// ReplayOutcome reports how [Engine.ReplayMessages] handled one message.
type ReplayOutcome struct {
	// Decision from processing, nil when the message was skipped.
	Decision dbftconsensus.QuorumDecision

	// The rejection that caused a skip, nil when applied.
	Err error
}

// Applied reports whether the message mutated state.
func (o ReplayOutcome) Applied() bool {
	return o.Err == nil
}

// ReplayMessages applies a batch of messages in order,
// recording per-message outcomes instead of stopping on rejection.
// Duplicate, stale, and otherwise invalid messages are skipped
// without mutating state.
func (e *Engine) ReplayMessages(msgs []dbftconsensus.SignedMessage) []ReplayOutcome {
	out := make([]ReplayOutcome, len(msgs))
	for i, m := range msgs {
		decision, err := e.ProcessMessage(m)
		if err != nil {
			out[i] = ReplayOutcome{Err: err}
			continue
		}
		out[i] = ReplayOutcome{Decision: decision}
	}
	return out
}

func (e *Engine) verifySignature(m dbftconsensus.SignedMessage) error {
	val, ok := e.state.Validators().Get(m.Validator)
	if !ok {
		return dbftconsensus.UnknownValidatorError{ID: m.Validator}
	}

	digest := m.Digest()
	if !val.PubKey.Verify(digest[:], m.Signature) {
		return dbftconsensus.InvalidSignatureError{Validator: m.Validator}
	}
	return nil
}
