package dbftconsensus

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// QuorumDecision is the closed union of outcomes
// from evaluating accumulated votes.
// The only implementations are [DecisionPending],
// [DecisionProposal], and [DecisionViewChange].
type QuorumDecision interface {
	quorumDecision()
}

// DecisionPending indicates the tally has not reached quorum.
type DecisionPending struct{}

func (DecisionPending) quorumDecision() {}

// DecisionProposal indicates quorum agreement on the locked proposal
// for the given message kind.
// A Commit decision is terminal for the round.
type DecisionProposal struct {
	Kind MessageKind

	Proposal Hash

	// Committee members still owing a vote of this kind, id-sorted.
	Missing []ValidatorID
}

func (DecisionProposal) quorumDecision() {}

// DecisionViewChange indicates quorum agreement to move to NewView.
type DecisionViewChange struct {
	NewView ViewNumber

	// Committee members that have not voted for the change, id-sorted.
	Missing []ValidatorID
}

func (DecisionViewChange) quorumDecision() {}

// ConsensusState is the mutable per-round record of accepted messages.
//
// All methods assume a single logical owner;
// there is no internal locking.
// Multi-goroutine hosts must serialize access externally.
type ConsensusState struct {
	height uint64
	view   ViewNumber

	vals ValidatorSet

	// Accepted messages per kind, in arrival order.
	records map[MessageKind][]SignedMessage

	// Validator-index bitmaps mirroring records,
	// for constant-time duplicate and membership checks.
	recorded map[MessageKind]*bitset.BitSet

	proposal    Hash
	hasProposal bool

	// Still-owed votes per kind, in committee order.
	expected map[MessageKind][]ValidatorID

	cvReasons      map[ValidatorID]ChangeViewReason
	cvReasonCounts map[ChangeViewReason]int
	cvTotal        int
}

// NewConsensusState returns the empty round record for the given
// height and view, with the prepare request expectation seeded
// to the round's primary.
func NewConsensusState(height uint64, view ViewNumber, vals ValidatorSet) *ConsensusState {
	s := &ConsensusState{
		height: height,
		view:   view,
		vals:   vals,
	}
	s.resetRound()
	return s
}

func (s *ConsensusState) resetRound() {
	s.records = make(map[MessageKind][]SignedMessage)
	s.recorded = make(map[MessageKind]*bitset.BitSet)
	s.proposal = Hash{}
	s.hasProposal = false
	s.expected = make(map[MessageKind][]ValidatorID)
	s.cvReasons = make(map[ValidatorID]ChangeViewReason)
	s.cvReasonCounts = make(map[ChangeViewReason]int)
	s.cvTotal = 0
	s.seedPrepareRequestExpectation()
}

func (s *ConsensusState) seedPrepareRequestExpectation() {
	if primary, ok := s.vals.Primary(s.height, s.view); ok {
		s.expected[KindPrepareRequest] = []ValidatorID{primary}
	} else {
		delete(s.expected, KindPrepareRequest)
	}
}

func (s *ConsensusState) Height() uint64 {
	return s.height
}

func (s *ConsensusState) View() ViewNumber {
	return s.view
}

func (s *ConsensusState) Validators() ValidatorSet {
	return s.vals
}

// Proposal returns the locked proposal hash,
// with false until a primary PrepareRequest has been accepted.
func (s *ConsensusState) Proposal() (Hash, bool) {
	return s.proposal, s.hasProposal
}

// Records returns the accepted messages of the given kind
// in arrival order. The returned slice must not be modified.
func (s *ConsensusState) Records(kind MessageKind) []SignedMessage {
	return s.records[kind]
}

// Tally returns how many messages of the given kind have been accepted.
func (s *ConsensusState) Tally(kind MessageKind) int {
	return len(s.records[kind])
}

// Tallies returns the accepted message count for every kind
// with at least one record.
func (s *ConsensusState) Tallies() map[MessageKind]int {
	out := make(map[MessageKind]int, len(s.records))
	for kind, msgs := range s.records {
		out[kind] = len(msgs)
	}
	return out
}

// ParticipationByKind returns, per kind with at least one record,
// the voting validators in arrival order.
func (s *ConsensusState) ParticipationByKind() map[MessageKind][]ValidatorID {
	out := make(map[MessageKind][]ValidatorID, len(s.records))
	for kind, msgs := range s.records {
		ids := make([]ValidatorID, len(msgs))
		for i, m := range msgs {
			ids[i] = m.Validator
		}
		out[kind] = ids
	}
	return out
}

// QuorumThreshold returns the committee's quorum size.
func (s *ConsensusState) QuorumThreshold() int {
	return s.vals.Quorum()
}

// Primary returns the leader for the current height and view.
func (s *ConsensusState) Primary() (ValidatorID, bool) {
	return s.vals.Primary(s.height, s.view)
}

// ExpectedParticipants returns the validators still expected
// to vote with the given kind, or false when no expectation
// is active for that kind.
func (s *ConsensusState) ExpectedParticipants(kind MessageKind) ([]ValidatorID, bool) {
	ids, ok := s.expected[kind]
	if !ok {
		return nil, false
	}
	return slices.Clone(ids), true
}

// ChangeViewReasons returns each voting validator's recorded reason.
func (s *ConsensusState) ChangeViewReasons() map[ValidatorID]ChangeViewReason {
	out := make(map[ValidatorID]ChangeViewReason, len(s.cvReasons))
	for id, r := range s.cvReasons {
		out[id] = r
	}
	return out
}

// ChangeViewReasonCounts returns the tally per recorded reason.
func (s *ConsensusState) ChangeViewReasonCounts() map[ChangeViewReason]int {
	out := make(map[ChangeViewReason]int, len(s.cvReasonCounts))
	for r, n := range s.cvReasonCounts {
		out[r] = n
	}
	return out
}

// ChangeViewTotal returns how many change view votes
// have been accepted this round.
func (s *ConsensusState) ChangeViewTotal() int {
	return s.cvTotal
}

// MissingValidators returns the committee members whose vote
// of the given kind is still owed, id-sorted.
//
// For PrepareRequest the result is the primary alone,
// or empty once its request was accepted.
func (s *ConsensusState) MissingValidators(kind MessageKind) []ValidatorID {
	if kind == KindPrepareRequest {
		primary, ok := s.vals.Primary(s.height, s.view)
		if !ok {
			return nil
		}
		if bs := s.recorded[kind]; bs != nil {
			if idx := s.vals.IndexOf(primary); idx >= 0 && bs.Test(uint(idx)) {
				return nil
			}
		}
		return []ValidatorID{primary}
	}

	expected, ok := s.expected[kind]
	if !ok {
		return nil
	}

	bs := s.recorded[kind]
	var missing []ValidatorID
	for _, id := range expected {
		idx := s.vals.IndexOf(id)
		if idx < 0 {
			continue
		}
		if bs == nil || !bs.Test(uint(idx)) {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	return missing
}

// RegisterMessage validates the message against the current round
// and records it. The pipeline is fail-closed:
// the first failed check returns its error with no state change.
//
// Signature verification is not performed here;
// the engine authenticates envelopes before registration.
func (s *ConsensusState) RegisterMessage(m SignedMessage) error {
	if m.Height != s.height {
		return HeightMismatchError{Want: s.height, Got: m.Height}
	}

	validatorIdx := s.vals.IndexOf(m.Validator)
	if validatorIdx < 0 {
		return UnknownValidatorError{ID: m.Validator}
	}

	kind := m.Kind()

	if m.View != s.view {
		if kind == KindChangeView {
			return StaleMessageError{
				Kind:        kind,
				CurrentView: s.view,
				MessageView: m.View,
			}
		}
		return ViewMismatchError{Want: s.view, Got: m.View}
	}

	if bs := s.recorded[kind]; bs != nil && bs.Test(uint(validatorIdx)) {
		return DuplicateMessageError{Kind: kind, Validator: m.Validator}
	}

	if cv, ok := m.Message.(ChangeView); ok {
		if cv.NewView <= s.view {
			return StaleViewError{Current: s.view, Requested: cv.NewView}
		}
		if existing := s.records[KindChangeView]; len(existing) > 0 {
			first := existing[0].Message.(ChangeView)
			if cv.NewView != first.NewView {
				return InconsistentViewError{Want: first.NewView, Got: cv.NewView}
			}
		}
	}

	if _, ok := m.Message.(PrepareRequest); ok {
		primary, ok := s.vals.Primary(s.height, s.view)
		if !ok {
			return ErrNoValidators
		}
		if m.Validator != primary {
			return NotPrimaryError{Want: primary, Got: m.Validator}
		}
	}

	if _, isRequest := m.Message.(PrepareRequest); !isRequest {
		if hash, ok := m.Message.ProposalHash(); ok {
			if !s.hasProposal {
				return ErrMissingProposal
			}
			if hash != s.proposal {
				return ProposalMismatchError{Want: s.proposal, Got: hash}
			}
		}
	}

	if _, ok := m.Message.(Commit); ok {
		responded := false
		if bs := s.recorded[KindPrepareResponse]; bs != nil {
			responded = bs.Test(uint(validatorIdx))
		}
		if !responded {
			return CommitWithoutPrepareError{Validator: m.Validator}
		}
	}

	// All checks passed; side effects from here on.

	if req, ok := m.Message.(PrepareRequest); ok && !s.hasProposal {
		s.proposal = req.Proposal
		s.hasProposal = true
	}

	if cv, ok := m.Message.(ChangeView); ok {
		s.cvReasons[m.Validator] = cv.Reason
		s.cvReasonCounts[cv.Reason]++
		s.cvTotal++
	}

	s.records[kind] = append(s.records[kind], m)
	bs := s.recorded[kind]
	if bs == nil {
		bs = bitset.New(uint(s.vals.Len()))
		s.recorded[kind] = bs
	}
	bs.Set(uint(validatorIdx))

	s.refreshExpected(kind)
	return nil
}

// refreshExpected reconciles the still-owed vote lists
// after a message of the given kind was recorded.
func (s *ConsensusState) refreshExpected(kind MessageKind) {
	switch kind {
	case KindPrepareRequest:
		s.seedPrepareRequestExpectation()
		if _, ok := s.expected[KindPrepareResponse]; !ok {
			s.expected[KindPrepareResponse] = s.vals.IDs()
		}
	case KindPrepareResponse:
		responders := s.participantsFor(KindPrepareResponse)
		slices.Sort(responders)
		responders = slices.Compact(responders)
		if len(responders) == s.vals.Len() {
			delete(s.expected, KindPrepareResponse)
		} else if _, ok := s.expected[KindPrepareResponse]; !ok {
			s.expected[KindPrepareResponse] = s.vals.IDs()
		}
		if len(responders) == 0 {
			delete(s.expected, KindCommit)
		} else {
			s.expected[KindCommit] = responders
		}
	case KindCommit:
		committed := s.recorded[KindCommit]
		if committed == nil {
			return
		}
		entry, ok := s.expected[KindCommit]
		if !ok {
			return
		}
		done := true
		for _, id := range entry {
			idx := s.vals.IndexOf(id)
			if idx < 0 || !committed.Test(uint(idx)) {
				done = false
				break
			}
		}
		if done {
			delete(s.expected, KindCommit)
		}
	case KindChangeView:
		if len(s.records[KindChangeView]) > 0 {
			s.expected[KindChangeView] = s.vals.IDs()
		} else {
			delete(s.expected, KindChangeView)
		}
	}
}

func (s *ConsensusState) participantsFor(kind MessageKind) []ValidatorID {
	msgs := s.records[kind]
	out := make([]ValidatorID, len(msgs))
	for i, m := range msgs {
		out[i] = m.Validator
	}
	return out
}

// changeViewTarget returns the view the recorded change view votes
// agree on, with false when none are recorded.
// Consistency is enforced at registration,
// so the first record's target stands for all.
func (s *ConsensusState) changeViewTarget() (ViewNumber, bool) {
	msgs := s.records[KindChangeView]
	if len(msgs) == 0 {
		return 0, false
	}
	return msgs[0].Message.(ChangeView).NewView, true
}

// Quorum evaluates the accumulated votes of the given kind.
//
// A ChangeView quorum clears the change view expectation;
// a Commit quorum clears the commit expectation,
// since a committed round is terminal.
func (s *ConsensusState) Quorum(kind MessageKind) QuorumDecision {
	if kind == KindChangeView {
		target, ok := s.changeViewTarget()
		if ok && s.Tally(kind) >= s.vals.Quorum() {
			missing := s.MissingValidators(kind)
			delete(s.expected, KindChangeView)
			return DecisionViewChange{NewView: target, Missing: missing}
		}
		return DecisionPending{}
	}

	if s.hasProposal && s.Tally(kind) >= s.vals.Quorum() {
		missing := s.MissingValidators(kind)
		if kind == KindCommit {
			delete(s.expected, KindCommit)
		}
		return DecisionProposal{Kind: kind, Proposal: s.proposal, Missing: missing}
	}
	return DecisionPending{}
}

// ApplyViewChange moves the round to newView,
// clearing all round-scoped state and re-seeding
// the prepare request expectation for the new primary.
func (s *ConsensusState) ApplyViewChange(newView ViewNumber) {
	s.view = newView
	s.resetRound()
}

// AdvanceHeight moves to a strictly greater height at view zero,
// clearing all round-scoped state.
// On failure the state is untouched, so retries are safe.
func (s *ConsensusState) AdvanceHeight(newHeight uint64) error {
	if newHeight <= s.height {
		return HeightTransitionError{Current: s.height, Requested: newHeight}
	}
	s.height = newHeight
	s.view = 0
	s.resetRound()
	return nil
}
