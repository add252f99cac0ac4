package dbftconsensus

import "fmt"

// ViewNumber counts consensus attempts within a single height.
// It resets to zero when the height advances
// and otherwise only increases.
type ViewNumber uint32

// Hash is a 256-bit content identifier,
// used for block proposals and transaction references.
type Hash [32]byte

// MessageKind tags the closed set of consensus message variants.
type MessageKind uint8

const (
	KindPrepareRequest MessageKind = iota
	KindPrepareResponse
	KindCommit
	KindChangeView
)

// MessageKinds lists every kind in tag order,
// for callers iterating per-kind bookkeeping.
var MessageKinds = []MessageKind{
	KindPrepareRequest,
	KindPrepareResponse,
	KindCommit,
	KindChangeView,
}

func (k MessageKind) String() string {
	switch k {
	case KindPrepareRequest:
		return "prepare_request"
	case KindPrepareResponse:
		return "prepare_response"
	case KindCommit:
		return "commit"
	case KindChangeView:
		return "change_view"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseMessageKind maps a stored tag byte back to its kind.
func ParseMessageKind(b uint8) (MessageKind, error) {
	k := MessageKind(b)
	switch k {
	case KindPrepareRequest, KindPrepareResponse, KindCommit, KindChangeView:
		return k, nil
	default:
		return 0, fmt.Errorf("invalid message kind tag %d", b)
	}
}

// ChangeViewReason is the closed set of reasons a validator
// may give when requesting a view change.
//
// The byte values are part of the persisted encoding and must not change.
type ChangeViewReason uint8

const (
	ReasonTimeout               ChangeViewReason = 0x00
	ReasonChangeAgreement       ChangeViewReason = 0x01
	ReasonTxNotFound            ChangeViewReason = 0x02
	ReasonTxRejectedByPolicy    ChangeViewReason = 0x03
	ReasonTxInvalid             ChangeViewReason = 0x04
	ReasonBlockRejectedByPolicy ChangeViewReason = 0x05
)

func (r ChangeViewReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonChangeAgreement:
		return "change_agreement"
	case ReasonTxNotFound:
		return "tx_not_found"
	case ReasonTxRejectedByPolicy:
		return "tx_rejected_by_policy"
	case ReasonTxInvalid:
		return "tx_invalid"
	case ReasonBlockRejectedByPolicy:
		return "block_rejected_by_policy"
	default:
		return fmt.Sprintf("unknown(%#02x)", uint8(r))
	}
}

// ParseChangeViewReason maps a stored reason byte back to its value.
func ParseChangeViewReason(b uint8) (ChangeViewReason, error) {
	r := ChangeViewReason(b)
	switch r {
	case ReasonTimeout, ReasonChangeAgreement, ReasonTxNotFound,
		ReasonTxRejectedByPolicy, ReasonTxInvalid, ReasonBlockRejectedByPolicy:
		return r, nil
	default:
		return 0, fmt.Errorf("invalid change view reason %#02x", b)
	}
}

// ConsensusMessage is the closed union of message payloads.
// The only implementations are [PrepareRequest], [PrepareResponse],
// [Commit], and [ChangeView].
type ConsensusMessage interface {
	Kind() MessageKind

	// ProposalHash returns the referenced block candidate hash.
	// The second return is false for ChangeView,
	// which does not reference a proposal.
	ProposalHash() (Hash, bool)

	// consensusMessage keeps the union closed.
	consensusMessage()
}

// PrepareRequest is the primary's block candidate for the round.
type PrepareRequest struct {
	Proposal Hash

	// Height the proposal was built for.
	// Duplicates the envelope height so that the payload
	// is self-describing when relayed.
	Height uint64

	TxHashes []Hash
}

func (PrepareRequest) Kind() MessageKind { return KindPrepareRequest }

func (m PrepareRequest) ProposalHash() (Hash, bool) { return m.Proposal, true }

func (PrepareRequest) consensusMessage() {}

// PrepareResponse is a backup validator's agreement
// with the primary's proposal.
type PrepareResponse struct {
	Proposal Hash
}

func (PrepareResponse) Kind() MessageKind { return KindPrepareResponse }

func (m PrepareResponse) ProposalHash() (Hash, bool) { return m.Proposal, true }

func (PrepareResponse) consensusMessage() {}

// Commit is a validator's final, irrevocable vote for the proposal.
type Commit struct {
	Proposal Hash
}

func (Commit) Kind() MessageKind { return KindCommit }

func (m Commit) ProposalHash() (Hash, bool) { return m.Proposal, true }

func (Commit) consensusMessage() {}

// ChangeView is a vote to abandon the current view's leader
// and move to NewView.
type ChangeView struct {
	NewView ViewNumber

	Reason ChangeViewReason

	// Wall-clock milliseconds at the sender, diagnostic only.
	TimestampMS uint64
}

func (ChangeView) Kind() MessageKind { return KindChangeView }

func (ChangeView) ProposalHash() (Hash, bool) { return Hash{}, false }

func (ChangeView) consensusMessage() {}
