package dbftconsensus

import (
	"errors"
	"fmt"
)

// ErrMissingProposal indicates a PrepareResponse or Commit arrived
// before any PrepareRequest locked a proposal for the round.
var ErrMissingProposal = errors.New("no proposal registered for round")

// ErrNoValidators indicates an operation that needs a primary
// was attempted against an empty committee.
var ErrNoValidators = errors.New("committee is empty")

// HeightMismatchError indicates a message for a different height.
type HeightMismatchError struct {
	Want, Got uint64
}

func (e HeightMismatchError) Error() string {
	return fmt.Sprintf("message height %d does not match state height %d", e.Got, e.Want)
}

// UnknownValidatorError indicates a message from outside the committee.
type UnknownValidatorError struct {
	ID ValidatorID
}

func (e UnknownValidatorError) Error() string {
	return fmt.Sprintf("validator %d is not in the committee", e.ID)
}

// ViewMismatchError indicates a prepare or commit message
// targeting a view other than the current one.
type ViewMismatchError struct {
	Want, Got ViewNumber
}

func (e ViewMismatchError) Error() string {
	return fmt.Sprintf("message view %d does not match current view %d", e.Got, e.Want)
}

// StaleMessageError indicates a ChangeView whose envelope view
// is no longer the current view.
type StaleMessageError struct {
	Kind MessageKind

	CurrentView, MessageView ViewNumber
}

func (e StaleMessageError) Error() string {
	return fmt.Sprintf(
		"stale %v message: sent in view %d, current view is %d",
		e.Kind, e.MessageView, e.CurrentView,
	)
}

// StaleViewError indicates a ChangeView targeting a view
// at or below the current one.
type StaleViewError struct {
	Current, Requested ViewNumber
}

func (e StaleViewError) Error() string {
	return fmt.Sprintf(
		"change view target %d is not beyond current view %d",
		e.Requested, e.Current,
	)
}

// InconsistentViewError indicates a ChangeView whose target
// disagrees with the target already recorded this round.
type InconsistentViewError struct {
	Want, Got ViewNumber
}

func (e InconsistentViewError) Error() string {
	return fmt.Sprintf(
		"change view target %d contradicts recorded target %d",
		e.Got, e.Want,
	)
}

// DuplicateMessageError indicates a second message of the same kind
// from the same validator within one round.
type DuplicateMessageError struct {
	Kind MessageKind

	Validator ValidatorID
}

func (e DuplicateMessageError) Error() string {
	return fmt.Sprintf("duplicate %v message from validator %d", e.Kind, e.Validator)
}

// NotPrimaryError indicates a PrepareRequest from a validator
// other than the round's primary.
type NotPrimaryError struct {
	Want, Got ValidatorID
}

func (e NotPrimaryError) Error() string {
	return fmt.Sprintf(
		"prepare request from validator %d, but primary is %d",
		e.Got, e.Want,
	)
}

// ProposalMismatchError indicates a message referencing
// a proposal hash other than the locked one.
type ProposalMismatchError struct {
	Want, Got Hash
}

func (e ProposalMismatchError) Error() string {
	return fmt.Sprintf("proposal hash %x does not match locked proposal %x", e.Got, e.Want)
}

// CommitWithoutPrepareError indicates a Commit from a validator
// that has not recorded a PrepareResponse this round.
type CommitWithoutPrepareError struct {
	Validator ValidatorID
}

func (e CommitWithoutPrepareError) Error() string {
	return fmt.Sprintf(
		"commit from validator %d without a prior prepare response",
		e.Validator,
	)
}

// HeightTransitionError indicates an advance to a non-increasing height.
type HeightTransitionError struct {
	Current, Requested uint64
}

func (e HeightTransitionError) Error() string {
	return fmt.Sprintf(
		"cannot advance height from %d to %d: new height must be greater",
		e.Current, e.Requested,
	)
}

// SnapshotKindMismatchError indicates a persisted message filed
// under a kind that does not match its payload.
type SnapshotKindMismatchError struct {
	Want, Got MessageKind
}

func (e SnapshotKindMismatchError) Error() string {
	return fmt.Sprintf(
		"snapshot message of kind %v filed under %v",
		e.Got, e.Want,
	)
}

// InvalidSignatureError indicates a signature that failed verification
// against the sending validator's public key.
type InvalidSignatureError struct {
	Validator ValidatorID
}

func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature from validator %d", e.Validator)
}
