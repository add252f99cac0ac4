package dbftconsensus

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// SignedMessage is the authenticated envelope
// carrying a [ConsensusMessage] from one validator.
//
// Two envelopes sharing (validator, kind) within one (height, view)
// are duplicates, regardless of payload.
type SignedMessage struct {
	Height uint64
	View   ViewNumber

	Validator ValidatorID

	Message ConsensusMessage

	// Signature over the digest of every other field.
	// Opaque to this package; verification is the engine's concern.
	Signature []byte
}

// Kind returns the kind of the wrapped message.
func (m SignedMessage) Kind() MessageKind {
	return m.Message.Kind()
}

// SignBytes returns the canonical byte encoding
// of every field except the signature.
// Any field change alters the output.
func (m SignedMessage) SignBytes() []byte {
	out := make([]byte, 0, signedMessagePrefixSize+payloadSize(m.Message))
	out = binary.LittleEndian.AppendUint64(out, m.Height)
	out = binary.LittleEndian.AppendUint32(out, uint32(m.View))
	out = binary.LittleEndian.AppendUint16(out, uint16(m.Validator))
	out = append(out, uint8(m.Message.Kind()))
	return appendPayload(out, m.Message)
}

// Digest returns the blake2b-256 hash of [SignedMessage.SignBytes].
// It is the input to both signing and tamper detection.
func (m SignedMessage) Digest() [32]byte {
	return blake2b.Sum256(m.SignBytes())
}

const signedMessagePrefixSize = 8 + 4 + 2 + 1

func payloadSize(msg ConsensusMessage) int {
	switch p := msg.(type) {
	case PrepareRequest:
		return 32 + 8 + 4 + 32*len(p.TxHashes)
	case PrepareResponse:
		return 32
	case Commit:
		return 32
	case ChangeView:
		return 4 + 1 + 8
	default:
		panic(fmt.Errorf("unreachable message type %T", msg))
	}
}

func appendPayload(out []byte, msg ConsensusMessage) []byte {
	switch p := msg.(type) {
	case PrepareRequest:
		out = append(out, p.Proposal[:]...)
		out = binary.LittleEndian.AppendUint64(out, p.Height)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(p.TxHashes)))
		for _, h := range p.TxHashes {
			out = append(out, h[:]...)
		}
		return out
	case PrepareResponse:
		return append(out, p.Proposal[:]...)
	case Commit:
		return append(out, p.Proposal[:]...)
	case ChangeView:
		out = binary.LittleEndian.AppendUint32(out, uint32(p.NewView))
		out = append(out, uint8(p.Reason))
		return binary.LittleEndian.AppendUint64(out, p.TimestampMS)
	default:
		panic(fmt.Errorf("unreachable message type %T", msg))
	}
}

// MarshalBinary encodes the full envelope, signature included.
func (m SignedMessage) MarshalBinary() ([]byte, error) {
	sb := m.SignBytes()
	out := make([]byte, 0, len(sb)+2+len(m.Signature))
	out = append(out, sb...)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(m.Signature)))
	return append(out, m.Signature...), nil
}

// UnmarshalBinary decodes an envelope produced by MarshalBinary.
func (m *SignedMessage) UnmarshalBinary(data []byte) error {
	msg, n, err := decodeSignedMessage(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("trailing %d bytes after signed message", len(data)-n)
	}
	*m = msg
	return nil
}

// decodeSignedMessage reads one envelope from the front of data,
// returning the number of bytes consumed.
func decodeSignedMessage(data []byte) (SignedMessage, int, error) {
	var m SignedMessage
	if len(data) < signedMessagePrefixSize {
		return m, 0, fmt.Errorf(
			"short signed message: %d bytes, want at least %d",
			len(data), signedMessagePrefixSize,
		)
	}

	m.Height = binary.LittleEndian.Uint64(data[:8])
	m.View = ViewNumber(binary.LittleEndian.Uint32(data[8:12]))
	m.Validator = ValidatorID(binary.LittleEndian.Uint16(data[12:14]))
	kind, err := ParseMessageKind(data[14])
	if err != nil {
		return m, 0, err
	}

	off := signedMessagePrefixSize
	rest := data[off:]

	switch kind {
	case KindPrepareRequest:
		if len(rest) < 32+8+4 {
			return m, 0, fmt.Errorf("short prepare request payload: %d bytes", len(rest))
		}
		var p PrepareRequest
		copy(p.Proposal[:], rest[:32])
		p.Height = binary.LittleEndian.Uint64(rest[32:40])
		txCount := int(binary.LittleEndian.Uint32(rest[40:44]))
		rest = rest[44:]
		off += 44
		if len(rest) < 32*txCount {
			return m, 0, fmt.Errorf(
				"short prepare request payload: %d tx hashes declared, %d bytes remain",
				txCount, len(rest),
			)
		}
		if txCount > 0 {
			p.TxHashes = make([]Hash, txCount)
			for i := range p.TxHashes {
				copy(p.TxHashes[i][:], rest[32*i:32*i+32])
			}
		}
		off += 32 * txCount
		m.Message = p
	case KindPrepareResponse:
		if len(rest) < 32 {
			return m, 0, fmt.Errorf("short prepare response payload: %d bytes", len(rest))
		}
		var p PrepareResponse
		copy(p.Proposal[:], rest[:32])
		off += 32
		m.Message = p
	case KindCommit:
		if len(rest) < 32 {
			return m, 0, fmt.Errorf("short commit payload: %d bytes", len(rest))
		}
		var p Commit
		copy(p.Proposal[:], rest[:32])
		off += 32
		m.Message = p
	case KindChangeView:
		if len(rest) < 4+1+8 {
			return m, 0, fmt.Errorf("short change view payload: %d bytes", len(rest))
		}
		var p ChangeView
		p.NewView = ViewNumber(binary.LittleEndian.Uint32(rest[:4]))
		p.Reason, err = ParseChangeViewReason(rest[4])
		if err != nil {
			return m, 0, err
		}
		p.TimestampMS = binary.LittleEndian.Uint64(rest[5:13])
		off += 13
		m.Message = p
	}

	if len(data) < off+2 {
		return m, 0, fmt.Errorf("short signed message: missing signature length")
	}
	sigLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) < off+sigLen {
		return m, 0, fmt.Errorf(
			"short signed message: %d signature bytes declared, %d remain",
			sigLen, len(data)-off,
		)
	}
	if sigLen > 0 {
		m.Signature = make([]byte, sigLen)
		copy(m.Signature, data[off:off+sigLen])
	}
	off += sigLen

	return m, off, nil
}
