package dbftengine

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/dbft-engine/dbft/dbft/dbftconsensus"
)

const (
	snapshotVersion = 1

	versionSize     = 2
	heightSize      = 8
	viewSize        = 4
	proposalTagSize = 1
	proposalSize    = 32

	snapshotHeaderSize = versionSize + heightSize + viewSize + proposalTagSize
)

// EncodeSnapshot serializes a snapshot into the persisted byte form.
// The encoding is deterministic: per-kind sections are written
// in ascending kind order.
func EncodeSnapshot(snap dbftconsensus.SnapshotState) ([]byte, error) {
	out := make([]byte, 0, snapshotHeaderSize+proposalSize)

	out = binary.LittleEndian.AppendUint16(out, snapshotVersion)
	out = binary.LittleEndian.AppendUint64(out, snap.Height)
	out = binary.LittleEndian.AppendUint32(out, uint32(snap.View))

	if snap.HasProposal {
		out = append(out, 1)
		out = append(out, snap.Proposal[:]...)
	} else {
		out = append(out, 0)
	}

	partKinds := sortedKinds(snap.Participation)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(partKinds)))
	for _, kind := range partKinds {
		msgs := snap.Participation[kind]
		out = append(out, uint8(kind))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(msgs)))
		for _, m := range msgs {
			mb, err := m.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("failed to encode snapshot message: %w", err)
			}
			out = binary.LittleEndian.AppendUint32(out, uint32(len(mb)))
			out = append(out, mb...)
		}
	}

	expKinds := sortedKinds(snap.Expected)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(expKinds)))
	for _, kind := range expKinds {
		ids := snap.Expected[kind]
		out = append(out, uint8(kind))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(ids)))
		for _, id := range ids {
			out = binary.LittleEndian.AppendUint16(out, uint16(id))
		}
	}

	return out, nil
}

// DecodeSnapshot parses the persisted byte form back into a snapshot.
// The result is pure data; restoring a usable state from it
// still requires the full re-validation in
// [dbftconsensus.StateFromSnapshot].
func DecodeSnapshot(data []byte) (dbftconsensus.SnapshotState, error) {
	var snap dbftconsensus.SnapshotState

	if len(data) < snapshotHeaderSize {
		return snap, fmt.Errorf("short snapshot: %d bytes, want at least %d", len(data), snapshotHeaderSize)
	}

	version := binary.LittleEndian.Uint16(data[:2])
	if version != snapshotVersion {
		return snap, fmt.Errorf("unsupported snapshot version: %d", version)
	}

	snap.Height = binary.LittleEndian.Uint64(data[2:10])
	snap.View = dbftconsensus.ViewNumber(binary.LittleEndian.Uint32(data[10:14]))

	off := 14
	switch data[off] {
	case 0:
		off++
	case 1:
		off++
		if len(data) < off+proposalSize {
			return snap, fmt.Errorf("short snapshot: truncated proposal hash")
		}
		copy(snap.Proposal[:], data[off:off+proposalSize])
		snap.HasProposal = true
		off += proposalSize
	default:
		return snap, fmt.Errorf("invalid proposal tag %d", data[off])
	}

	readU32 := func() (uint32, error) {
		if len(data) < off+4 {
			return 0, fmt.Errorf("short snapshot at offset %d", off)
		}
		v := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		return v, nil
	}

	nPart, err := readU32()
	if err != nil {
		return snap, err
	}
	// Counts come from untrusted bytes; allocation hints are capped
	// so a corrupted snapshot cannot force a huge allocation.
	snap.Participation = make(
		map[dbftconsensus.MessageKind][]dbftconsensus.SignedMessage,
		min(int(nPart), len(dbftconsensus.MessageKinds)),
	)
	for i := uint32(0); i < nPart; i++ {
		if len(data) < off+1 {
			return snap, fmt.Errorf("short snapshot: truncated participation section")
		}
		kind, err := dbftconsensus.ParseMessageKind(data[off])
		if err != nil {
			return snap, err
		}
		off++

		nMsgs, err := readU32()
		if err != nil {
			return snap, err
		}
		// Every encoded message occupies at least its length prefix.
		msgs := make([]dbftconsensus.SignedMessage, 0, min(int(nMsgs), (len(data)-off)/4))
		for j := uint32(0); j < nMsgs; j++ {
			msgLen, err := readU32()
			if err != nil {
				return snap, err
			}
			if len(data) < off+int(msgLen) {
				return snap, fmt.Errorf("short snapshot: truncated message")
			}
			var m dbftconsensus.SignedMessage
			if err := m.UnmarshalBinary(data[off : off+int(msgLen)]); err != nil {
				return snap, fmt.Errorf("failed to decode snapshot message: %w", err)
			}
			off += int(msgLen)
			msgs = append(msgs, m)
		}
		if _, dup := snap.Participation[kind]; dup {
			return snap, fmt.Errorf("duplicate participation section for kind %v", kind)
		}
		snap.Participation[kind] = msgs
	}

	nExp, err := readU32()
	if err != nil {
		return snap, err
	}
	snap.Expected = make(
		map[dbftconsensus.MessageKind][]dbftconsensus.ValidatorID,
		min(int(nExp), len(dbftconsensus.MessageKinds)),
	)
	for i := uint32(0); i < nExp; i++ {
		if len(data) < off+1 {
			return snap, fmt.Errorf("short snapshot: truncated expected section")
		}
		kind, err := dbftconsensus.ParseMessageKind(data[off])
		if err != nil {
			return snap, err
		}
		off++

		nIDs, err := readU32()
		if err != nil {
			return snap, err
		}
		if len(data) < off+2*int(nIDs) {
			return snap, fmt.Errorf("short snapshot: truncated expected validators")
		}
		ids := make([]dbftconsensus.ValidatorID, nIDs)
		for i := range ids {
			ids[i] = dbftconsensus.ValidatorID(binary.LittleEndian.Uint16(data[off : off+2]))
			off += 2
		}
		if _, dup := snap.Expected[kind]; dup {
			return snap, fmt.Errorf("duplicate expected section for kind %v", kind)
		}
		snap.Expected[kind] = ids
	}

	if off != len(data) {
		return snap, fmt.Errorf("trailing %d bytes after snapshot", len(data)-off)
	}

	return snap, nil
}

func sortedKinds[V any](m map[dbftconsensus.MessageKind]V) []dbftconsensus.MessageKind {
	kinds := make([]dbftconsensus.MessageKind, 0, len(m))
	for kind := range m {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
