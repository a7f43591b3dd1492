// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import "fmt"

// Command builder functions create immutable Command values ready for
// SEND_DATA encoding. Builders that take a SequenceNumber use it verbatim;
// Builder methods draw one from their allocator.

// Fixed parameterless commands
var (
	// BasicGet is BASIC_GET (0x20 0x02), the offline probe
	BasicGet Command = fixedCommand{class: ClassBasic, id: CmdBasicGet}

	// ManufacturerSpecificGet is MANUFACTURER_SPECIFIC_GET (0x72 0x04)
	ManufacturerSpecificGet Command = fixedCommand{class: ClassManufacturerSpecific, id: CmdManufacturerSpecificGet}

	// AssociationGroupingsGet is ASSOCIATION_GROUPINGS_GET (0x85 0x05)
	AssociationGroupingsGet Command = fixedCommand{class: ClassAssociation, id: CmdAssociationGroupingsGet}
)

// NewStartNodeAdd creates a NODE_ADD command that includes any node with S2.
// The transmit options byte is always 1.
func NewStartNodeAdd(seq SequenceNumber) NetInclusionNodeAdd {
	return NetInclusionNodeAdd{seq: seq, mode: AddAnyS2, txOptions: addAnyS2TxOptions}
}

// NewStopNodeAdd creates a NODE_ADD command that ends inclusion.
func NewStopNodeAdd(seq SequenceNumber) NetInclusionNodeAdd {
	return NetInclusionNodeAdd{seq: seq, mode: AddStop, txOptions: addStopTxOptions}
}

// NewStartNodeRemove creates a NODE_REMOVE command that excludes any node.
func NewStartNodeRemove(seq SequenceNumber) NetInclusionNodeRemove {
	return NetInclusionNodeRemove{seq: seq, mode: RemoveAny}
}

// NewStopNodeRemove creates a NODE_REMOVE command that ends exclusion.
func NewStopNodeRemove(seq SequenceNumber) NetInclusionNodeRemove {
	return NetInclusionNodeRemove{seq: seq, mode: RemoveStop}
}

// NewLearnModeSet creates a LEARN_MODE_SET command.
// Panics if mode is not one of the LearnMode constants.
func NewLearnModeSet(seq SequenceNumber, mode LearnMode) LearnModeSet {
	switch mode {
	case LearnModeDisabled, LearnModeClassic, LearnModeNetworkWideInclusion:
	default:
		panic(fmt.Sprintf("zwave: invalid learn mode 0x%02X", uint8(mode)))
	}
	return LearnModeSet{seq: seq, mode: mode}
}

// NewNodeInfoSend creates a NODE_INFORMATION_SEND broadcast limited to direct range.
func NewNodeInfoSend(seq SequenceNumber) NodeInfoSend {
	return NodeInfoSend{seq: seq}
}

// NewNodeListGet creates a NODE_LIST_GET command for the gateway.
func NewNodeListGet(seq SequenceNumber) NodeListGet {
	return NodeListGet{seq: seq}
}

// NewAssociationSet creates an ASSOCIATION_SET adding nodeID to group.
// Panics if group is 0 (groups are numbered from 1).
func NewAssociationSet(group uint8, nodeID uint8) AssociationSet {
	if group == 0 {
		panic("zwave: association group 0 is invalid")
	}
	return AssociationSet{group: group, nodeID: nodeID}
}

// NewRawBytes wraps a command class id, command id and payload.
// The payload is appended only when it is non-empty, so a nil or empty payload
// yields exactly [class, cmd]. Panics if the result cannot fit in a SEND_DATA frame.
func NewRawBytes(class uint8, cmd uint8, payload []byte) RawBytes {
	if 2+len(payload) > MaxCommandSize {
		panic(fmt.Sprintf("zwave: raw command too large: %d bytes (max %d)", 2+len(payload), MaxCommandSize))
	}
	data := make([]byte, 2, 2+len(payload))
	data[0] = class
	data[1] = cmd
	if len(payload) > 0 {
		data = append(data, payload...)
	}
	return RawBytes{data: data}
}

// NewRawBytesWithLength wraps the first length bytes of payload.
// This mirrors callers that carry an explicit payload length alongside a
// buffer. Panics if length is negative or exceeds the buffer.
func NewRawBytesWithLength(class uint8, cmd uint8, payload []byte, length int) RawBytes {
	if length < 0 || length > len(payload) {
		panic(fmt.Sprintf("zwave: invalid payload length %d for %d byte buffer", length, len(payload)))
	}
	return NewRawBytes(class, cmd, payload[:length])
}

// Builder creates sequenced commands using its allocator
type Builder struct {
	seq *Sequence
}

// NewBuilder creates a builder drawing from seq, or from the process-wide
// allocator when seq is nil
func NewBuilder(seq *Sequence) *Builder {
	if seq == nil {
		seq = DefaultSequence()
	}
	return &Builder{seq: seq}
}

// Sequence returns the builder's allocator
func (b *Builder) Sequence() *Sequence {
	return b.seq
}

func (b *Builder) StartNodeAdd() NetInclusionNodeAdd       { return NewStartNodeAdd(b.seq.Next()) }
func (b *Builder) StopNodeAdd() NetInclusionNodeAdd        { return NewStopNodeAdd(b.seq.Next()) }
func (b *Builder) StartNodeRemove() NetInclusionNodeRemove { return NewStartNodeRemove(b.seq.Next()) }
func (b *Builder) StopNodeRemove() NetInclusionNodeRemove  { return NewStopNodeRemove(b.seq.Next()) }
func (b *Builder) NodeInfoSend() NodeInfoSend              { return NewNodeInfoSend(b.seq.Next()) }
func (b *Builder) NodeListGet() NodeListGet                { return NewNodeListGet(b.seq.Next()) }

// LearnModeSet allocates a sequence number only after mode is validated
func (b *Builder) LearnModeSet(mode LearnMode) LearnModeSet {
	if mode > LearnModeNetworkWideInclusion {
		return NewLearnModeSet(0, mode)
	}
	return NewLearnModeSet(b.seq.Next(), mode)
}

// ParseLearnMode converts a CLI name to a LearnMode
func ParseLearnMode(name string) (LearnMode, error) {
	switch name {
	case "disable", "disabled", "off":
		return LearnModeDisabled, nil
	case "classic":
		return LearnModeClassic, nil
	case "nwi", "network-wide":
		return LearnModeNetworkWideInclusion, nil
	default:
		return 0, fmt.Errorf("unknown learn mode %q (use disable, classic or nwi)", name)
	}
}
