// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

// Command is an outbound protocol message.
// Commands are immutable once built; Bytes returns a fresh copy each call.
type Command interface {
	// Class returns the command class id
	Class() uint8
	// ID returns the command id within the class
	ID() uint8
	// Bytes returns the command-class frame: [class, id, params...]
	Bytes() []byte
}

// Sequenced is implemented by commands that carry a sequence number
type Sequenced interface {
	Command
	Sequence() SequenceNumber
}

// NetInclusionNodeAdd is NODE_ADD (0x34 0x01)
type NetInclusionNodeAdd struct {
	seq       SequenceNumber
	mode      AddMode
	txOptions uint8
}

func (c NetInclusionNodeAdd) Class() uint8             { return ClassNetworkManagementInclude }
func (c NetInclusionNodeAdd) ID() uint8                { return CmdNodeAdd }
func (c NetInclusionNodeAdd) Sequence() SequenceNumber { return c.seq }
func (c NetInclusionNodeAdd) Mode() AddMode            { return c.mode }
func (c NetInclusionNodeAdd) TxOptions() uint8         { return c.txOptions }

// Bytes encodes [0x34, 0x01, seq, reserved, mode, txOptions]
func (c NetInclusionNodeAdd) Bytes() []byte {
	return []byte{c.Class(), c.ID(), byte(c.seq), 0x00, byte(c.mode), c.txOptions}
}

// NetInclusionNodeRemove is NODE_REMOVE (0x34 0x03)
type NetInclusionNodeRemove struct {
	seq  SequenceNumber
	mode RemoveMode
}

func (c NetInclusionNodeRemove) Class() uint8             { return ClassNetworkManagementInclude }
func (c NetInclusionNodeRemove) ID() uint8                { return CmdNodeRemove }
func (c NetInclusionNodeRemove) Sequence() SequenceNumber { return c.seq }
func (c NetInclusionNodeRemove) Mode() RemoveMode         { return c.mode }

// Bytes encodes [0x34, 0x03, seq, reserved, mode]
func (c NetInclusionNodeRemove) Bytes() []byte {
	return []byte{c.Class(), c.ID(), byte(c.seq), 0x00, byte(c.mode)}
}

// LearnModeSet is LEARN_MODE_SET (0x4D 0x01)
type LearnModeSet struct {
	seq  SequenceNumber
	mode LearnMode
}

func (c LearnModeSet) Class() uint8             { return ClassNetworkManagementBasic }
func (c LearnModeSet) ID() uint8                { return CmdLearnModeSet }
func (c LearnModeSet) Sequence() SequenceNumber { return c.seq }
func (c LearnModeSet) Mode() LearnMode          { return c.mode }

// Bytes encodes [0x4D, 0x01, seq, reserved, mode]
func (c LearnModeSet) Bytes() []byte {
	return []byte{c.Class(), c.ID(), byte(c.seq), 0x00, byte(c.mode)}
}

// NodeInfoSend is NODE_INFORMATION_SEND (0x4D 0x05).
// It is a local broadcast: the target is always the broadcast node id and
// the frame is never routed beyond direct range.
type NodeInfoSend struct {
	seq SequenceNumber
}

func (c NodeInfoSend) Class() uint8             { return ClassNetworkManagementBasic }
func (c NodeInfoSend) ID() uint8                { return CmdNodeInfoSend }
func (c NodeInfoSend) Sequence() SequenceNumber { return c.seq }
func (c NodeInfoSend) TargetNodeID() uint8      { return BroadcastNodeID }
func (c NodeInfoSend) TxOptions() uint8         { return TransmitOptionNoRoute }

// Bytes encodes [0x4D, 0x05, seq, reserved, 0xFF, 0x10]
func (c NodeInfoSend) Bytes() []byte {
	return []byte{c.Class(), c.ID(), byte(c.seq), 0x00, c.TargetNodeID(), c.TxOptions()}
}

// NodeListGet is NODE_LIST_GET (0x52 0x01)
type NodeListGet struct {
	seq SequenceNumber
}

func (c NodeListGet) Class() uint8             { return ClassNetworkManagementProxy }
func (c NodeListGet) ID() uint8                { return CmdNodeListGet }
func (c NodeListGet) Sequence() SequenceNumber { return c.seq }

// Bytes encodes [0x52, 0x01, seq]
func (c NodeListGet) Bytes() []byte {
	return []byte{c.Class(), c.ID(), byte(c.seq)}
}

// fixedCommand is a parameterless command
type fixedCommand struct {
	class uint8
	id    uint8
}

func (c fixedCommand) Class() uint8  { return c.class }
func (c fixedCommand) ID() uint8     { return c.id }
func (c fixedCommand) Bytes() []byte { return []byte{c.class, c.id} }

// AssociationSet is ASSOCIATION_SET (0x85 0x01) adding one node to a group
type AssociationSet struct {
	group  uint8
	nodeID uint8
}

func (c AssociationSet) Class() uint8  { return ClassAssociation }
func (c AssociationSet) ID() uint8     { return CmdAssociationSet }
func (c AssociationSet) Group() uint8  { return c.group }
func (c AssociationSet) NodeID() uint8 { return c.nodeID }

// Bytes encodes [0x85, 0x01, group, nodeId]
func (c AssociationSet) Bytes() []byte {
	return []byte{c.Class(), c.ID(), c.group, c.nodeID}
}

// RawBytes wraps an arbitrary command-class frame. The zero value reports
// class and command 0 and encodes to no bytes.
type RawBytes struct {
	data []byte
}

func (c RawBytes) Class() uint8 {
	if len(c.data) < 1 {
		return 0
	}
	return c.data[0]
}

func (c RawBytes) ID() uint8 {
	if len(c.data) < 2 {
		return 0
	}
	return c.data[1]
}

// Payload returns the bytes following the class and command ids
func (c RawBytes) Payload() []byte {
	if len(c.data) <= 2 {
		return nil
	}
	return append([]byte(nil), c.data[2:]...)
}

// Bytes returns [class, cmd, payload...]
func (c RawBytes) Bytes() []byte {
	return append([]byte(nil), c.data...)
}
