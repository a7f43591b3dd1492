// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package zwave implements the controller side of the Z-Wave command layer.
//
// It provides the sequence allocator used to correlate asynchronous responses,
// builders for the network management and probe commands the hub issues,
// parsing of the inbound reports those commands provoke, and the Serial API
// framing used to carry commands to and from the radio module.
package zwave

// Serial API framing bytes
const (
	SOF = 0x01 // Start of data frame
	ACK = 0x06
	NAK = 0x15
	CAN = 0x18
)

// Serial API frame types
const (
	FrameTypeRequest  = 0x00
	FrameTypeResponse = 0x01
)

// Frame size limits
const (
	MaxFrameSize   = 255 // LEN is a single byte
	MaxPayloadSize = 251 // LEN - TYPE - FUNC - CHECKSUM
	frameOverhead  = 3   // TYPE + FUNC + CHECKSUM counted by LEN

	// MaxCommandSize bounds a command carried by SEND_DATA:
	// payload minus nodeId, length, txOptions and callback id.
	MaxCommandSize = MaxPayloadSize - 4
)

// Checksum configuration
const (
	checksumInitial = 0xFF
)

// Serial API function ids
const (
	FuncGetInitData               = 0x02
	FuncApplicationCommandHandler = 0x04
	FuncGetControllerCapabilities = 0x05
	FuncSerialAPIStarted          = 0x0A
	FuncSendData                  = 0x13
	FuncGetVersion                = 0x15
)

// Node ids
const (
	GatewayNodeID   uint8 = 0x01
	BroadcastNodeID uint8 = 0xFF
	MaxNodeID       uint8 = 232
)

// Transmit options
const (
	TransmitOptionAck       uint8 = 0x01
	TransmitOptionLowPower  uint8 = 0x02
	TransmitOptionAutoRoute uint8 = 0x04
	TransmitOptionNoRoute   uint8 = 0x10
	TransmitOptionExplore   uint8 = 0x20

	// DefaultTransmitOptions is used for SEND_DATA to addressed nodes
	DefaultTransmitOptions = TransmitOptionAck | TransmitOptionAutoRoute | TransmitOptionExplore
)

// Command classes
const (
	ClassBasic                    = 0x20
	ClassNetworkManagementInclude = 0x34
	ClassNetworkManagementBasic   = 0x4D
	ClassNetworkManagementProxy   = 0x52
	ClassManufacturerSpecific     = 0x72
	ClassWakeUp                   = 0x84
	ClassAssociation              = 0x85
	ClassVersion                  = 0x86
)

// Basic command class
const (
	CmdBasicSet    = 0x01
	CmdBasicGet    = 0x02
	CmdBasicReport = 0x03
)

// Network management inclusion command class
const (
	CmdNodeAdd          = 0x01
	CmdNodeAddStatus    = 0x02
	CmdNodeRemove       = 0x03
	CmdNodeRemoveStatus = 0x04
	CmdFailedNodeRemove = 0x07
)

// Network management basic command class
const (
	CmdLearnModeSet       = 0x01
	CmdLearnModeSetStatus = 0x02
	CmdNodeInfoSend       = 0x05
)

// Network management proxy command class
const (
	CmdNodeListGet    = 0x01
	CmdNodeListReport = 0x02
)

// Manufacturer specific command class
const (
	CmdManufacturerSpecificGet    = 0x04
	CmdManufacturerSpecificReport = 0x05
)

// Association command class
const (
	CmdAssociationSet             = 0x01
	CmdAssociationGroupingsGet    = 0x05
	CmdAssociationGroupingsReport = 0x06
)

// AddMode selects the NODE_ADD behavior
type AddMode uint8

// Node add modes
const (
	AddAny   AddMode = 0x01
	AddStop  AddMode = 0x05
	AddAnyS2 AddMode = 0x07
)

// RemoveMode selects the NODE_REMOVE behavior
type RemoveMode uint8

// Node remove modes
const (
	RemoveAny  RemoveMode = 0x01
	RemoveStop RemoveMode = 0x05
)

// LearnMode selects the LEARN_MODE_SET behavior
type LearnMode uint8

// Learn mode values
const (
	LearnModeDisabled             LearnMode = 0x00
	LearnModeClassic              LearnMode = 0x01
	LearnModeNetworkWideInclusion LearnMode = 0x02
)

// Transmit options carried by NODE_ADD. AddAnyS2 interoperability requires 1.
const (
	addAnyS2TxOptions uint8 = 0x01
	addStopTxOptions  uint8 = 0x00
)

// Node add/remove status values
const (
	AddStatusLearnReady     = 0x01
	AddStatusNodeFound      = 0x02
	AddStatusDone           = 0x06
	AddStatusFailed         = 0x07
	AddStatusSecurityFailed = 0x09
	RemoveStatusDone        = 0x06
	RemoveStatusFailed      = 0x07
)
