// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"fmt"
	"time"
)

// Frame represents a Serial API frame: SOF LEN TYPE FUNC payload CHECKSUM.
// Single-byte ACK/NAK/CAN frames are represented with Control set.
type Frame struct {
	control   byte // ACK, NAK, CAN or 0 for data frames
	frameType uint8
	funcID    uint8
	payload   []byte
	checksum  uint8
	timestamp time.Time
}

// NewFrame creates a data frame; the checksum is computed on encode
func NewFrame(frameType uint8, funcID uint8, payload []byte) *Frame {
	return &Frame{
		frameType: frameType,
		funcID:    funcID,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// NewControlFrame creates a single-byte ACK, NAK or CAN frame
func NewControlFrame(control byte) *Frame {
	return &Frame{control: control, timestamp: time.Now()}
}

// NewSendDataFrame wraps cmd in a SEND_DATA request addressed to nodeID.
// Panics if the encoded command exceeds MaxCommandSize.
func NewSendDataFrame(nodeID uint8, cmd Command, txOptions uint8, callbackID SequenceNumber) *Frame {
	data := cmd.Bytes()
	if len(data) > MaxCommandSize {
		panic(fmt.Sprintf("zwave: command too large for SEND_DATA: %d bytes (max %d)", len(data), MaxCommandSize))
	}

	payload := make([]byte, 0, len(data)+4)
	payload = append(payload, nodeID, uint8(len(data)))
	payload = append(payload, data...)
	payload = append(payload, txOptions, byte(callbackID))

	return NewFrame(FrameTypeRequest, FuncSendData, payload)
}

// Control returns the control byte for single-byte frames, 0 for data frames
func (f *Frame) Control() byte {
	return f.control
}

// IsControl returns true for ACK, NAK and CAN frames
func (f *Frame) IsControl() bool {
	return f.control != 0
}

// Type returns the frame type (request or response)
func (f *Frame) Type() uint8 {
	return f.frameType
}

// FuncID returns the Serial API function id
func (f *Frame) FuncID() uint8 {
	return f.funcID
}

// Payload returns the bytes between FUNC and CHECKSUM
func (f *Frame) Payload() []byte {
	return f.payload
}

// Length returns the LEN byte value for the frame
func (f *Frame) Length() uint8 {
	return uint8(len(f.payload) + frameOverhead)
}

// Checksum returns the checksum received with a decoded frame
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// Timestamp returns the frame's creation or decode time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// ApplicationCommand is the command carried by an APPLICATION_COMMAND_HANDLER request
type ApplicationCommand struct {
	RxStatus uint8
	SourceID uint8
	Command  []byte
}

// ApplicationCommand decodes [rxStatus, sourceNode, cmdLen, cmd...].
// Returns false when the frame is not an APPLICATION_COMMAND_HANDLER request
// or is truncated.
func (f *Frame) ApplicationCommand() (ApplicationCommand, bool) {
	if f.IsControl() || f.frameType != FrameTypeRequest || f.funcID != FuncApplicationCommandHandler {
		return ApplicationCommand{}, false
	}
	if len(f.payload) < 3 {
		return ApplicationCommand{}, false
	}
	cmdLen := int(f.payload[2])
	if 3+cmdLen > len(f.payload) {
		return ApplicationCommand{}, false
	}
	return ApplicationCommand{
		RxStatus: f.payload[0],
		SourceID: f.payload[1],
		Command:  f.payload[3 : 3+cmdLen],
	}, true
}
