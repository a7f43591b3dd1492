// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"errors"
	"fmt"
	"time"
)

// ErrChecksum is returned when a decoded frame fails checksum validation
var ErrChecksum = errors.New("checksum mismatch")

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateType
	stateFunc
	statePayload
	stateChecksum
)

// Decoder implements the Serial API frame decoder state machine
type Decoder struct {
	state     int
	length    uint8
	frame     *Frame
	rawBuffer []byte // LEN through last payload byte, for checksum
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		rawBuffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		switch b {
		case ACK, NAK, CAN:
			return NewControlFrame(b), nil
		case SOF:
			d.Reset()
			d.state = stateLength
		}
		// Anything else is line noise between frames
		return nil, nil

	case stateLength:
		if b < frameOverhead {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (min %d)", b, frameOverhead)
		}
		d.length = b
		d.frame = &Frame{payload: make([]byte, 0, int(b)-frameOverhead)}
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateType
		return nil, nil

	case stateType:
		if b != FrameTypeRequest && b != FrameTypeResponse {
			d.Reset()
			return nil, fmt.Errorf("invalid frame type: 0x%02X", b)
		}
		d.frame.frameType = b
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateFunc
		return nil, nil

	case stateFunc:
		d.frame.funcID = b
		d.rawBuffer = append(d.rawBuffer, b)
		if d.length == frameOverhead {
			d.state = stateChecksum
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.frame.payload = append(d.frame.payload, b)
		d.rawBuffer = append(d.rawBuffer, b)
		if len(d.frame.payload) >= int(d.length)-frameOverhead {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		frame := d.frame
		calculated := CalculateChecksum(d.rawBuffer)
		d.Reset()

		if b != calculated {
			return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, calculated, b)
		}

		frame.checksum = b
		frame.timestamp = time.Now()
		return frame, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// DecodeFrame decodes a single complete frame from data.
// Returns an error if data does not contain exactly one frame.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder()
	for i, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			if i != len(data)-1 {
				return nil, fmt.Errorf("trailing bytes after frame: %d", len(data)-1-i)
			}
			return frame, nil
		}
	}
	return nil, fmt.Errorf("incomplete frame")
}
