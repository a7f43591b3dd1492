// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import "fmt"

// Encoder encodes Serial API frames for transmission.
type Encoder struct{}

// NewEncoder creates a new frame encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a Frame to wire format.
func (e *Encoder) Encode(f *Frame) ([]byte, error) {
	if f.IsControl() {
		return []byte{f.control}, nil
	}
	return EncodeFrame(f.frameType, f.funcID, f.payload)
}

// EncodeFrame creates a complete wire-formatted data frame.
func EncodeFrame(frameType uint8, funcID uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	// SOF + LEN + TYPE + FUNC + payload + CHECKSUM
	frame := make([]byte, 0, len(payload)+5)
	frame = append(frame, SOF, uint8(len(payload)+frameOverhead), frameType, funcID)
	frame = append(frame, payload...)

	// Checksum covers LEN through the last payload byte
	frame = append(frame, CalculateChecksum(frame[1:]))

	return frame, nil
}

// MustEncodeFrame encodes a Frame and panics on error.
func MustEncodeFrame(f *Frame) []byte {
	data, err := NewEncoder().Encode(f)
	if err != nil {
		panic(fmt.Sprintf("zwave: encode error: %v", err))
	}
	return data
}
