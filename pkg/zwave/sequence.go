// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import "sync/atomic"

// SequenceNumber correlates an outbound command with its asynchronous response
type SequenceNumber uint8

// SequenceRange is the number of distinct sequence numbers
const SequenceRange = 256

// Sequence is a wrapping sequence number allocator safe for concurrent use.
// The zero value is ready to use; its first Next returns 1.
type Sequence struct {
	counter atomic.Uint32
}

// NewSequence creates an allocator whose first Next returns start+1
func NewSequence(start SequenceNumber) *Sequence {
	s := &Sequence{}
	s.counter.Store(uint32(start))
	return s
}

// Next returns the value one greater than the previous call, modulo SequenceRange
func (s *Sequence) Next() SequenceNumber {
	return SequenceNumber(s.counter.Add(1))
}

var defaultSequence Sequence

// NextSequence allocates from the process-wide default allocator
func NextSequence() SequenceNumber {
	return defaultSequence.Next()
}

// DefaultSequence returns the process-wide allocator
func DefaultSequence() *Sequence {
	return &defaultSequence
}
