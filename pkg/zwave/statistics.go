// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame counts and error rates on a Serial API link
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	DataFrames     uint64
	ACKs           uint64
	NAKs           uint64
	CANs           uint64
	ChecksumErrors uint64
	DecodeErrors   uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker starting at now
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one decoder result: either a frame or a decode error
func (s *Statistics) Update(f *Frame, decodeErr error, now time.Time) {
	s.TotalFrames++
	s.LastUpdateTime = now

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksum) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	switch {
	case !f.IsControl():
		s.DataFrames++
	case f.Control() == ACK:
		s.ACKs++
	case f.Control() == NAK:
		s.NAKs++
	case f.Control() == CAN:
		s.CANs++
	}
}

// Errors is the number of frames that failed to decode
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.DecodeErrors
}

// CalculateRates calculates frame and error rates up to now
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// Summary returns a formatted statistics summary as of now
func (s *Statistics) Summary(now time.Time) string {
	s.CalculateRates(now)

	var validPercent, checksumPercent, decodePercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.TotalFrames-s.Errors()) * 100.0 / float64(s.TotalFrames)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalFrames)
		decodePercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", now.Sub(s.StartTime).Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.TotalFrames-s.Errors(), validPercent)
	result += fmt.Sprintf("  Data:             %5d\n", s.DataFrames)
	result += fmt.Sprintf("  ACK/NAK/CAN:      %d/%d/%d\n", s.ACKs, s.NAKs, s.CANs)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodePercent)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset clears all counters and restarts the clock at now
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
