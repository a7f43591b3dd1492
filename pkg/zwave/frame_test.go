// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCalculateChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint8
	}{
		{"empty", nil, 0xFF},
		{"get version", []byte{0x03, 0x00, 0x15}, 0xE9},
		{"get init data", []byte{0x03, 0x00, 0x02}, 0xFE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateChecksum(tt.data); got != tt.want {
				t.Errorf("CalculateChecksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestEncodeFrame_NoPayload(t *testing.T) {
	got, err := EncodeFrame(FrameTypeRequest, FuncGetVersion, nil)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	want := []byte{0x01, 0x03, 0x00, 0x15, 0xE9}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFrame() = % X, want % X", got, want)
	}
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	if _, err := EncodeFrame(FrameTypeRequest, FuncSendData, make([]byte, MaxPayloadSize+1)); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestNewSendDataFrame(t *testing.T) {
	f := NewSendDataFrame(5, BasicGet, DefaultTransmitOptions, 1)

	if f.FuncID() != FuncSendData {
		t.Errorf("FuncID() = 0x%02X, want 0x%02X", f.FuncID(), FuncSendData)
	}
	wantPayload := []byte{0x05, 0x02, 0x20, 0x02, 0x25, 0x01}
	if !bytes.Equal(f.Payload(), wantPayload) {
		t.Errorf("Payload() = % X, want % X", f.Payload(), wantPayload)
	}

	wire := MustEncodeFrame(f)
	want := []byte{0x01, 0x09, 0x00, 0x13, 0x05, 0x02, 0x20, 0x02, 0x25, 0x01, 0xE4}
	if !bytes.Equal(wire, want) {
		t.Errorf("MustEncodeFrame() = % X, want % X", wire, want)
	}
}

func TestEncoder_ControlFrame(t *testing.T) {
	got, err := NewEncoder().Encode(NewControlFrame(ACK))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(got, []byte{ACK}) {
		t.Errorf("Encode(ACK) = % X, want 06", got)
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     uint8
		funcID  uint8
		payload []byte
	}{
		{"no payload", FrameTypeRequest, FuncGetVersion, nil},
		{"send data", FrameTypeRequest, FuncSendData, []byte{0x05, 0x02, 0x20, 0x02, 0x25, 0x01}},
		{"response", FrameTypeResponse, FuncSendData, []byte{0x01}},
		{"max payload", FrameTypeRequest, FuncApplicationCommandHandler, bytes.Repeat([]byte{0x5A}, MaxPayloadSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := EncodeFrame(tt.typ, tt.funcID, tt.payload)
			if err != nil {
				t.Fatalf("EncodeFrame failed: %v", err)
			}

			f, err := DecodeFrame(wire)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if f.Type() != tt.typ {
				t.Errorf("Type() = %d, want %d", f.Type(), tt.typ)
			}
			if f.FuncID() != tt.funcID {
				t.Errorf("FuncID() = 0x%02X, want 0x%02X", f.FuncID(), tt.funcID)
			}
			if !bytes.Equal(f.Payload(), tt.payload) && !(len(f.Payload()) == 0 && len(tt.payload) == 0) {
				t.Errorf("Payload() = % X, want % X", f.Payload(), tt.payload)
			}
			if f.Checksum() != wire[len(wire)-1] {
				t.Errorf("Checksum() = 0x%02X, want 0x%02X", f.Checksum(), wire[len(wire)-1])
			}
		})
	}
}

func TestDecoder_ChecksumMismatch(t *testing.T) {
	wire := []byte{0x01, 0x03, 0x00, 0x15, 0x00}
	_, err := DecodeFrame(wire)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("DecodeFrame() error = %v, want ErrChecksum", err)
	}
}

func TestDecoder_ControlBytes(t *testing.T) {
	d := NewDecoder()
	for _, b := range []byte{ACK, NAK, CAN} {
		f, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte(0x%02X) error: %v", b, err)
		}
		if f == nil || !f.IsControl() || f.Control() != b {
			t.Errorf("DecodeByte(0x%02X) = %+v, want control frame", b, f)
		}
	}
}

func TestDecoder_ResyncAfterNoise(t *testing.T) {
	d := NewDecoder()
	stream := append([]byte{0x00, 0xAB, 0x42}, MustEncodeFrame(NewFrame(FrameTypeResponse, FuncGetVersion, []byte{0x01}))...)

	var frames []*Frame
	for _, b := range stream {
		f, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	if len(frames) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(frames))
	}
	if frames[0].FuncID() != FuncGetVersion {
		t.Errorf("FuncID() = 0x%02X, want 0x%02X", frames[0].FuncID(), FuncGetVersion)
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(SOF)
	if _, err := d.DecodeByte(0x02); err == nil {
		t.Error("expected error for length below frame overhead")
	}
	if d.state != stateIdle {
		t.Errorf("state = %d after error, want idle", d.state)
	}
}

func TestDecoder_InvalidType(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(SOF)
	d.DecodeByte(0x03)
	if _, err := d.DecodeByte(0x07); err == nil {
		t.Error("expected error for invalid frame type")
	}
}

func TestDecodeFrame_TrailingBytes(t *testing.T) {
	wire := append(MustEncodeFrame(NewFrame(FrameTypeRequest, FuncGetVersion, nil)), ACK)
	if _, err := DecodeFrame(wire); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestDecodeFrame_Incomplete(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x01, 0x05, 0x00}); err == nil {
		t.Error("expected error for incomplete frame")
	}
}

func TestFrame_ApplicationCommand(t *testing.T) {
	payload := []byte{0x00, 0x07, 0x03, 0x20, 0x03, 0xFF}
	f := NewFrame(FrameTypeRequest, FuncApplicationCommandHandler, payload)

	ac, ok := f.ApplicationCommand()
	if !ok {
		t.Fatal("ApplicationCommand() ok = false")
	}
	if ac.SourceID != 7 {
		t.Errorf("SourceID = %d, want 7", ac.SourceID)
	}
	if !bytes.Equal(ac.Command, []byte{0x20, 0x03, 0xFF}) {
		t.Errorf("Command = % X", ac.Command)
	}

	truncated := NewFrame(FrameTypeRequest, FuncApplicationCommandHandler, []byte{0x00, 0x07, 0x05, 0x20})
	if _, ok := truncated.ApplicationCommand(); ok {
		t.Error("truncated ApplicationCommand() ok = true")
	}

	other := NewFrame(FrameTypeRequest, FuncSendData, payload)
	if _, ok := other.ApplicationCommand(); ok {
		t.Error("SEND_DATA ApplicationCommand() ok = true")
	}
}

func TestFormatFrame(t *testing.T) {
	f := NewSendDataFrame(5, BasicGet, DefaultTransmitOptions, 3)
	out := FormatFrame(f)
	for _, want := range []string{"SEND_DATA", "To node 5", "BASIC_GET"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame() = %q, missing %q", out, want)
		}
	}

	if out := FormatFrame(NewControlFrame(NAK)); !strings.Contains(out, "NAK") {
		t.Errorf("FormatFrame(NAK) = %q", out)
	}
}

func TestFormatCommandName(t *testing.T) {
	tests := []struct {
		class, id uint8
		want      string
	}{
		{ClassBasic, CmdBasicGet, "BASIC_GET"},
		{ClassNetworkManagementInclude, CmdNodeAdd, "NODE_ADD"},
		{ClassNetworkManagementBasic, CmdNodeInfoSend, "NODE_INFORMATION_SEND"},
		{0x99, 0x01, "CMD_99_01"},
	}
	for _, tt := range tests {
		if got := FormatCommandName(tt.class, tt.id); got != tt.want {
			t.Errorf("FormatCommandName(0x%02X, 0x%02X) = %q, want %q", tt.class, tt.id, got, tt.want)
		}
	}
}
