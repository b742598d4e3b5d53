// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"bytes"
	"testing"
)

// ============================================================
// Operation Encoding Tests
// ============================================================

func TestEncodeOperation(t *testing.T) {
	buf, err := EncodeOperation(0x42, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("EncodeOperation() error: %v", err)
	}
	want := []byte{STX, 0x42, 0x02, 0xAA, 0xBB, ETX}
	if !bytes.Equal(buf, want) {
		t.Errorf("EncodeOperation() = % X, want % X", buf, want)
	}
}

func TestEncodeOperation_TooLarge(t *testing.T) {
	if _, err := EncodeOperation(0x42, make([]byte, MaxOperationPayload+1)); err == nil {
		t.Error("expected error for oversized payload")
	}
	if _, err := EncodeOperation(0x42, make([]byte, MaxOperationPayload)); err != nil {
		t.Errorf("unexpected error at the maximum payload: %v", err)
	}
}

func TestGetSerialCommand(t *testing.T) {
	want := []byte{0x02, 0x74, 0x02, 0x02, 0x02, 0x03}
	if got := GetSerialCommand(DefaultSerialID); !bytes.Equal(got, want) {
		t.Errorf("GetSerialCommand() = % X, want % X", got, want)
	}
}

// ============================================================
// Data Format Tests
// ============================================================

func TestDataFormat_Command(t *testing.T) {
	tests := []struct {
		name   string
		format DataFormat
		want   []byte
	}{
		{
			name:   "onyx",
			format: OnyxFormat,
			want:   []byte{STX, 0x70, 0x02, 0x02, 0x07, ETX},
		},
		{
			name:   "wristox",
			format: WristOxFormat,
			want:   []byte{STX, 0x70, 0x04, 0x02, 0x07, 0x67, 0xE4, ETX},
		},
		{
			name:   "flagged without options",
			format: FlaggedFormat(0x07, false, false),
			want:   []byte{STX, 0x70, 0x04, 0x02, 0x07, 0x07, 0x84, ETX},
		},
		{
			name:   "spot check only",
			format: FlaggedFormat(0x02, true, false),
			want:   []byte{STX, 0x70, 0x04, 0x02, 0x02, 0x42, 0xBA, ETX},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Command(); !bytes.Equal(got, tt.want) {
				t.Errorf("Command() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestDataFormat_FlaggedChecksumFormula(t *testing.T) {
	f := FlaggedFormat(0x07, true, true)
	if f.Flags() != 0x67 {
		t.Errorf("Flags() = 0x%02X, want 0x67", f.Flags())
	}
	want := byte(0x70+4+2+0x07) + 0x67
	if f.Checksum() != want {
		t.Errorf("Checksum() = 0x%02X, want 0x%02X", f.Checksum(), want)
	}
}

func TestParseDataFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    DataFormat
		wantErr bool
	}{
		{"onyx", OnyxFormat, false},
		{"WristOx", WristOxFormat, false},
		{"7", PlainFormat(7), false},
		{"0x02", PlainFormat(2), false},
		{"  13 ", PlainFormat(13), false},
		{"256", DataFormat{}, true},
		{"bogus", DataFormat{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDataFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDataFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDataFormat(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

// ============================================================
// Serial Reply Tests
// ============================================================

func TestParseSerial(t *testing.T) {
	tests := []struct {
		name   string
		op     Operation
		want   string
		wantOK bool
	}{
		{"reply", Operation{OpRecvSerial, append([]byte{0x02}, "501234567"...)}, "501234567", true},
		{"trailing bytes ignored", Operation{OpRecvSerial, append([]byte{0x02}, "501234567XYZ"...)}, "501234567", true},
		{"too short", Operation{OpRecvSerial, []byte{0x02, '5'}}, "", false},
		{"wrong opcode", Operation{OpGetSerial, append([]byte{0x02}, "501234567"...)}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSerial(tt.op)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseSerial() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
