// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxOperationPayload is the largest payload an operation length byte can declare
const MaxOperationPayload = 0xFF

// EncodeOperation frames an operation for the wire:
// [STX, opcode, len, payload..., ETX]
func EncodeOperation(opcode byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxOperationPayload {
		return nil, fmt.Errorf("operation payload too large: %d bytes (max %d)", len(payload), MaxOperationPayload)
	}
	buf := make([]byte, 0, controlHeaderLength+len(payload)+1)
	buf = append(buf, STX, opcode, byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, ETX)
	return buf, nil
}

// MustEncodeOperation is EncodeOperation for payloads known to fit.
// Panics on encoding error.
func MustEncodeOperation(opcode byte, payload []byte) []byte {
	buf, err := EncodeOperation(opcode, payload)
	if err != nil {
		panic(fmt.Sprintf("nonin: encode error: %v", err))
	}
	return buf
}

// GetSerialCommand builds a get-serial request: STX 0x74 0x02 id id ETX.
// The device echoes id in the first byte of its reply.
func GetSerialCommand(id byte) []byte {
	return MustEncodeOperation(OpGetSerial, []byte{id, id})
}

// DataFormat selects the measurement format the device streams. Plain
// requests carry only the format code; flagged requests also set the
// spot-check and bluetooth-at-power-on option bits and a trailing checksum.
type DataFormat struct {
	Code               byte
	Flagged            bool
	SpotCheck          bool
	BluetoothAtPowerOn bool
}

// PlainFormat creates a plain numeric set-format request
func PlainFormat(code byte) DataFormat {
	return DataFormat{Code: code}
}

// FlaggedFormat creates a set-format request carrying option bits
func FlaggedFormat(code byte, spotCheck, bluetoothAtPowerOn bool) DataFormat {
	return DataFormat{
		Code:               code,
		Flagged:            true,
		SpotCheck:          spotCheck,
		BluetoothAtPowerOn: bluetoothAtPowerOn,
	}
}

// Formats used by known device families
var (
	OnyxFormat    = PlainFormat(FormatCode7)
	WristOxFormat = FlaggedFormat(FormatCode7, true, true)
)

// Flags returns the flags byte of a flagged request: the format code with
// the option bits set.
func (f DataFormat) Flags() byte {
	flags := f.Code
	if f.SpotCheck {
		flags |= FlagSpotCheck
	}
	if f.BluetoothAtPowerOn {
		flags |= FlagBluetoothAtPowerOn
	}
	return flags
}

// Checksum returns the trailing byte of a flagged request
func (f DataFormat) Checksum() byte {
	return formatChecksum(f.Code, f.Flags())
}

// Command builds the set-format request bytes.
//
// Plain:   STX 0x70 0x02 | 0x02 code | ETX
// Flagged: STX 0x70 0x04 | 0x02 code flags checksum | ETX
func (f DataFormat) Command() []byte {
	if !f.Flagged {
		return MustEncodeOperation(OpSetFormat, []byte{STX, f.Code})
	}
	return MustEncodeOperation(OpSetFormat, []byte{STX, f.Code, f.Flags(), f.Checksum()})
}

func (f DataFormat) String() string {
	if !f.Flagged {
		return fmt.Sprintf("format 0x%02X", f.Code)
	}
	return fmt.Sprintf("format 0x%02X (spot-check=%t, bt-at-power-on=%t)", f.Code, f.SpotCheck, f.BluetoothAtPowerOn)
}

// ParseDataFormat resolves a format name ("onyx", "wristox") or a numeric
// format code ("7", "0x07") to a plain request.
func ParseDataFormat(name string) (DataFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "onyx":
		return OnyxFormat, nil
	case "wristox":
		return WristOxFormat, nil
	}
	code, err := strconv.ParseUint(strings.TrimSpace(name), 0, 8)
	if err != nil {
		return DataFormat{}, fmt.Errorf("unknown data format %q (use onyx, wristox, or a format code)", name)
	}
	return PlainFormat(byte(code)), nil
}
