// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nonin decodes the serial stream of a Nonin-style pulse oximeter.
//
// The stream interleaves fixed-length measurement frames with control bytes
// (STX-framed operations, single-byte ACK/NAK). The package reassembles
// frames into measurement packets, tracks packet throughput, and provides
// blocking request/response control operations (serial number query, data
// format negotiation) over the same stream.
package nonin

// Control channel bytes
const (
	STX = 0x02
	ETX = 0x03
	ACK = 0x06
	NAK = 0x15
)

// Operation opcodes
const (
	OpSetFormat  = 0x70
	OpGetSerial  = 0x74
	OpRecvSerial = 0xF4
)

// Data format codes
const (
	FormatCode7 = 0x07
)

// Set-format option bits
const (
	FlagSpotCheck          = 0x40
	FlagBluetoothAtPowerOn = 0x20
)

// Format 7 frame geometry
const (
	FrameLength     = 5
	FramesPerPacket = 25
	FramesPerSecond = 3 * FramesPerPacket
)

// MillisecondsPerSample is the pacing of pleth samples (one per frame).
const MillisecondsPerSample = 1000.0 / (3.0 * FramesPerPacket)

// ArrivalRingSize is the number of packet completions the throughput
// estimate is averaged over.
const ArrivalRingSize = 30

// Status byte bits
const (
	StatusAlways           = 0x80
	StatusSensorDisconnect = 0x40
	StatusArtifact         = 0x20
	StatusOutOfTrack       = 0x10
	StatusSensorAlarm      = 0x08
	StatusYellowPerfusion  = 0x04
	StatusRedPerfusion     = 0x02
	StatusSync             = 0x01
)

// STAT2 bits
const (
	Stat2SmartPoint = 0x20
	Stat2LowBattery = 0x01
)

// Missing-value markers
const (
	MissingHeartRate = 511
	MissingSpO2      = 127
)

// Serial number reply layout: one echo byte followed by the identifier.
const (
	SerialEchoLength = 1
	SerialLength     = 9
	DefaultSerialID  = 2
)

// Frame indices (0-based) of the FLOAT byte fields within a packet
const (
	floatHeartRateMSB = iota
	floatHeartRateLSB
	floatSpO2
	floatFirmwareRevision
	_
	floatTimerMSB
	floatTimerLSB
	floatStat2
	floatSpO2Display
	floatSpO2Fast
	floatSpO2BeatToBeat
	_
	_
	floatHeartRate8MSB
	floatHeartRate8LSB
	floatSpO28
	floatSpO28Display
	_
	_
	floatHeartRateDisplayMSB
	floatHeartRateDisplayLSB
	floatHeartRate8DisplayMSB
	floatHeartRate8DisplayLSB
)

// controlHeaderLength is STX, opcode and length; the ETX trailer makes
// a full operation 4+len bytes.
const controlHeaderLength = 3
