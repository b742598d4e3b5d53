// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import "time"

// Codec is the measurement frame format the Decoder depends on. It knows the
// frame geometry, the sync and checksum tests, and how frames fold into a
// packet.
type Codec interface {
	// FrameLength returns the fixed number of bytes in a frame
	FrameLength() int
	// FramesPerPacket returns the number of frames making up one packet
	FramesPerPacket() int
	// IsSync reports whether the frame starts a new packet
	IsSync(frame []byte) bool
	// ValidFrame reports whether the frame passes its checksum
	ValidFrame(frame []byte) bool
	// DecodeFrame folds one valid frame into the packet in progress.
	// It returns the finished packet and true when the frame completes it.
	DecodeFrame(frame []byte, now time.Time) (*Packet, bool)
	// Reset discards any packet in progress
	Reset()
}

// Format7 decodes Nonin serial data format #7: 5-byte frames, 25 frames per
// packet, one FLOAT byte per frame carrying a slice of the packet's fields.
//
// Frames are accumulated into a private builder; a Packet is only handed out
// once all of its frames have arrived.
type Format7 struct {
	building Packet
	index    int
	started  bool
}

// NewFormat7 creates a Format 7 codec
func NewFormat7() *Format7 {
	return &Format7{}
}

// FrameLength returns the Format 7 frame length
func (c *Format7) FrameLength() int { return FrameLength }

// FramesPerPacket returns the number of frames in a Format 7 packet
func (c *Format7) FramesPerPacket() int { return FramesPerPacket }

// IsSync reports whether the frame's status byte has the sync bit set
func (c *Format7) IsSync(frame []byte) bool {
	return Status(frame[0]).IsSync()
}

// ValidFrame reports whether the frame checksum matches
func (c *Format7) ValidFrame(frame []byte) bool {
	return ValidChecksum(frame)
}

// Reset discards the packet in progress
func (c *Format7) Reset() {
	c.building = Packet{}
	c.index = 0
	c.started = false
}

// DecodeFrame folds a frame into the packet in progress. A sync frame always
// starts a new packet, dropping any partial one. Non-sync frames arriving
// with no packet in progress are ignored.
func (c *Format7) DecodeFrame(frame []byte, now time.Time) (*Packet, bool) {
	status := Status(frame[0])
	if status.IsSync() {
		c.Reset()
		c.started = true
	}
	if !c.started {
		return nil, false
	}

	b := &c.building
	b.status = status
	b.pleth[c.index] = uint16(frame[1])<<8 | uint16(frame[2])
	c.setFloat(c.index, frame[3])
	c.index++

	if c.index < FramesPerPacket {
		return nil, false
	}

	packet := c.building
	packet.timestamp = now
	c.Reset()
	return &packet, true
}

func (c *Format7) setFloat(index int, v byte) {
	b := &c.building
	switch index {
	case floatHeartRateMSB:
		b.heartRate = setMSB(b.heartRate, v)
	case floatHeartRateLSB:
		b.heartRate = setLSB(b.heartRate, v)
	case floatSpO2:
		b.spo2 = v & 0x7F
	case floatFirmwareRevision:
		b.firmwareRevision = v
	case floatTimerMSB:
		b.timer = uint16(v&0x7F)<<7 | b.timer&0x7F
	case floatTimerLSB:
		b.timer = b.timer&^0x7F | uint16(v&0x7F)
	case floatStat2:
		b.stat2 = v
	case floatSpO2Display:
		b.spo2Display = v & 0x7F
	case floatSpO2Fast:
		b.spo2Fast = v & 0x7F
	case floatSpO2BeatToBeat:
		b.spo2BeatToBeat = v & 0x7F
	case floatHeartRate8MSB:
		b.heartRate8 = setMSB(b.heartRate8, v)
	case floatHeartRate8LSB:
		b.heartRate8 = setLSB(b.heartRate8, v)
	case floatSpO28:
		b.spo28 = v & 0x7F
	case floatSpO28Display:
		b.spo28Display = v & 0x7F
	case floatHeartRateDisplayMSB:
		b.heartRateDisplay = setMSB(b.heartRateDisplay, v)
	case floatHeartRateDisplayLSB:
		b.heartRateDisplay = setLSB(b.heartRateDisplay, v)
	case floatHeartRate8DisplayMSB:
		b.heartRate8Display = setMSB(b.heartRate8Display, v)
	case floatHeartRate8DisplayLSB:
		b.heartRate8Display = setLSB(b.heartRate8Display, v)
	}
}

// Heart rates are 9 bits: bits 7-8 in the low two bits of the MSB byte,
// bits 0-6 in the LSB byte.
func setMSB(hr uint16, v byte) uint16 {
	return uint16(v&0x03)<<7 | hr&0x7F
}

func setLSB(hr uint16, v byte) uint16 {
	return hr&^0x7F | uint16(v&0x7F)
}
