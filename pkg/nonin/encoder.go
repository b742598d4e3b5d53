// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

// Reading holds the field values of a measurement packet. Use
// MissingHeartRate / MissingSpO2 for values the device could not compute.
type Reading struct {
	Status Status

	HeartRate         int
	HeartRate8        int
	HeartRateDisplay  int
	HeartRate8Display int

	SpO2           int
	SpO2Display    int
	SpO2Fast       int
	SpO2BeatToBeat int
	SpO28          int
	SpO28Display   int

	FirmwareRevision byte
	Timer            uint16
	SmartPoint       bool
	LowBattery       bool

	// Pleth holds up to FramesPerPacket samples
	Pleth []uint16
}

// Packet builds the packet a device would produce for this reading.
// Values are truncated to their wire widths.
func (r Reading) Packet() *Packet {
	p := &Packet{
		status:            (r.Status | StatusAlways) &^ StatusSync,
		heartRate:         uint16(r.HeartRate) & 0x1FF,
		heartRate8:        uint16(r.HeartRate8) & 0x1FF,
		heartRateDisplay:  uint16(r.HeartRateDisplay) & 0x1FF,
		heartRate8Display: uint16(r.HeartRate8Display) & 0x1FF,
		spo2:              byte(r.SpO2) & 0x7F,
		spo2Display:       byte(r.SpO2Display) & 0x7F,
		spo2Fast:          byte(r.SpO2Fast) & 0x7F,
		spo2BeatToBeat:    byte(r.SpO2BeatToBeat) & 0x7F,
		spo28:             byte(r.SpO28) & 0x7F,
		spo28Display:      byte(r.SpO28Display) & 0x7F,
		firmwareRevision:  r.FirmwareRevision,
		timer:             r.Timer & 0x3FFF,
	}
	if r.SmartPoint {
		p.stat2 |= Stat2SmartPoint
	}
	if r.LowBattery {
		p.stat2 |= Stat2LowBattery
	}
	copy(p.pleth[:], r.Pleth)
	return p
}

// EncodePacket encodes a packet as FramesPerPacket Format 7 frames. The
// first frame carries the sync bit; every frame carries the packet status.
func EncodePacket(p *Packet) []byte {
	out := make([]byte, 0, FrameLength*FramesPerPacket)
	status := byte(p.status|StatusAlways) &^ StatusSync

	for i := 0; i < FramesPerPacket; i++ {
		frame := make([]byte, FrameLength)
		frame[0] = status
		if i == 0 {
			frame[0] |= StatusSync
		}
		frame[1] = byte(p.pleth[i] >> 8)
		frame[2] = byte(p.pleth[i])
		frame[3] = p.floatByte(i)
		frame[4] = CalculateChecksum(frame)
		out = append(out, frame...)
	}
	return out
}

// floatByte is the inverse of Format7.setFloat
func (p *Packet) floatByte(index int) byte {
	switch index {
	case floatHeartRateMSB:
		return msb(p.heartRate)
	case floatHeartRateLSB:
		return lsb(p.heartRate)
	case floatSpO2:
		return p.spo2
	case floatFirmwareRevision:
		return p.firmwareRevision
	case floatTimerMSB:
		return byte(p.timer>>7) & 0x7F
	case floatTimerLSB:
		return byte(p.timer) & 0x7F
	case floatStat2:
		return p.stat2
	case floatSpO2Display:
		return p.spo2Display
	case floatSpO2Fast:
		return p.spo2Fast
	case floatSpO2BeatToBeat:
		return p.spo2BeatToBeat
	case floatHeartRate8MSB:
		return msb(p.heartRate8)
	case floatHeartRate8LSB:
		return lsb(p.heartRate8)
	case floatSpO28:
		return p.spo28
	case floatSpO28Display:
		return p.spo28Display
	case floatHeartRateDisplayMSB:
		return msb(p.heartRateDisplay)
	case floatHeartRateDisplayLSB:
		return lsb(p.heartRateDisplay)
	case floatHeartRate8DisplayMSB:
		return msb(p.heartRate8Display)
	case floatHeartRate8DisplayLSB:
		return lsb(p.heartRate8Display)
	default:
		return 0
	}
}

func msb(hr uint16) byte { return byte(hr>>7) & 0x03 }
func lsb(hr uint16) byte { return byte(hr) & 0x7F }
