// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import "time"

// Status is the STATUS byte of a measurement frame
type Status byte

// IsSync reports whether the frame starts a new packet
func (s Status) IsSync() bool { return s&StatusSync != 0 }

// IsArtifact reports an artifact condition
func (s Status) IsArtifact() bool { return s&StatusArtifact != 0 }

// IsOutOfTrack reports an out-of-track condition
func (s Status) IsOutOfTrack() bool { return s&StatusOutOfTrack != 0 }

// IsSensorAlarm reports that the device is providing unusable data
// (typically a detached sensor)
func (s Status) IsSensorAlarm() bool { return s&StatusSensorAlarm != 0 }

// IsSensorDisconnect reports that no sensor is connected
func (s Status) IsSensorDisconnect() bool { return s&StatusSensorDisconnect != 0 }

// IsGreenPerfusion reports good perfusion (red and yellow bits both set)
func (s Status) IsGreenPerfusion() bool {
	return s&(StatusRedPerfusion|StatusYellowPerfusion) == StatusRedPerfusion|StatusYellowPerfusion
}

// IsRedPerfusion reports low perfusion
func (s Status) IsRedPerfusion() bool {
	return s&(StatusRedPerfusion|StatusYellowPerfusion) == StatusRedPerfusion
}

// IsYellowPerfusion reports marginal perfusion
func (s Status) IsYellowPerfusion() bool {
	return s&(StatusRedPerfusion|StatusYellowPerfusion) == StatusYellowPerfusion
}

// Packet is a completed measurement packet assembled from FramesPerPacket
// frames. Packets are immutable once published.
type Packet struct {
	status Status
	stat2  byte

	heartRate         uint16
	heartRate8        uint16
	heartRateDisplay  uint16
	heartRate8Display uint16

	spo2           byte
	spo2Display    byte
	spo2Fast       byte
	spo2BeatToBeat byte
	spo28          byte
	spo28Display   byte

	firmwareRevision byte
	timer            uint16
	pleth            [FramesPerPacket]uint16

	timestamp time.Time
}

func heartRateValue(v uint16) (int, bool) {
	if v == MissingHeartRate {
		return 0, false
	}
	return int(v), true
}

func spo2Value(v byte) (int, bool) {
	if v == MissingSpO2 {
		return 0, false
	}
	return int(v), true
}

// Status returns the status of the packet's last frame
func (p *Packet) Status() Status {
	return p.status
}

// AvgHeartRateFourBeat returns the 4-beat average heart rate
func (p *Packet) AvgHeartRateFourBeat() (int, bool) {
	return heartRateValue(p.heartRate)
}

// AvgHeartRateEightBeat returns the 8-beat average heart rate
func (p *Packet) AvgHeartRateEightBeat() (int, bool) {
	return heartRateValue(p.heartRate8)
}

// AvgHeartRateFourBeatForDisplay returns the display-rounded 4-beat heart rate
func (p *Packet) AvgHeartRateFourBeatForDisplay() (int, bool) {
	return heartRateValue(p.heartRateDisplay)
}

// AvgHeartRateEightBeatForDisplay returns the display-rounded 8-beat heart rate
func (p *Packet) AvgHeartRateEightBeatForDisplay() (int, bool) {
	return heartRateValue(p.heartRate8Display)
}

// AvgSpO2FourBeat returns the 4-beat average SpO2
func (p *Packet) AvgSpO2FourBeat() (int, bool) {
	return spo2Value(p.spo2)
}

// AvgSpO2FourBeatForDisplay returns the display-rounded 4-beat SpO2
func (p *Packet) AvgSpO2FourBeatForDisplay() (int, bool) {
	return spo2Value(p.spo2Display)
}

// AvgSpO2FourBeatFast returns the fast-responding 4-beat SpO2
func (p *Packet) AvgSpO2FourBeatFast() (int, bool) {
	return spo2Value(p.spo2Fast)
}

// SpO2BeatToBeat returns the unaveraged beat-to-beat SpO2
func (p *Packet) SpO2BeatToBeat() (int, bool) {
	return spo2Value(p.spo2BeatToBeat)
}

// AvgSpO2EightBeat returns the 8-beat average SpO2
func (p *Packet) AvgSpO2EightBeat() (int, bool) {
	return spo2Value(p.spo28)
}

// AvgSpO2EightBeatForDisplay returns the display-rounded 8-beat SpO2
func (p *Packet) AvgSpO2EightBeatForDisplay() (int, bool) {
	return spo2Value(p.spo28Display)
}

// FirmwareRevision returns the device firmware revision
func (p *Packet) FirmwareRevision() byte {
	return p.firmwareRevision
}

// Timer returns the device's internal timer value
func (p *Packet) Timer() uint16 {
	return p.timer
}

// IsSmartPoint reports that the reading passed the SmartPoint algorithm
func (p *Packet) IsSmartPoint() bool {
	return p.stat2&Stat2SmartPoint != 0
}

// IsLowBattery reports a low battery condition
func (p *Packet) IsLowBattery() bool {
	return p.stat2&Stat2LowBattery != 0
}

// Pleth returns a copy of the packet's plethysmograph samples, one per frame
func (p *Packet) Pleth() []uint16 {
	out := make([]uint16, len(p.pleth))
	copy(out, p.pleth[:])
	return out
}

// Timestamp returns the time the packet's last frame was decoded
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}
