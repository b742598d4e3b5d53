// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"sync/atomic"
	"time"
)

// Store holds the most recently completed packet. It is written only by the
// Decoder and may be read from any goroutine.
//
// Every accessor reports ok=false until a packet has completed, so callers
// can tell "unknown" apart from a zero reading.
type Store struct {
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	packet *Packet
	rate   float64
}

// NewStore creates an empty packet store
func NewStore() *Store {
	return &Store{}
}

func (s *Store) publish(p *Packet, rate float64) {
	s.current.Store(&snapshot{packet: p, rate: rate})
}

// Packet returns the current packet, or nil if none has completed
func (s *Store) Packet() *Packet {
	if snap := s.current.Load(); snap != nil {
		return snap.packet
	}
	return nil
}

// PacketsPerSecond returns the throughput measured at the last completion
func (s *Store) PacketsPerSecond() float64 {
	if snap := s.current.Load(); snap != nil {
		return snap.rate
	}
	return 0
}

// HeartRate returns the 4-beat average heart rate, gated on the sensor alarm:
// it is only reported when the alarm flag is known and clear.
func (s *Store) HeartRate() (int, bool) {
	p := s.Packet()
	if p == nil || p.Status().IsSensorAlarm() {
		return 0, false
	}
	return p.AvgHeartRateFourBeat()
}

// SpO2 returns the 4-beat average SpO2, gated on the sensor alarm like HeartRate.
func (s *Store) SpO2() (int, bool) {
	p := s.Packet()
	if p == nil || p.Status().IsSensorAlarm() {
		return 0, false
	}
	return p.AvgSpO2FourBeat()
}

func (s *Store) value(get func(*Packet) (int, bool)) (int, bool) {
	p := s.Packet()
	if p == nil {
		return 0, false
	}
	return get(p)
}

func (s *Store) flag(get func(*Packet) bool) (bool, bool) {
	p := s.Packet()
	if p == nil {
		return false, false
	}
	return get(p), true
}

func (s *Store) status(get func(Status) bool) (bool, bool) {
	return s.flag(func(p *Packet) bool { return get(p.Status()) })
}

// AvgHeartRateFourBeat returns the ungated 4-beat average heart rate
func (s *Store) AvgHeartRateFourBeat() (int, bool) {
	return s.value((*Packet).AvgHeartRateFourBeat)
}

// AvgHeartRateEightBeat returns the 8-beat average heart rate
func (s *Store) AvgHeartRateEightBeat() (int, bool) {
	return s.value((*Packet).AvgHeartRateEightBeat)
}

// AvgHeartRateFourBeatForDisplay returns the display-rounded 4-beat heart rate
func (s *Store) AvgHeartRateFourBeatForDisplay() (int, bool) {
	return s.value((*Packet).AvgHeartRateFourBeatForDisplay)
}

// AvgHeartRateEightBeatForDisplay returns the display-rounded 8-beat heart rate
func (s *Store) AvgHeartRateEightBeatForDisplay() (int, bool) {
	return s.value((*Packet).AvgHeartRateEightBeatForDisplay)
}

// AvgSpO2FourBeat returns the ungated 4-beat average SpO2
func (s *Store) AvgSpO2FourBeat() (int, bool) {
	return s.value((*Packet).AvgSpO2FourBeat)
}

// AvgSpO2FourBeatFast returns the fast 4-beat SpO2
func (s *Store) AvgSpO2FourBeatFast() (int, bool) {
	return s.value((*Packet).AvgSpO2FourBeatFast)
}

// SpO2BeatToBeat returns the beat-to-beat SpO2
func (s *Store) SpO2BeatToBeat() (int, bool) {
	return s.value((*Packet).SpO2BeatToBeat)
}

// AvgSpO2EightBeat returns the 8-beat average SpO2
func (s *Store) AvgSpO2EightBeat() (int, bool) {
	return s.value((*Packet).AvgSpO2EightBeat)
}

// AvgSpO2EightBeatForDisplay returns the display-rounded 8-beat SpO2
func (s *Store) AvgSpO2EightBeatForDisplay() (int, bool) {
	return s.value((*Packet).AvgSpO2EightBeatForDisplay)
}

// IsArtifact reports the artifact flag
func (s *Store) IsArtifact() (bool, bool) { return s.status(Status.IsArtifact) }

// IsOutOfTrack reports the out-of-track flag
func (s *Store) IsOutOfTrack() (bool, bool) { return s.status(Status.IsOutOfTrack) }

// IsSensorAlarm reports the sensor alarm flag
func (s *Store) IsSensorAlarm() (bool, bool) { return s.status(Status.IsSensorAlarm) }

// IsSensorDisconnect reports the sensor disconnect flag
func (s *Store) IsSensorDisconnect() (bool, bool) { return s.status(Status.IsSensorDisconnect) }

// IsRedPerfusion reports the red perfusion indication
func (s *Store) IsRedPerfusion() (bool, bool) { return s.status(Status.IsRedPerfusion) }

// IsGreenPerfusion reports the green perfusion indication
func (s *Store) IsGreenPerfusion() (bool, bool) { return s.status(Status.IsGreenPerfusion) }

// IsYellowPerfusion reports the yellow perfusion indication
func (s *Store) IsYellowPerfusion() (bool, bool) { return s.status(Status.IsYellowPerfusion) }

// IsSmartPoint reports the SmartPoint flag
func (s *Store) IsSmartPoint() (bool, bool) { return s.flag((*Packet).IsSmartPoint) }

// IsLowBattery reports the low battery flag
func (s *Store) IsLowBattery() (bool, bool) { return s.flag((*Packet).IsLowBattery) }

// FirmwareRevision returns the firmware revision of the current packet
func (s *Store) FirmwareRevision() (byte, bool) {
	p := s.Packet()
	if p == nil {
		return 0, false
	}
	return p.FirmwareRevision(), true
}

// Timer returns the device timer of the current packet
func (s *Store) Timer() (uint16, bool) {
	p := s.Packet()
	if p == nil {
		return 0, false
	}
	return p.Timer(), true
}

// Timestamp returns the completion time of the current packet
func (s *Store) Timestamp() (time.Time, bool) {
	p := s.Packet()
	if p == nil {
		return time.Time{}, false
	}
	return p.Timestamp(), true
}
