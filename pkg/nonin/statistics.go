// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Packets          uint64
	AnomalousPackets uint64
	SensorAlarms     uint64
	ChecksumErrors   uint64
	ResyncErrors     uint64
	Operations       uint64
	Acks             uint64
	Naks             uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // frame errors/sec
}

// FrameErrors returns the total number of discarded frames
func (c Counters) FrameErrors() uint64 {
	return c.ChecksumErrors + c.ResyncErrors
}

// Statistics tracks decoder events and error rates. It implements Listener
// and is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

var _ Listener = (*Statistics)(nil)

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{c: Counters{StartTime: now, LastUpdateTime: now}}
}

// PacketReceived counts a completed packet and its validation anomalies
func (s *Statistics) PacketReceived(p *Packet) {
	errors := ValidatePacket(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Packets++
	if len(errors) > 0 {
		s.c.AnomalousPackets++
	}
	for _, err := range errors {
		if err.Type == AnomalySensorAlarm {
			s.c.SensorAlarms++
		}
	}
	s.c.LastUpdateTime = time.Now()
}

// FrameError counts a discarded frame
func (s *Statistics) FrameError(err *FrameError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch err.Kind {
	case FrameErrorChecksum:
		s.c.ChecksumErrors++
	case FrameErrorResync:
		s.c.ResyncErrors++
	}
	s.c.LastUpdateTime = time.Now()
}

// OperationReceived counts a control operation
func (s *Statistics) OperationReceived(Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Operations++
	s.c.LastUpdateTime = time.Now()
}

// AckReceived counts an ACK or NAK
func (s *Statistics) AckReceived(ack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ack {
		s.c.Acks++
	} else {
		s.c.Naks++
	}
	s.c.LastUpdateTime = time.Now()
}

// Snapshot calculates rates and returns a copy of the counters
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.PacketRate = float64(s.c.Packets) / elapsed
		s.c.ErrorRate = float64(s.c.FrameErrors()) / elapsed
	}
	return s.c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	c := s.Snapshot()

	var errorPercent, anomalousPercent float64
	if total := c.Packets*FramesPerPacket + c.FrameErrors(); total > 0 {
		errorPercent = float64(c.FrameErrors()) * 100.0 / float64(total)
	}
	if c.Packets > 0 {
		anomalousPercent = float64(c.AnomalousPackets) * 100.0 / float64(c.Packets)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Packets:         %8d\n", c.Packets)
	if c.FrameErrors() > 0 {
		result += fmt.Sprintf("Frame Errors:    %8d (%.1f%% of frames)\n", c.FrameErrors(), errorPercent)
		if c.ChecksumErrors > 0 {
			result += fmt.Sprintf("  Checksum:         %5d\n", c.ChecksumErrors)
		}
		if c.ResyncErrors > 0 {
			result += fmt.Sprintf("  Resync:           %5d\n", c.ResyncErrors)
		}
	}
	if c.AnomalousPackets > 0 {
		result += fmt.Sprintf("Anomalous Pkts:  %8d (%.1f%%)\n", c.AnomalousPackets, anomalousPercent)
		if c.SensorAlarms > 0 {
			result += fmt.Sprintf("  Sensor Alarms:    %5d\n", c.SensorAlarms)
		}
	}
	if c.Operations > 0 || c.Acks > 0 || c.Naks > 0 {
		result += fmt.Sprintf("Control:         %8d ops, %d ACK, %d NAK\n", c.Operations, c.Acks, c.Naks)
	}
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", c.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{StartTime: now, LastUpdateTime: now}
}
