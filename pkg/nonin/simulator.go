// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Simulator plays the device side of the protocol: it streams Format 7
// packets at the device pace and answers get-serial and set-format requests.
type Simulator struct {
	conn   io.ReadWriter
	serial string
	log    zerolog.Logger

	// Reading produces the reading for the n-th packet
	Reading func(n int) Reading
	// Interval is the time between packets
	Interval time.Duration

	writeMu sync.Mutex
}

// NewSimulator creates a simulator answering with the given 9-character serial
func NewSimulator(conn io.ReadWriter, serial string, logger zerolog.Logger) *Simulator {
	return &Simulator{
		conn:     conn,
		serial:   serial,
		log:      logger,
		Reading:  SimulatedReading,
		Interval: time.Second / 3,
	}
}

// SimulatedReading is a resting adult: heart rate drifting around 72 bpm,
// SpO2 around 97%, and a pulse-shaped pleth waveform.
func SimulatedReading(n int) Reading {
	hr := 72 + int(4*math.Sin(float64(n)/20))
	spo2 := 97 + int(math.Round(math.Sin(float64(n)/35)))

	pleth := make([]uint16, FramesPerPacket)
	beat := 60.0 / float64(hr) // seconds per beat
	for i := range pleth {
		t := float64(n*FramesPerPacket+i) * MillisecondsPerSample / 1000
		phase := math.Mod(t, beat) / beat
		pleth[i] = uint16(32768 + 16000*math.Sin(2*math.Pi*phase))
	}

	return Reading{
		Status:            StatusRedPerfusion | StatusYellowPerfusion,
		HeartRate:         hr,
		HeartRate8:        hr,
		HeartRateDisplay:  hr,
		HeartRate8Display: hr,
		SpO2:              spo2,
		SpO2Display:       spo2,
		SpO2Fast:          spo2,
		SpO2BeatToBeat:    spo2,
		SpO28:             spo2,
		SpO28Display:      spo2,
		FirmwareRevision:  0x2A,
		Timer:             uint16(n / 3),
		SmartPoint:        true,
		Pleth:             pleth,
	}
}

// Run streams packets until ctx is cancelled or a write fails. Requests
// from the host are served on a separate goroutine until the transport
// read fails.
func (s *Simulator) Run(ctx context.Context) error {
	go s.serve()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.write(EncodePacket(s.Reading(n).Packet())); err != nil {
			return err
		}
	}
}

func (s *Simulator) serve() {
	decoder := NewDecoder(NewFormat7(), simulatorListener{s})
	buf := make([]byte, 64)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			decoder.Feed(buf[:n])
		}
		if err != nil {
			if !IsEndOfStream(err) {
				s.log.Warn().Err(err).Msg("simulator read failed")
			}
			return
		}
	}
}

func (s *Simulator) write(buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// handle answers one host request
func (s *Simulator) handle(op Operation) {
	switch op.Opcode {
	case OpGetSerial:
		echo := byte(DefaultSerialID)
		if len(op.Payload) > 0 {
			echo = op.Payload[0]
		}
		payload := make([]byte, SerialEchoLength+SerialLength)
		payload[0] = echo
		copy(payload[SerialEchoLength:], s.serial)
		s.log.Debug().Str("serial", s.serial).Msg("answering get-serial")
		if err := s.write(MustEncodeOperation(OpRecvSerial, payload)); err != nil {
			s.log.Warn().Err(err).Msg("serial reply failed")
		}

	case OpSetFormat:
		reply := byte(NAK)
		if len(op.Payload) >= 2 && op.Payload[1] == FormatCode7 {
			reply = ACK
		}
		s.log.Debug().Str("reply", FormatAck(reply == ACK)).Msg("answering set-format")
		if err := s.write([]byte{reply}); err != nil {
			s.log.Warn().Err(err).Msg("set-format reply failed")
		}

	default:
		s.log.Debug().Str("opcode", fmt.Sprintf("0x%02X", op.Opcode)).Msg("ignoring operation")
	}
}

type simulatorListener struct {
	s *Simulator
}

func (l simulatorListener) OperationReceived(op Operation) { l.s.handle(op) }
func (simulatorListener) AckReceived(bool)                 {}
func (simulatorListener) PacketReceived(*Packet)           {}
func (simulatorListener) FrameError(*FrameError)           {}
