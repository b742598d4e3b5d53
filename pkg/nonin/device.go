// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Flusher is implemented by transports that buffer writes
type Flusher interface {
	Flush() error
}

// Device is a pulse oximeter attached to a byte stream. A single goroutine
// runs Run to pump transport reads into the decoder; control operations
// (FetchSerial, SetDataFormat) may be called from another goroutine while
// Run is active.
//
// Control operations are serialized: a second caller waits for the first
// to finish.
type Device struct {
	conn    io.ReadWriter
	config  Config
	decoder *Decoder
	log     zerolog.Logger

	writeMu sync.Mutex
	control sync.Mutex

	// mu guards the waiters the reader delivers control events to
	mu        sync.Mutex
	opWaiter  chan Operation
	ackWaiter chan bool
}

// New creates a device on the given transport. Frame decoding stays
// disabled until SetReady(true).
//
// Example:
//
//	dev := nonin.New(port, nonin.WithPacketHandler(func(p *nonin.Packet) {
//	    fmt.Println(nonin.FormatPacket(p))
//	}))
//	dev.SetReady(true)
//	go dev.Run()
func New(conn io.ReadWriter, opts ...Option) *Device {
	if conn == nil {
		panic("conn cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Codec == nil {
		cfg.Codec = NewFormat7()
	}

	d := &Device{
		conn:   conn,
		config: cfg,
		log:    cfg.Logger,
	}
	d.decoder = NewDecoder(cfg.Codec, deviceListener{d})
	d.decoder.now = cfg.Clock
	return d
}

// Run reads the transport until end-of-stream, feeding the decoder.
// End-of-stream clears readiness and returns nil; any other read error is
// returned after clearing readiness.
func (d *Device) Run() error {
	buf := make([]byte, d.config.ReadBufferSize)
	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			d.decoder.Feed(buf[:n])
		}
		if err != nil {
			d.decoder.SetReady(false)
			if IsEndOfStream(err) {
				d.log.Info().Msg("end of stream")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

// IsEndOfStream reports whether a read error means the transport has
// closed normally
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}

// SetReady enables or disables frame decoding
func (d *Device) SetReady(ready bool) {
	d.decoder.SetReady(ready)
}

// Ready reports whether frames are being decoded
func (d *Device) Ready() bool {
	return d.decoder.Ready()
}

// Store returns the packet store
func (d *Device) Store() *Store {
	return d.decoder.Store()
}

// Packet returns the most recently completed packet, or nil
func (d *Device) Packet() *Packet {
	return d.decoder.Store().Packet()
}

// HeartRate returns the gated 4-beat heart rate (see Store.HeartRate)
func (d *Device) HeartRate() (int, bool) {
	return d.decoder.Store().HeartRate()
}

// SpO2 returns the gated 4-beat SpO2 (see Store.SpO2)
func (d *Device) SpO2() (int, bool) {
	return d.decoder.Store().SpO2()
}

// PacketsPerSecond returns the smoothed packet throughput
func (d *Device) PacketsPerSecond() float64 {
	return d.decoder.Store().PacketsPerSecond()
}

// MillisecondsPerSample returns the pleth sample pacing of the codec
func (d *Device) MillisecondsPerSample() float64 {
	return 1000.0 / (3.0 * float64(d.config.Codec.FramesPerPacket()))
}

// deviceListener routes decoder events to pending control waits, the
// logger and the configured hooks.
type deviceListener struct {
	d *Device
}

func (l deviceListener) OperationReceived(op Operation) {
	d := l.d
	d.log.Debug().Str("opcode", fmt.Sprintf("0x%02X", op.Opcode)).Int("len", len(op.Payload)).Msg("operation received")

	d.mu.Lock()
	if d.opWaiter != nil {
		offer(d.opWaiter, op)
	}
	d.mu.Unlock()

	d.config.Listener.OperationReceived(op)
}

func (l deviceListener) AckReceived(ack bool) {
	d := l.d
	d.log.Debug().Bool("ack", ack).Msg("acknowledgement received")

	d.mu.Lock()
	if d.ackWaiter != nil {
		offer(d.ackWaiter, ack)
	}
	d.mu.Unlock()

	d.config.Listener.AckReceived(ack)
}

func (l deviceListener) PacketReceived(p *Packet) {
	l.d.config.PacketHandler(p)
	l.d.config.Listener.PacketReceived(p)
}

func (l deviceListener) FrameError(err *FrameError) {
	l.d.log.Warn().Str("kind", err.Kind.String()).Hex("frame", err.Frame).Msg("frame error")
	l.d.config.Listener.FrameError(err)
}

// offer replaces whatever is waiting in a single-slot channel with v.
// Callers must hold Device.mu, which makes them the only sender.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
