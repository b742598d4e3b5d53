// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the device configuration.
type Config struct {
	// Logger receives frame errors, retransmissions and stream shutdown (optional)
	Logger zerolog.Logger

	// PacketHandler is called once per completed packet on the reader
	// goroutine (optional)
	PacketHandler func(*Packet)

	// Listener observes every decoder event after the device has handled it (optional)
	Listener Listener

	// Codec is the measurement frame format
	Codec Codec

	// SerialAttemptTimeout is how long each get-serial request waits for a reply
	SerialAttemptTimeout time.Duration

	// SerialTimeout is the overall deadline for FetchSerial
	SerialTimeout time.Duration

	// FormatAttemptTimeout is how long each set-format request waits for ACK/NAK
	FormatAttemptTimeout time.Duration

	// FormatNakLimit is the number of consecutive NAKs after which
	// SetDataFormat reports rejection
	FormatNakLimit int

	// ReadBufferSize is the size of a single transport read
	ReadBufferSize int

	// Clock stamps packet completions
	Clock func() time.Time
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:               zerolog.Nop(),
		PacketHandler:        func(*Packet) {},
		Listener:             nopListener{},
		SerialAttemptTimeout: 2 * time.Second,
		SerialTimeout:        10 * time.Second,
		FormatAttemptTimeout: 5 * time.Second,
		FormatNakLimit:       3,
		ReadBufferSize:       FrameLength * FramesPerPacket * 3,
		Clock:                time.Now,
	}
}

// Option is a functional option for configuring the Device.
type Option func(*Config)

// WithLogger sets the logger for device events.
//
// Example:
//
//	dev := nonin.New(port, nonin.WithLogger(zerolog.New(os.Stderr)))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithPacketHandler sets a callback invoked for every completed packet.
func WithPacketHandler(handler func(*Packet)) Option {
	return func(c *Config) {
		if handler != nil {
			c.PacketHandler = handler
		}
	}
}

// WithListener sets a listener that observes all decoder events.
func WithListener(listener Listener) Option {
	return func(c *Config) {
		if listener != nil {
			c.Listener = listener
		}
	}
}

// WithCodec replaces the Format 7 frame codec.
func WithCodec(codec Codec) Option {
	return func(c *Config) {
		if codec != nil {
			c.Codec = codec
		}
	}
}

// WithSerialTimeouts sets the per-attempt and overall FetchSerial timeouts.
//
// Example:
//
//	dev := nonin.New(port, nonin.WithSerialTimeouts(time.Second, 5*time.Second))
func WithSerialTimeouts(attempt, overall time.Duration) Option {
	return func(c *Config) {
		if attempt > 0 {
			c.SerialAttemptTimeout = attempt
		}
		if overall > 0 {
			c.SerialTimeout = overall
		}
	}
}

// WithFormatTimeout sets the per-attempt SetDataFormat timeout.
func WithFormatTimeout(attempt time.Duration) Option {
	return func(c *Config) {
		if attempt > 0 {
			c.FormatAttemptTimeout = attempt
		}
	}
}

// WithFormatNakLimit sets how many consecutive NAKs SetDataFormat tolerates
// before reporting rejection. A limit of 1 returns on the first NAK.
func WithFormatNakLimit(limit int) Option {
	return func(c *Config) {
		if limit > 0 {
			c.FormatNakLimit = limit
		}
	}
}

// WithReadBufferSize sets the maximum size of a single transport read.
func WithReadBufferSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ReadBufferSize = size
		}
	}
}

// WithClock replaces the clock used to stamp packet completions.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}
