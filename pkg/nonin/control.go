// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"context"
	"fmt"
	"time"
)

// SendOperation frames an operation and writes it to the transport in a
// single write, then flushes.
func (d *Device) SendOperation(opcode byte, payload []byte) error {
	buf, err := EncodeOperation(opcode, payload)
	if err != nil {
		return err
	}
	return d.write(buf)
}

func (d *Device) write(buf []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if _, err := d.conn.Write(buf); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if f, ok := d.conn.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

// FetchSerial queries the device serial number. The request is resent
// after every attempt window without a serial reply; once the overall
// deadline has passed FetchSerial gives up with ErrNoReply.
func (d *Device) FetchSerial(ctx context.Context) (string, error) {
	d.control.Lock()
	defer d.control.Unlock()
	defer d.setOperationWaiter(nil)

	deadline := time.Now().Add(d.config.SerialTimeout)
	for attempt := 1; ; attempt++ {
		if !time.Now().Before(deadline) {
			return "", ErrNoReply
		}

		// A fresh slot per attempt: replies already in flight for an
		// earlier request land in the abandoned channel.
		ch := make(chan Operation, 1)
		d.setOperationWaiter(ch)

		d.log.Debug().Int("attempt", attempt).Msg("sending get-serial")
		if err := d.write(GetSerialCommand(DefaultSerialID)); err != nil {
			return "", err
		}

		serial, ok, err := d.waitSerial(ctx, ch)
		if err != nil {
			return "", err
		}
		if ok {
			return serial, nil
		}
	}
}

func (d *Device) waitSerial(ctx context.Context, ch <-chan Operation) (string, bool, error) {
	timer := time.NewTimer(d.config.SerialAttemptTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-timer.C:
			return "", false, nil
		case op := <-ch:
			if serial, ok := ParseSerial(op); ok {
				return serial, true, nil
			}
			d.log.Debug().Str("opcode", fmt.Sprintf("0x%02X", op.Opcode)).Msg("ignoring operation while waiting for serial")
		}
	}
}

// ParseSerial extracts the serial number from a serial reply: the payload
// holds a one-byte echo followed by a fixed-width identifier.
func ParseSerial(op Operation) (string, bool) {
	if op.Opcode != OpRecvSerial || len(op.Payload) < SerialEchoLength+SerialLength {
		return "", false
	}
	return string(op.Payload[SerialEchoLength : SerialEchoLength+SerialLength]), true
}

// SetDataFormat asks the device to stream the given format. The request is
// resent after every attempt window without an answer, and after every NAK
// until FormatNakLimit consecutive NAKs have been seen. It returns true on
// ACK and false once the NAK limit is reached. There is no overall
// deadline; cancel ctx to give up.
func (d *Device) SetDataFormat(ctx context.Context, format DataFormat) (bool, error) {
	d.control.Lock()
	defer d.control.Unlock()
	defer d.setAckWaiter(nil)

	naks := 0
	for attempt := 1; ; attempt++ {
		ch := make(chan bool, 1)
		d.setAckWaiter(ch)

		d.log.Debug().Int("attempt", attempt).Str("format", format.String()).Msg("sending set-format")
		if err := d.write(format.Command()); err != nil {
			return false, err
		}

		timer := time.NewTimer(d.config.FormatAttemptTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case ack := <-ch:
			timer.Stop()
			if ack {
				return true, nil
			}
			naks++
			if naks >= d.config.FormatNakLimit {
				return false, nil
			}
			d.log.Debug().Int("naks", naks).Msg("set-format rejected, resending")
		case <-timer.C:
		}
	}
}

func (d *Device) setOperationWaiter(ch chan Operation) {
	d.mu.Lock()
	d.opWaiter = ch
	d.mu.Unlock()
}

func (d *Device) setAckWaiter(ch chan bool) {
	d.mu.Lock()
	d.ackWaiter = ch
	d.mu.Unlock()
}
