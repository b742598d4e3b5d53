// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DecoderState is the decoder's expectation for the bytes at the head of
// its buffer
type DecoderState int

const (
	// StateSeekSync: no assumption about the next byte's role
	StateSeekSync DecoderState = iota
	// StateAwaitControlLength: an STX arrived, the length byte has not
	StateAwaitControlLength
	// StateAwaitControlBody: the operation's declared length is not buffered yet
	StateAwaitControlBody
	// StateAwaitFrame: less than a full measurement frame is buffered
	StateAwaitFrame
)

func (s DecoderState) String() string {
	switch s {
	case StateSeekSync:
		return "SEEK_SYNC"
	case StateAwaitControlLength:
		return "AWAIT_CONTROL_LENGTH"
	case StateAwaitControlBody:
		return "AWAIT_CONTROL_BODY"
	case StateAwaitFrame:
		return "AWAIT_FRAME"
	default:
		return fmt.Sprintf("DecoderState(%d)", int(s))
	}
}

// Operation is a tagged control message: STX opcode length payload ETX
type Operation struct {
	Opcode  byte
	Payload []byte
}

// Listener receives decoder events. Methods are called synchronously on the
// goroutine feeding the decoder, in stream order.
type Listener interface {
	OperationReceived(op Operation)
	AckReceived(ack bool)
	PacketReceived(p *Packet)
	FrameError(err *FrameError)
}

type nopListener struct{}

func (nopListener) OperationReceived(Operation) {}
func (nopListener) AckReceived(bool)            {}
func (nopListener) PacketReceived(*Packet)      {}
func (nopListener) FrameError(*FrameError)      {}

// Decoder consumes arbitrary-sized chunks of the device byte stream,
// separating control bytes from measurement frames.
//
// Feed, State and Buffered must be called from a single goroutine. SetReady
// and the Store may be used from any goroutine.
type Decoder struct {
	codec    Codec
	store    *Store
	ring     *ArrivalRing
	listener Listener
	now      func() time.Time

	ready           atomic.Bool
	state           DecoderState
	expectNewPacket bool

	buffer []byte
	head   int
}

// NewDecoder creates a decoder for the given frame codec. A nil listener
// discards events.
func NewDecoder(codec Codec, listener Listener) *Decoder {
	if listener == nil {
		listener = nopListener{}
	}
	return &Decoder{
		codec:           codec,
		store:           NewStore(),
		ring:            NewArrivalRing(ArrivalRingSize),
		listener:        listener,
		now:             time.Now,
		expectNewPacket: true,
		buffer:          make([]byte, 0, codec.FrameLength()*codec.FramesPerPacket()*3),
	}
}

// Store returns the store the decoder publishes packets to
func (d *Decoder) Store() *Store {
	return d.store
}

// SetReady enables or disables frame decoding. While not ready, frames are
// consumed and dropped without touching packet or rate state, and frame
// errors are not reported.
func (d *Decoder) SetReady(ready bool) {
	d.ready.Store(ready)
}

// Ready reports whether frame decoding is enabled
func (d *Decoder) Ready() bool {
	return d.ready.Load()
}

// State returns the state the decoder stopped in after the last Feed
func (d *Decoder) State() DecoderState {
	return d.state
}

// Buffered returns the number of bytes waiting for more data
func (d *Decoder) Buffered() int {
	return len(d.buffer) - d.head
}

// Reset drops buffered bytes and any packet in progress
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
	d.head = 0
	d.state = StateSeekSync
	d.expectNewPacket = true
	d.codec.Reset()
}

// Feed appends a chunk read from the transport and consumes every complete
// unit at the head of the buffer. Incomplete units stay buffered until the
// next call.
func (d *Decoder) Feed(data []byte) {
	d.buffer = append(d.buffer, data...)

	d.state = StateSeekSync
	for d.head < len(d.buffer) && d.consume() {
	}

	// Compact consumed bytes out of the buffer
	n := copy(d.buffer, d.buffer[d.head:])
	d.buffer = d.buffer[:n]
	d.head = 0
}

// consume handles one unit at the head of the buffer.
// Returns false when more data is needed.
func (d *Decoder) consume() bool {
	switch d.buffer[d.head] {
	case STX:
		return d.consumeOperation()
	case ACK:
		d.head++
		d.state = StateSeekSync
		d.listener.AckReceived(true)
		return true
	case NAK:
		d.head++
		d.state = StateSeekSync
		d.listener.AckReceived(false)
		return true
	default:
		return d.consumeFrame()
	}
}

func (d *Decoder) consumeOperation() bool {
	buf := d.buffer[d.head:]
	if len(buf) < controlHeaderLength {
		d.state = StateAwaitControlLength
		return false
	}

	length := int(buf[2])
	total := controlHeaderLength + length + 1
	if len(buf) < total {
		d.state = StateAwaitControlBody
		return false
	}

	op := Operation{
		Opcode:  buf[1],
		Payload: make([]byte, length),
	}
	copy(op.Payload, buf[controlHeaderLength:controlHeaderLength+length])

	d.head += total
	d.state = StateSeekSync
	d.listener.OperationReceived(op)
	return true
}

func (d *Decoder) consumeFrame() bool {
	frameLength := d.codec.FrameLength()
	buf := d.buffer[d.head:]
	if len(buf) < frameLength {
		d.state = StateAwaitFrame
		return false
	}

	frame := buf[:frameLength]
	d.state = StateSeekSync

	// Exactly one frame length is dropped on every path
	defer func() { d.head += frameLength }()

	if d.expectNewPacket && !d.codec.IsSync(frame) {
		d.frameError(FrameErrorResync, frame)
		return true
	}

	if !d.ready.Load() {
		return true
	}

	if !d.codec.ValidFrame(frame) {
		d.frameError(FrameErrorChecksum, frame)
		return true
	}

	now := d.now()
	packet, complete := d.codec.DecodeFrame(frame, now)
	if !complete {
		d.expectNewPacket = false
		return true
	}

	d.expectNewPacket = true
	rate := d.ring.Record(now)
	d.store.publish(packet, rate)
	d.listener.PacketReceived(packet)
	return true
}

func (d *Decoder) frameError(kind FrameErrorKind, frame []byte) {
	if !d.ready.Load() {
		return
	}
	f := make([]byte, len(frame))
	copy(f, frame)
	d.listener.FrameError(&FrameError{Kind: kind, Frame: f})
}
