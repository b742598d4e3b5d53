// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"bytes"
	"testing"
	"time"
)

// ============================================================
// Decoder Test Helpers
// ============================================================

// streamOf encodes readings back to back, varying the heart rate so packets
// can be told apart
func streamOf(n int) ([]byte, []*Packet) {
	var data []byte
	var packets []*Packet
	for i := 0; i < n; i++ {
		r := testReading()
		r.HeartRate = 60 + i
		r.Timer = uint16(i)
		p := r.Packet()
		packets = append(packets, p)
		data = append(data, EncodePacket(p)...)
	}
	return data, packets
}

func newReadyDecoder() (*Decoder, *recordingListener) {
	l := &recordingListener{}
	d := NewDecoder(NewFormat7(), l)
	d.SetReady(true)
	return d, l
}

// ============================================================
// Stream Decoding Tests
// ============================================================

func TestDecoder_PacketsAndRate(t *testing.T) {
	d, l := newReadyDecoder()
	clock := time.Unix(1700000000, 0)
	d.now = func() time.Time { return clock }

	data, want := streamOf(ArrivalRingSize)
	packetBytes := FrameLength * FramesPerPacket
	for i := 0; i < ArrivalRingSize; i++ {
		d.Feed(data[i*packetBytes : (i+1)*packetBytes])
		clock = clock.Add(time.Second / 3)
	}

	if len(l.packets) != len(want) {
		t.Fatalf("expected %d packets, got %d", len(want), len(l.packets))
	}
	for i := range want {
		if !samePacket(l.packets[i], want[i]) {
			t.Errorf("packet %d differs from the encoded packet", i)
		}
	}
	if len(l.errors) != 0 {
		t.Errorf("expected no frame errors, got %v", l.errors)
	}

	rate := d.Store().PacketsPerSecond()
	if rate < 2.999 || rate > 3.001 {
		t.Errorf("PacketsPerSecond() = %f, want 3", rate)
	}
	if d.Store().Packet() != l.packets[len(l.packets)-1] {
		t.Error("store should hold the last completed packet")
	}
}

func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	data, _ := streamOf(4)
	data = append(data, GetSerialCommand(DefaultSerialID)...)
	data = append(data, ACK)
	more, _ := streamOf(2)
	data = append(data, more...)

	single, whole := newReadyDecoder()
	single.Feed(data)

	for _, size := range []int{1, 2, 3, 4, 5, 7, 64, 125} {
		d, l := newReadyDecoder()
		for i := 0; i < len(data); i += size {
			end := i + size
			if end > len(data) {
				end = len(data)
			}
			d.Feed(data[i:end])
		}

		if len(l.packets) != len(whole.packets) {
			t.Fatalf("chunk size %d: %d packets, want %d", size, len(l.packets), len(whole.packets))
		}
		for i := range whole.packets {
			if !samePacket(l.packets[i], whole.packets[i]) {
				t.Errorf("chunk size %d: packet %d differs", size, i)
			}
		}
		if len(l.operations) != 1 || len(l.acks) != 1 {
			t.Errorf("chunk size %d: %d operations, %d acks; want 1, 1", size, len(l.operations), len(l.acks))
		}
		if d.Buffered() != 0 {
			t.Errorf("chunk size %d: %d bytes left buffered", size, d.Buffered())
		}
	}
}

func TestDecoder_CorruptedFrame(t *testing.T) {
	data, want := streamOf(3)

	// Corrupt the pleth of frame 7 of the second packet
	corrupted := append([]byte{}, data...)
	offset := FrameLength*FramesPerPacket + 7*FrameLength + 2
	corrupted[offset] ^= 0x10

	d, l := newReadyDecoder()
	d.Feed(corrupted)

	if got := l.countErrors(FrameErrorChecksum); got != 1 {
		t.Errorf("expected 1 checksum error, got %d", got)
	}
	if got := l.countErrors(FrameErrorResync); got != 0 {
		t.Errorf("expected no resync errors, got %d", got)
	}

	// The damaged packet never completes; the next sync frame starts over
	if len(l.packets) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(l.packets))
	}
	if !samePacket(d.Store().Packet(), want[2]) {
		t.Error("final packet differs from the uncorrupted stream's final packet")
	}
}

func TestDecoder_ResyncDiscardsOneFrame(t *testing.T) {
	data, want := streamOf(1)

	// One frame of noise without the sync bit
	noisy := append([]byte{0x80, 0x81, 0x82, 0x83, 0x84}, data...)

	d, l := newReadyDecoder()
	d.Feed(noisy)

	if len(l.errors) != 1 || !IsResync(l.errors[0]) {
		t.Fatalf("expected 1 resync error, got %v", l.errors)
	}
	if !bytes.Equal(l.errors[0].Frame, noisy[:FrameLength]) {
		t.Errorf("discarded % X, want % X", l.errors[0].Frame, noisy[:FrameLength])
	}
	if len(l.packets) != 1 || !samePacket(l.packets[0], want[0]) {
		t.Error("decoder did not recover onto the packet after the noise")
	}
}

func TestDecoder_JoinMidPacket(t *testing.T) {
	data, want := streamOf(2)

	// Connect at frame 10 of the first packet
	d, l := newReadyDecoder()
	d.Feed(data[10*FrameLength:])

	if got := l.countErrors(FrameErrorResync); got != FramesPerPacket-10 {
		t.Errorf("expected %d resync errors, got %d", FramesPerPacket-10, got)
	}
	if len(l.packets) != 1 || !samePacket(l.packets[0], want[1]) {
		t.Errorf("expected only the second packet, got %d packets", len(l.packets))
	}
}

func TestDecoder_PermanentDesyncIsBounded(t *testing.T) {
	// Non-sync, non-control bytes forever
	garbage := bytes.Repeat([]byte{0x80}, 5000)

	d, l := newReadyDecoder()
	d.Feed(garbage)

	if got, want := len(l.errors), len(garbage)/FrameLength; got != want {
		t.Errorf("expected %d resync errors (one per frame length), got %d", want, got)
	}
	if d.Buffered() != 0 {
		t.Errorf("expected garbage to be consumed, %d bytes left", d.Buffered())
	}
	if d.Store().Packet() != nil {
		t.Error("garbage produced a packet")
	}
}

// ============================================================
// Control Byte Tests
// ============================================================

func TestDecoder_AckNak(t *testing.T) {
	d, l := newReadyDecoder()
	d.Feed([]byte{ACK, NAK, ACK})

	want := []bool{true, false, true}
	if len(l.acks) != len(want) {
		t.Fatalf("expected %d acks, got %d", len(want), len(l.acks))
	}
	for i := range want {
		if l.acks[i] != want[i] {
			t.Errorf("ack %d = %v, want %v", i, l.acks[i], want[i])
		}
	}
}

func TestDecoder_SplitOperation(t *testing.T) {
	reply := MustEncodeOperation(OpRecvSerial, append([]byte{DefaultSerialID}, "501234567"...))

	tests := []struct {
		name  string
		split int
		state DecoderState
	}{
		{"after STX", 1, StateAwaitControlLength},
		{"after opcode", 2, StateAwaitControlLength},
		{"after length", 3, StateAwaitControlBody},
		{"mid payload", 8, StateAwaitControlBody},
		{"before ETX", len(reply) - 1, StateAwaitControlBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, l := newReadyDecoder()
			d.Feed(reply[:tt.split])
			if d.State() != tt.state {
				t.Errorf("State() = %s, want %s", d.State(), tt.state)
			}
			if len(l.operations) != 0 {
				t.Fatal("operation delivered before it was complete")
			}

			d.Feed(reply[tt.split:])
			if len(l.operations) != 1 {
				t.Fatalf("expected 1 operation, got %d", len(l.operations))
			}
			serial, ok := ParseSerial(l.operations[0])
			if !ok || serial != "501234567" {
				t.Errorf("ParseSerial() = %q, %v; want \"501234567\", true", serial, ok)
			}
			if d.State() != StateSeekSync {
				t.Errorf("State() = %s after completion, want %s", d.State(), StateSeekSync)
			}
		})
	}
}

func TestDecoder_EmptyOperation(t *testing.T) {
	d, l := newReadyDecoder()
	d.Feed([]byte{STX, 0x42, 0x00, ETX})

	if len(l.operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(l.operations))
	}
	if l.operations[0].Opcode != 0x42 || len(l.operations[0].Payload) != 0 {
		t.Errorf("unexpected operation %+v", l.operations[0])
	}
}

func TestDecoder_ControlBetweenPackets(t *testing.T) {
	data, _ := streamOf(1)
	stream := append([]byte{}, data...)
	stream = append(stream, NAK)
	stream = append(stream, data...)

	d, l := newReadyDecoder()
	d.Feed(stream)

	if len(l.packets) != 2 || len(l.acks) != 1 || len(l.errors) != 0 {
		t.Errorf("got %d packets, %d acks, %d errors; want 2, 1, 0", len(l.packets), len(l.acks), len(l.errors))
	}
}

func TestDecoder_PartialFrameState(t *testing.T) {
	data, _ := streamOf(1)
	d, _ := newReadyDecoder()
	d.Feed(data[:FrameLength+2])

	if d.State() != StateAwaitFrame {
		t.Errorf("State() = %s, want %s", d.State(), StateAwaitFrame)
	}
	if d.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", d.Buffered())
	}
}

// ============================================================
// Readiness Tests
// ============================================================

func TestDecoder_NotReadyDropsFrames(t *testing.T) {
	data, _ := streamOf(2)
	garbage := bytes.Repeat([]byte{0x80}, 50)

	l := &recordingListener{}
	d := NewDecoder(NewFormat7(), l)
	d.Feed(append(append([]byte{}, garbage...), data...))

	if len(l.errors) != 0 {
		t.Errorf("frame errors reported while not ready: %d", len(l.errors))
	}
	if len(l.packets) != 0 || d.Store().Packet() != nil {
		t.Error("packet published while not ready")
	}
	if d.Buffered() != 0 {
		t.Errorf("frames not consumed while not ready, %d bytes left", d.Buffered())
	}

	// Control bytes are still delivered
	d.Feed([]byte{ACK})
	if len(l.acks) != 1 {
		t.Error("ACK not delivered while not ready")
	}

	d.SetReady(true)
	d.Feed(data)
	if len(l.packets) != 2 {
		t.Errorf("expected 2 packets once ready, got %d", len(l.packets))
	}
}

func TestDecoder_Reset(t *testing.T) {
	data, _ := streamOf(2)
	d, l := newReadyDecoder()
	d.Feed(data[:10*FrameLength+3])
	d.Reset()

	if d.Buffered() != 0 || d.State() != StateSeekSync {
		t.Errorf("Reset left %d bytes in state %s", d.Buffered(), d.State())
	}

	d.Feed(data[FrameLength*FramesPerPacket:])
	if len(l.packets) != 1 {
		t.Errorf("expected 1 packet after reset, got %d", len(l.packets))
	}
}

func TestDecoderState_String(t *testing.T) {
	tests := map[DecoderState]string{
		StateSeekSync:           "SEEK_SYNC",
		StateAwaitControlLength: "AWAIT_CONTROL_LENGTH",
		StateAwaitControlBody:   "AWAIT_CONTROL_BODY",
		StateAwaitFrame:         "AWAIT_FRAME",
		DecoderState(99):        "DecoderState(99)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
