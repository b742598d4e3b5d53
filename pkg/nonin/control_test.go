// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// ============================================================
// Fake Device
// ============================================================

// fakeDevice is an in-memory transport. Each host write is recorded and
// handed to respond, whose return value is streamed back to the reader.
type fakeDevice struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
	respond func(n int, cmd []byte) []byte

	reader  *io.PipeReader
	writer  *io.PipeWriter
	replies chan []byte
}

func newFakeDevice(respond func(n int, cmd []byte) []byte) *fakeDevice {
	r, w := io.Pipe()
	f := &fakeDevice{
		respond: respond,
		reader:  r,
		writer:  w,
		replies: make(chan []byte, 64),
	}
	go func() {
		for reply := range f.replies {
			if _, err := w.Write(reply); err != nil {
				return
			}
		}
	}()
	return f
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	return f.reader.Read(p)
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	cmd := append([]byte{}, p...)

	f.mu.Lock()
	f.writes = append(f.writes, cmd)
	n := len(f.writes)
	f.mu.Unlock()

	if f.respond != nil {
		if reply := f.respond(n, cmd); len(reply) > 0 {
			f.replies <- reply
		}
	}
	return len(p), nil
}

func (f *fakeDevice) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// send streams bytes to the host as if the device produced them
func (f *fakeDevice) send(data []byte) {
	f.replies <- data
}

func (f *fakeDevice) Close() error {
	close(f.replies)
	return f.writer.Close()
}

func (f *fakeDevice) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.writes...)
}

// startDevice runs a device on the fake transport until the test ends
func startDevice(t *testing.T, f *fakeDevice, opts ...Option) *Device {
	t.Helper()
	dev := New(f, opts...)
	done := make(chan error, 1)
	go func() { done <- dev.Run() }()
	t.Cleanup(func() {
		f.Close()
		if err := <-done; err != nil {
			t.Errorf("Run() returned %v", err)
		}
	})
	return dev
}

func serialReply(serial string) []byte {
	return MustEncodeOperation(OpRecvSerial, append([]byte{DefaultSerialID}, serial...))
}

// ============================================================
// Serial Fetch Tests
// ============================================================

func TestFetchSerial_Reply(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		return serialReply("501234567")
	})
	dev := startDevice(t, f)

	serial, err := dev.FetchSerial(context.Background())
	if err != nil {
		t.Fatalf("FetchSerial() error: %v", err)
	}
	if serial != "501234567" {
		t.Errorf("serial = %q, want \"501234567\"", serial)
	}

	writes := f.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 request, got %d", len(writes))
	}
	want := []byte{STX, OpGetSerial, 0x02, DefaultSerialID, DefaultSerialID, ETX}
	if !bytes.Equal(writes[0], want) {
		t.Errorf("request = % X, want % X", writes[0], want)
	}
	if f.flushes != 1 {
		t.Errorf("expected 1 flush, got %d", f.flushes)
	}
}

func TestFetchSerial_ReplyOnThirdAttempt(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		if n < 3 {
			return nil
		}
		return serialReply("ABCDEFGHI")
	})
	dev := startDevice(t, f, WithSerialTimeouts(20*time.Millisecond, 2*time.Second))

	serial, err := dev.FetchSerial(context.Background())
	if err != nil {
		t.Fatalf("FetchSerial() error: %v", err)
	}
	if serial != "ABCDEFGHI" {
		t.Errorf("serial = %q, want \"ABCDEFGHI\"", serial)
	}
	if got := len(f.Writes()); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestFetchSerial_NoReply(t *testing.T) {
	f := newFakeDevice(nil)
	dev := startDevice(t, f, WithSerialTimeouts(20*time.Millisecond, 100*time.Millisecond))

	start := time.Now()
	_, err := dev.FetchSerial(context.Background())
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("expected ErrNoReply, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("gave up after %v, before the overall deadline", elapsed)
	}
	if got := len(f.Writes()); got < 4 {
		t.Errorf("expected at least 4 requests, got %d", got)
	}
}

func TestFetchSerial_IgnoresOtherOperations(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		reply := MustEncodeOperation(0x42, []byte{0x01})
		return append(reply, serialReply("123456789")...)
	})
	dev := startDevice(t, f)

	serial, err := dev.FetchSerial(context.Background())
	if err != nil {
		t.Fatalf("FetchSerial() error: %v", err)
	}
	if serial != "123456789" {
		t.Errorf("serial = %q, want \"123456789\"", serial)
	}
}

func TestFetchSerial_ShortReplyIgnored(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		return MustEncodeOperation(OpRecvSerial, []byte{DefaultSerialID, '1', '2'})
	})
	dev := startDevice(t, f, WithSerialTimeouts(10*time.Millisecond, 50*time.Millisecond))

	if _, err := dev.FetchSerial(context.Background()); !errors.Is(err, ErrNoReply) {
		t.Errorf("expected ErrNoReply for truncated replies, got %v", err)
	}
}

func TestFetchSerial_ContextCancel(t *testing.T) {
	f := newFakeDevice(nil)
	dev := startDevice(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := dev.FetchSerial(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

// ============================================================
// Format Negotiation Tests
// ============================================================

func TestSetDataFormat_NakNakAck(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		if n < 3 {
			return []byte{NAK}
		}
		return []byte{ACK}
	})
	dev := startDevice(t, f)

	ok, err := dev.SetDataFormat(context.Background(), OnyxFormat)
	if err != nil {
		t.Fatalf("SetDataFormat() error: %v", err)
	}
	if !ok {
		t.Error("expected ACK")
	}
	if got := len(f.Writes()); got != 3 {
		t.Errorf("expected exactly 3 requests, got %d", got)
	}
}

func TestSetDataFormat_NakLimit(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		return []byte{NAK}
	})
	dev := startDevice(t, f, WithFormatNakLimit(1))

	ok, err := dev.SetDataFormat(context.Background(), OnyxFormat)
	if err != nil {
		t.Fatalf("SetDataFormat() error: %v", err)
	}
	if ok {
		t.Error("expected NAK")
	}
	if got := len(f.Writes()); got != 1 {
		t.Errorf("expected 1 request, got %d", got)
	}
}

func TestSetDataFormat_ResendsOnTimeout(t *testing.T) {
	f := newFakeDevice(func(n int, cmd []byte) []byte {
		if n < 4 {
			return nil
		}
		return []byte{ACK}
	})
	dev := startDevice(t, f, WithFormatTimeout(15*time.Millisecond))

	ok, err := dev.SetDataFormat(context.Background(), WristOxFormat)
	if err != nil {
		t.Fatalf("SetDataFormat() error: %v", err)
	}
	if !ok {
		t.Error("expected ACK")
	}

	writes := f.Writes()
	if len(writes) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(writes))
	}
	want := []byte{STX, OpSetFormat, 0x04, STX, FormatCode7, 0x67, 0xE4, ETX}
	for i, w := range writes {
		if !bytes.Equal(w, want) {
			t.Errorf("request %d = % X, want % X", i, w, want)
		}
	}
}

func TestSetDataFormat_ContextCancel(t *testing.T) {
	f := newFakeDevice(nil)
	dev := startDevice(t, f, WithFormatTimeout(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ok, err := dev.SetDataFormat(ctx, OnyxFormat)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SetDataFormat() = %v, %v; want false, context.DeadlineExceeded", ok, err)
	}
	if got := len(f.Writes()); got < 2 {
		t.Errorf("expected the request to be resent, got %d requests", got)
	}
}

// ============================================================
// Device Tests
// ============================================================

func TestDevice_StreamsPackets(t *testing.T) {
	var mu sync.Mutex
	var received []*Packet
	f := newFakeDevice(nil)
	dev := startDevice(t, f, WithPacketHandler(func(p *Packet) {
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
	}))
	dev.SetReady(true)

	data, _ := streamOf(3)
	f.send(data)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("received %d packets, want 3", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	hr, ok := dev.HeartRate()
	if !ok || hr != 62 {
		t.Errorf("HeartRate() = %d, %v; want 62, true", hr, ok)
	}
	if spo2, ok := dev.SpO2(); !ok || spo2 != 97 {
		t.Errorf("SpO2() = %d, %v; want 97, true", spo2, ok)
	}
	if dev.Packet() == nil {
		t.Error("Packet() returned nil")
	}
}

func TestDevice_EndOfStreamClearsReady(t *testing.T) {
	f := newFakeDevice(nil)
	dev := New(f)
	dev.SetReady(true)

	done := make(chan error, 1)
	go func() { done <- dev.Run() }()
	f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil at end of stream", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return at end of stream")
	}
	if dev.Ready() {
		t.Error("readiness should be cleared at end of stream")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error)    { return 0, errors.New("device unplugged") }
func (failingReader) Write(p []byte) (int, error) { return len(p), nil }

func TestDevice_ReadErrorReturned(t *testing.T) {
	dev := New(failingReader{})
	dev.SetReady(true)

	if err := dev.Run(); err == nil {
		t.Error("expected read error from Run()")
	}
	if dev.Ready() {
		t.Error("readiness should be cleared on read error")
	}
}

func TestDevice_MillisecondsPerSample(t *testing.T) {
	dev := New(newFakeDevice(nil))
	if got := dev.MillisecondsPerSample(); got != MillisecondsPerSample {
		t.Errorf("MillisecondsPerSample() = %f, want %f", got, MillisecondsPerSample)
	}
}

func TestIsEndOfStream(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{io.EOF, true},
		{io.ErrClosedPipe, true},
		{errors.Join(errors.New("read"), io.EOF), true},
		{io.ErrUnexpectedEOF, false},
		{errors.New("device unplugged"), false},
	}
	for _, tt := range tests {
		if got := IsEndOfStream(tt.err); got != tt.want {
			t.Errorf("IsEndOfStream(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
