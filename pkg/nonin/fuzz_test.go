// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomReading creates a reading with random in-range field values
func randomReading(rng *rand.Rand) Reading {
	pleth := make([]uint16, FramesPerPacket)
	for i := range pleth {
		pleth[i] = uint16(rng.Intn(1 << 16))
	}
	return Reading{
		Status:            Status(rng.Intn(256)) &^ StatusSync,
		HeartRate:         rng.Intn(512),
		HeartRate8:        rng.Intn(512),
		HeartRateDisplay:  rng.Intn(512),
		HeartRate8Display: rng.Intn(512),
		SpO2:              rng.Intn(128),
		SpO2Display:       rng.Intn(128),
		SpO2Fast:          rng.Intn(128),
		SpO2BeatToBeat:    rng.Intn(128),
		SpO28:             rng.Intn(128),
		SpO28Display:      rng.Intn(128),
		FirmwareRevision:  byte(rng.Intn(256)),
		Timer:             uint16(rng.Intn(1 << 14)),
		SmartPoint:        rng.Intn(2) == 1,
		LowBattery:        rng.Intn(2) == 1,
		Pleth:             pleth,
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it doesn't crash, panic or hoard the buffer
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder(NewFormat7(), nil)
		d.SetReady(rng.Intn(2) == 1)

		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)

		for len(data) > 0 {
			n := rng.Intn(len(data)) + 1
			d.Feed(data[:n])
			data = data[n:]
		}

		// Anything left must be an incomplete frame or operation
		if limit := controlHeaderLength + MaxOperationPayload + 1; d.Buffered() >= limit {
			t.Fatalf("round %d: %d bytes left buffered", i, d.Buffered())
		}
	}
}

// TestFuzzDecoder_RandomChunking encodes random packets and control bytes,
// feeds them in random chunks, and verifies the same events come out as
// when fed whole
func TestFuzzDecoder_RandomChunking(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		var data []byte
		var want []*Packet
		wantAcks := 0
		for j := rng.Intn(5) + 1; j > 0; j-- {
			p := randomReading(rng).Packet()
			want = append(want, p)
			data = append(data, EncodePacket(p)...)
			switch rng.Intn(3) {
			case 0:
				data = append(data, ACK)
				wantAcks++
			case 1:
				data = append(data, serialReply("FUZZ00001")...)
			}
		}

		d, l := newReadyDecoder()
		for rest := data; len(rest) > 0; {
			n := rng.Intn(len(rest)) + 1
			d.Feed(rest[:n])
			rest = rest[n:]
		}

		if len(l.errors) != 0 {
			t.Fatalf("round %d: unexpected frame errors %v", i, l.errors)
		}
		if len(l.packets) != len(want) {
			t.Fatalf("round %d: %d packets, want %d", i, len(l.packets), len(want))
		}
		for j := range want {
			if !samePacket(l.packets[j], want[j]) {
				t.Fatalf("round %d: packet %d differs", i, j)
			}
		}
		if len(l.acks) != wantAcks {
			t.Fatalf("round %d: %d acks, want %d", i, len(l.acks), wantAcks)
		}
	}
}

// TestFuzzDecoder_SingleCorruption flips one bit in a random frame of a
// random packet and verifies exactly that packet is lost
func TestFuzzDecoder_SingleCorruption(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		var data []byte
		var want []*Packet
		for j := 0; j < 3; j++ {
			p := randomReading(rng).Packet()
			want = append(want, p)
			data = append(data, EncodePacket(p)...)
		}

		// Flip a pleth or FLOAT bit of a non-sync frame of the middle packet
		frame := FramesPerPacket + 1 + rng.Intn(FramesPerPacket-1)
		data[frame*FrameLength+1+rng.Intn(3)] ^= 1 << uint(rng.Intn(8))

		d, l := newReadyDecoder()
		d.Feed(data)

		if got := l.countErrors(FrameErrorChecksum); got != 1 {
			t.Fatalf("round %d: %d checksum errors, want 1", i, got)
		}
		if len(l.packets) != 2 || !samePacket(l.packets[0], want[0]) || !samePacket(l.packets[1], want[2]) {
			t.Fatalf("round %d: expected the first and last packets only, got %d", i, len(l.packets))
		}
	}
}
