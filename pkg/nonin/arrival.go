// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import "time"

// ArrivalRing is a fixed-size circular history of packet completion times.
// The throughput it reports is averaged over one full lap of the ring,
// which damps the jitter of bursty serial delivery.
type ArrivalRing struct {
	slots  []time.Time
	cursor int
}

// NewArrivalRing creates a ring with the given number of slots (minimum 2)
func NewArrivalRing(size int) *ArrivalRing {
	if size < 2 {
		size = 2
	}
	return &ArrivalRing{slots: make([]time.Time, size)}
}

// Size returns the number of slots in the ring
func (r *ArrivalRing) Size() int {
	return len(r.slots)
}

// Record stores a completion time in the cursor slot and returns the packet
// rate in packets per second measured against the oldest slot, the one the
// next lap overwrites. The rate is 0 until the ring has filled once.
//
// The oldest slot is size-1 completions behind the new one, so the rate is
// (size-1) intervals over the elapsed time.
func (r *ArrivalRing) Record(now time.Time) float64 {
	r.slots[r.cursor] = now
	r.cursor = (r.cursor + 1) % len(r.slots)

	oldest := r.slots[r.cursor]
	if oldest.IsZero() {
		return 0
	}
	elapsed := now.Sub(oldest).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(len(r.slots)-1) / elapsed
}

// Reset clears every slot
func (r *ArrivalRing) Reset() {
	for i := range r.slots {
		r.slots[i] = time.Time{}
	}
	r.cursor = 0
}
