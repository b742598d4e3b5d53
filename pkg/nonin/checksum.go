// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

// CalculateChecksum computes the Format 7 frame checksum: the sum of the
// four leading frame bytes modulo 256.
func CalculateChecksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[:FrameLength-1] {
		sum += b
	}
	return sum
}

// ValidChecksum reports whether the frame's trailing byte matches its checksum.
// Frames shorter than FrameLength are never valid.
func ValidChecksum(frame []byte) bool {
	if len(frame) < FrameLength {
		return false
	}
	return CalculateChecksum(frame) == frame[FrameLength-1]
}

// formatChecksum computes the trailing byte of a flagged set-format request:
// (OpSetFormat + 4 + 2 + code) + flags, truncated to a byte.
func formatChecksum(code, flags byte) byte {
	return byte(OpSetFormat+4+2) + code + flags
}
