// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nonin

import (
	"errors"
	"fmt"
)

// ErrNoReply is returned when the device never answered a request
// within the overall deadline.
var ErrNoReply = errors.New("no reply from device")

// FrameErrorKind classifies a rejected measurement frame
type FrameErrorKind int

const (
	// FrameErrorResync: a non-sync frame arrived while a new packet was expected
	FrameErrorResync FrameErrorKind = iota
	// FrameErrorChecksum: the frame failed its checksum
	FrameErrorChecksum
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorResync:
		return "RESYNC"
	case FrameErrorChecksum:
		return "invalid checksum"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError reports a measurement frame that was discarded. Frame errors
// are recoverable: the decoder drops one frame length and carries on.
type FrameError struct {
	Kind  FrameErrorKind
	Frame []byte
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame error: %s [% X]", e.Kind, e.Frame)
}

// IsResync reports whether err is a resynchronization fault
func IsResync(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == FrameErrorResync
}

// IsChecksum reports whether err is a frame checksum failure
func IsChecksum(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe) && fe.Kind == FrameErrorChecksum
}
