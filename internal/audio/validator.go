// Package audio implements the pure validation predicate applied to every
// inbound chunk before it is ever appended to a session buffer.
package audio

import (
	"errors"
	"fmt"
)

const (
	// BytesPerSample is the width of one IEEE-754 float32 sample.
	BytesPerSample = 4
	// Channels is the fixed channel count for the wire format (mono).
	Channels = 1
	// FrameSize is the number of bytes in one sample frame.
	FrameSize = BytesPerSample * Channels

	// MinChunkBytes guards against accidental pings: 1ms of audio at 16kHz.
	MinChunkBytes = 64
)

// ErrEmptyChunk, ErrChunkTooLarge, ErrChunkTooSmall, and ErrFrameMisaligned
// are the specific reasons a chunk can fail validation; callers that only
// care about the taxonomy code should check errors.Is against these.
var (
	ErrEmptyChunk      = errors.New("audio chunk is empty")
	ErrChunkTooLarge   = errors.New("audio chunk exceeds max buffer duration")
	ErrChunkTooSmall   = errors.New("audio chunk below minimum size")
	ErrFrameMisaligned = errors.New("audio chunk length is not a multiple of the frame size")
)

// Validator holds the configuration-derived bounds used to check a chunk.
// It is stateless beyond its bounds, so one Validator is safe to share
// across every session.
type Validator struct {
	sampleRate      int
	maxDurationSecs float64
	maxChunkBytes   int
}

// New builds a Validator from the sample rate and maximum buffer duration
// (seconds) that bound a single chunk.
func New(sampleRate int, maxDurationSecs float64) *Validator {
	return &Validator{
		sampleRate:      sampleRate,
		maxDurationSecs: maxDurationSecs,
		maxChunkBytes:   int(maxDurationSecs * float64(sampleRate) * float64(Channels) * float64(BytesPerSample)),
	}
}

// Validate checks a chunk in the order spec'd for the Audio Validator:
// non-empty, within the size ceiling, above the minimum floor, and frame
// aligned. A non-nil error is always an INVALID_FORMAT reason — the chunk
// must be dropped, never buffered, and the session must continue.
func (v *Validator) Validate(chunk []byte) error {
	n := len(chunk)
	if n == 0 {
		return ErrEmptyChunk
	}
	if n > v.maxChunkBytes {
		return fmt.Errorf("%w: %d bytes > max %d", ErrChunkTooLarge, n, v.maxChunkBytes)
	}
	if n < MinChunkBytes {
		return fmt.Errorf("%w: %d bytes < min %d", ErrChunkTooSmall, n, MinChunkBytes)
	}
	if n%FrameSize != 0 {
		return fmt.Errorf("%w: %d bytes, frame size %d", ErrFrameMisaligned, n, FrameSize)
	}
	return nil
}

// MaxChunkBytes returns the computed byte ceiling for a single chunk.
func (v *Validator) MaxChunkBytes() int {
	return v.maxChunkBytes
}
