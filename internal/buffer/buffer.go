// Package buffer implements the per-connection Session Buffer: an
// append-only accumulation of audio bytes with flush-trigger logic and
// buffer-id generation. It is owned exclusively by one session task; all
// operations here assume a single caller at a time (see the concurrency
// model in the top-level spec).
package buffer

import (
	"fmt"
	"time"

	"github.com/smallnest/ringbuffer"
)

const (
	// SampleRate is the fixed wire sample rate (16 kHz mono float32).
	SampleRate = 16000
	// BytesPerSecond is the byte rate of the wire format: 16000 * 1 * 4.
	BytesPerSecond = SampleRate * 4
	// FrameSize is the number of bytes in one sample.
	FrameSize = 4

	// MaxBufferDurationSeconds is the hard ceiling on a single buffer.
	MaxBufferDurationSeconds = 30.0
	// MaxBufferBytes is the byte-equivalent of the hard ceiling.
	MaxBufferBytes = int(MaxBufferDurationSeconds * BytesPerSecond)

	// SilenceThresholdSeconds is the default accumulated-silence trigger.
	SilenceThresholdSeconds = 2.0
	// MinBufferDurationSeconds is the minimum size gate paired with silence.
	MinBufferDurationSeconds = 5.0
	// MinBufferBytes is the byte-equivalent of the minimum buffer gate.
	MinBufferBytes = int(MinBufferDurationSeconds * BytesPerSecond)

	// ringCapacityBytes gives the ring slack for at least one more
	// max-size chunk beyond the hard ceiling. ShouldFlush is only checked
	// after Append returns (see runtime.handleBinary), and the Audio
	// Validator allows a single chunk up to the same duration as the hard
	// ceiling, so several legitimately-validated chunks can sit unflushed
	// past MaxBufferBytes before the next flush check fires.
	ringCapacityBytes = MaxBufferBytes * 2
)

// Flushed is the value handed off to the pipeline on flush: a snapshot, not
// a live reference — background final-phase work never touches the buffer
// that produced it.
type Flushed struct {
	Bytes     []byte
	BufferID  string
	StartTime time.Time
}

// SessionBuffer accumulates audio for one connection between flushes. It is
// not safe for concurrent use; the owning session task is responsible for
// serializing append/flush calls (see §5 of the runtime spec).
type SessionBuffer struct {
	ring       *ringbuffer.RingBuffer
	length     int
	seq        int
	bufferID   string
	startTime  time.Time
	hasStart   bool
	silenceSec float64
}

// New creates an empty SessionBuffer with its first buffer-id already
// assigned (buffer ids are generated ahead of the data they will carry).
func New() *SessionBuffer {
	b := &SessionBuffer{
		ring: ringbuffer.New(ringCapacityBytes),
		seq:  1,
	}
	b.bufferID = NewBufferID(time.Now(), b.seq)
	return b
}

// BufferID returns the id that will be assigned to the next flush.
func (b *SessionBuffer) BufferID() string { return b.bufferID }

// Len returns the number of bytes currently accumulated.
func (b *SessionBuffer) Len() int { return b.length }

// Append extends the buffer with chunk, recording buffer_start_time if this
// is the first chunk since the last flush. chunk's length must already be
// frame-aligned (the Audio Validator guarantees this upstream).
func (b *SessionBuffer) Append(chunk []byte) error {
	if !b.hasStart {
		b.startTime = time.Now()
		b.hasStart = true
	}
	n, err := b.ring.Write(chunk)
	if err != nil {
		return fmt.Errorf("session buffer: write: %w", err)
	}
	b.length += n
	return nil
}

// TrackSilence accumulates silence duration observed since the last voiced
// chunk. Called by the session task, informed by VAD hints or inactivity
// timers.
func (b *SessionBuffer) TrackSilence(seconds float64) {
	b.silenceSec += seconds
}

// ResetSilence clears the silence counter; called when voiced audio arrives.
func (b *SessionBuffer) ResetSilence() {
	b.silenceSec = 0
}

// ShouldFlush reports whether the buffer has reached a flush-worthy
// boundary: the hard ceiling, or accumulated silence past the threshold
// while holding at least the minimum buffer size.
func (b *SessionBuffer) ShouldFlush() bool {
	if b.length >= MaxBufferBytes {
		return true
	}
	if b.silenceSec >= SilenceThresholdSeconds && b.length >= MinBufferBytes {
		return true
	}
	return false
}

// Flush atomically returns the current contents and id, then clears the
// buffer, clears buffer_start_time, resets the silence counter, and
// regenerates buffer_id for the next cycle.
func (b *SessionBuffer) Flush() (Flushed, error) {
	out := make([]byte, b.length)
	if b.length > 0 {
		n, err := b.ring.Read(out)
		if err != nil {
			return Flushed{}, fmt.Errorf("session buffer: read: %w", err)
		}
		out = out[:n]
	}

	flushed := Flushed{
		Bytes:     out,
		BufferID:  b.bufferID,
		StartTime: b.startTime,
	}

	b.ring.Reset()
	b.length = 0
	b.hasStart = false
	b.startTime = time.Time{}
	b.silenceSec = 0
	b.seq++
	b.bufferID = NewBufferID(time.Now(), b.seq)

	return flushed, nil
}
