package buffer

import (
	"strings"
	"testing"
	"time"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", s, err)
	}
	return tm
}

func TestNewBufferIDFormat(t *testing.T) {
	id := NewBufferID(mustParseTime(t, "2026-07-29T09:30:01Z"), 1)
	want := "buff_20260729_093001_001"
	if id != want {
		t.Errorf("NewBufferID() = %q, want %q", id, want)
	}
}

func TestSessionBuffer_AppendAccumulates(t *testing.T) {
	b := New()
	chunk := make([]byte, 4096)
	if err := b.Append(chunk); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if b.Len() != len(chunk) {
		t.Errorf("Len() = %d, want %d", b.Len(), len(chunk))
	}
}

func TestSessionBuffer_ShouldFlush_HardCeiling(t *testing.T) {
	b := New()
	if err := b.Append(make([]byte, MaxBufferBytes)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !b.ShouldFlush() {
		t.Error("ShouldFlush() = false at hard ceiling, want true")
	}
}

func TestSessionBuffer_ShouldFlush_SilenceGate(t *testing.T) {
	b := New()
	// Below min-buffer size: silence alone must not trigger a flush.
	if err := b.Append(make([]byte, MinBufferBytes-FrameSize)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	b.TrackSilence(SilenceThresholdSeconds)
	if b.ShouldFlush() {
		t.Error("ShouldFlush() = true below min-buffer size, want false")
	}

	// At min-buffer size with enough silence: must trigger.
	if err := b.Append(make([]byte, FrameSize)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !b.ShouldFlush() {
		t.Error("ShouldFlush() = false at min-buffer size with silence, want true")
	}
}

func TestSessionBuffer_ShouldFlush_SilenceWithoutMinSize(t *testing.T) {
	b := New()
	if err := b.Append(make([]byte, 1000*FrameSize)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	b.TrackSilence(10.0)
	if b.ShouldFlush() {
		t.Error("ShouldFlush() = true with silence but under min-buffer size, want false")
	}
}

func TestSessionBuffer_FlushResetsAndAdvancesID(t *testing.T) {
	b := New()
	first := b.BufferID()
	if err := b.Append(make([]byte, 4096)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	flushed, err := b.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if flushed.BufferID != first {
		t.Errorf("flushed.BufferID = %q, want %q", flushed.BufferID, first)
	}
	if len(flushed.Bytes) != 4096 {
		t.Errorf("len(flushed.Bytes) = %d, want 4096", len(flushed.Bytes))
	}
	if b.Len() != 0 {
		t.Errorf("Len() after flush = %d, want 0", b.Len())
	}
	if b.BufferID() == first {
		t.Error("BufferID() did not advance after Flush()")
	}
	if !strings.HasSuffix(b.BufferID(), "_002") {
		t.Errorf("BufferID() = %q, want suffix _002", b.BufferID())
	}
}

func TestSessionBuffer_BufferIDUniqueness(t *testing.T) {
	b := New()
	seen := map[string]bool{b.BufferID(): true}
	for i := 0; i < 5; i++ {
		if err := b.Append(make([]byte, MinBufferBytes)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		b.TrackSilence(SilenceThresholdSeconds)
		flushed, err := b.Flush()
		if err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if seen[flushed.BufferID] {
			t.Fatalf("duplicate buffer_id %q", flushed.BufferID)
		}
		seen[flushed.BufferID] = true
	}
}
