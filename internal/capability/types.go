// Package capability defines the opaque, swappable model capabilities the
// pipeline depends on: VAD, Recognize, Align, Diarize, Correct. Every
// implementation (sherpa-backed, onnxruntime-backed, or a pure-Go stub)
// satisfies the same narrow interface, so swapping one never changes
// pipeline semantics.
package capability

import "errors"

// ErrOOM signals GPU/accelerator out-of-memory. It is always recoverable:
// callers skip the current buffer and continue the session.
var ErrOOM = errors.New("capability: out of memory")

// Word is a per-word timing, seconds relative to the owning segment's
// buffer.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"word"`
}

// Segment is one transcribed span, seconds relative to buffer start.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Span is a half-open interval of sample indices, as returned by VAD.
type Span struct {
	StartSample int
	EndSample   int
}

// RecognizeResult is the raw recognizer output, cached and reused by both
// pipeline phases per the reuse invariant.
type RecognizeResult struct {
	Text     string
	Segments []Segment
}

// VAD detects speech spans in a sample buffer. On failure it must fail
// open (behave as if speech were present) so valid audio is never silently
// dropped.
type VAD interface {
	Detect(samples []float32) ([]Span, error)
}

// Recognizer transcribes a sample buffer. Language is fixed configuration,
// not a per-call choice in the wire protocol.
type Recognizer interface {
	Transcribe(samples []float32, language string) (RecognizeResult, error)
}

// Aligner refines word-level timings. Must be a pure function of its
// inputs; if unavailable, implementations return segments unchanged.
type Aligner interface {
	Align(segments []Segment, samples []float32) ([]Segment, error)
}

// Diarizer adds speaker labels. Implementations that cannot distinguish
// speakers return a default label on every segment.
type Diarizer interface {
	Diarize(segments []Segment, samples []float32) ([]Segment, error)
}

// Corrector applies text-level correction. Connection/availability
// failures must degrade gracefully (return inputs unchanged) rather than
// propagate — see Correct's contract in the component design.
type Corrector interface {
	Correct(text string, segments []Segment) (string, []Segment, error)
}
