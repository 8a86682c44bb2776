// Package pipeline orchestrates a flushed audio buffer through the model
// capabilities: recognize once, emit a partial result immediately, then
// run alignment, diarization and correction in the background to emit a
// final result. The recognizer is never called twice for the same
// buffer — the partial phase's result is reused by the final phase.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"asr_server/internal/capability"
	"asr_server/internal/logger"
)

// ResultType distinguishes partial from final results on the wire.
type ResultType string

const (
	ResultPartial ResultType = "partial"
	ResultFinal   ResultType = "final"
)

// TimestampRange is the [start, end) span covered by a result's segments.
type TimestampRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the outward-facing shape sent to a client, for either phase.
type Result struct {
	Type           ResultType           `json:"type"`
	BufferID       string               `json:"buffer_id"`
	Text           string               `json:"text"`
	Segments       []capability.Segment `json:"segments"`
	TimestampRange TimestampRange       `json:"timestamp_range"`
	LatencyMs      float64              `json:"latency_ms"`
}

// RecognizerOutput is the cached recognizer call for one flushed buffer.
// ProcessFinal consumes it instead of re-running Recognizer.Transcribe,
// enforcing the reuse invariant.
type RecognizerOutput struct {
	Text     string
	Segments []capability.Segment
}

// Pipeline wires the five model capabilities into the two-phase flow. A
// nil Aligner, Diarizer or Corrector is legal: ProcessFinal treats a nil
// stage as a pass-through, the same degradation path used when a
// configured capability fails at runtime.
type Pipeline struct {
	VAD        capability.VAD
	Recognizer capability.Recognizer
	Aligner    capability.Aligner
	Diarizer   capability.Diarizer
	Corrector  capability.Corrector
	Language   string

	// inferMu serializes VAD and recognizer calls across all sessions
	// sharing this Pipeline: one inference at a time.
	inferMu sync.Mutex
}

// New builds a Pipeline from its capability implementations.
func New(vad capability.VAD, recognizer capability.Recognizer, aligner capability.Aligner, diarizer capability.Diarizer, corrector capability.Corrector, language string) *Pipeline {
	return &Pipeline{
		VAD:        vad,
		Recognizer: recognizer,
		Aligner:    aligner,
		Diarizer:   diarizer,
		Corrector:  corrector,
		Language:   language,
	}
}

// ProcessPartial runs voice activity detection and a single recognizer
// pass over a flushed buffer's samples. When VAD finds no speech, the
// recognizer is skipped entirely and an empty result is returned, the
// hallucination-prevention path from the original pipeline's
// "no speech detected" short-circuit. The returned RecognizerOutput must
// be passed to ProcessFinal for the same buffer_id.
func (p *Pipeline) ProcessPartial(samples []float32, bufferID string, bufferStart time.Time) (Result, RecognizerOutput, error) {
	start := time.Now()

	p.inferMu.Lock()
	defer p.inferMu.Unlock()

	if p.VAD != nil {
		spans, err := p.VAD.Detect(samples)
		if err != nil {
			logger.Warn("vad_detect_failed_assuming_speech", "buffer_id", bufferID, "error", err)
		} else if len(spans) == 0 {
			logger.Info("vad_no_speech_skip_recognition", "buffer_id", bufferID)
			empty := Result{
				Type:     ResultPartial,
				BufferID: bufferID,
				Text:     "",
				Segments: nil,
				TimestampRange: TimestampRange{
					Start: 0,
					End:   0,
				},
				LatencyMs: msSince(start),
			}
			return empty, RecognizerOutput{}, nil
		}
	}

	recognized, err := p.Recognizer.Transcribe(samples, p.Language)
	if err != nil {
		return Result{}, RecognizerOutput{}, fmt.Errorf("pipeline: partial recognize: %w", err)
	}

	rng := timestampRange(recognized.Segments)
	result := Result{
		Type:           ResultPartial,
		BufferID:       bufferID,
		Text:           recognized.Text,
		Segments:       recognized.Segments,
		TimestampRange: rng,
		LatencyMs:      msSince(start),
	}

	logger.Info("partial_result_generated", "buffer_id", bufferID, "latency_ms", result.LatencyMs)

	return result, RecognizerOutput{Text: recognized.Text, Segments: recognized.Segments}, nil
}

// ProcessFinal runs alignment, diarization and correction over the
// recognizer output already produced by ProcessPartial for this
// buffer_id. It never re-invokes the recognizer. Each stage degrades
// independently: a nil or failing stage passes its input segments
// through unchanged rather than aborting the chain (spec's "silent
// downgrade" capability-degradation contract).
func (p *Pipeline) ProcessFinal(cached RecognizerOutput, samples []float32, bufferID string) (Result, error) {
	start := time.Now()

	segments := cached.Segments

	if p.Aligner != nil {
		aligned, err := p.Aligner.Align(segments, samples)
		if err != nil {
			logger.Warn("align_failed_passthrough", "buffer_id", bufferID, "error", err)
		} else {
			segments = aligned
		}
	}

	if p.Diarizer != nil {
		diarized, err := p.Diarizer.Diarize(segments, samples)
		if err != nil {
			logger.Warn("diarize_failed_passthrough", "buffer_id", bufferID, "error", err)
		} else {
			segments = diarized
		}
	}

	text := cached.Text
	if p.Corrector != nil {
		correctedText, correctedSegments, err := p.Corrector.Correct(text, segments)
		if err != nil {
			logger.Warn("correct_failed_passthrough", "buffer_id", bufferID, "error", err)
		} else {
			text = correctedText
			segments = correctedSegments
		}
	}

	result := Result{
		Type:           ResultFinal,
		BufferID:       bufferID,
		Text:           text,
		Segments:       segments,
		TimestampRange: timestampRange(segments),
		LatencyMs:      msSince(start),
	}

	logger.Info("final_result_generated", "buffer_id", bufferID, "latency_ms", result.LatencyMs)

	return result, nil
}

func timestampRange(segments []capability.Segment) TimestampRange {
	if len(segments) == 0 {
		return TimestampRange{Start: 0, End: 0}
	}
	rng := TimestampRange{Start: segments[0].Start, End: segments[0].End}
	for _, seg := range segments[1:] {
		if seg.Start < rng.Start {
			rng.Start = seg.Start
		}
		if seg.End > rng.End {
			rng.End = seg.End
		}
	}
	return rng
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
