package capability

import (
	"fmt"

	"asr_server/internal/logger"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SileroVADConfig configures the sherpa-onnx-go Silero VAD backend.
type SileroVADConfig struct {
	ModelPath          string
	Threshold          float32
	MinSilenceDuration float32
	MinSpeechDuration  float32
	MaxSpeechDuration  float32
	WindowSize         int
	SampleRate         int
	BufferSizeSeconds  float32
}

// SileroVAD wraps a single sherpa-onnx-go VoiceActivityDetector instance.
// It is not safe for concurrent use; the pipeline serializes VAD calls onto
// a single worker per the shared-GPU-resource discipline.
type SileroVAD struct {
	detector   *sherpa.VoiceActivityDetector
	sampleRate int
	minSpeech  float64
	maxSpeech  float64
}

// NewSileroVAD constructs a Silero VAD detector from cfg. A nil return from
// the underlying library is treated as a fatal-at-load-time error, per the
// capability contract ("fatal at load time" failure mode).
func NewSileroVAD(cfg SileroVADConfig) (*SileroVAD, error) {
	modelConfig := &sherpa.VadModelConfig{}
	modelConfig.SileroVad.Model = cfg.ModelPath
	modelConfig.SileroVad.Threshold = cfg.Threshold
	modelConfig.SileroVad.MinSilenceDuration = cfg.MinSilenceDuration
	modelConfig.SileroVad.MinSpeechDuration = cfg.MinSpeechDuration
	modelConfig.SileroVad.MaxSpeechDuration = cfg.MaxSpeechDuration
	modelConfig.SileroVad.WindowSize = cfg.WindowSize
	modelConfig.SampleRate = cfg.SampleRate

	detector := sherpa.NewVoiceActivityDetector(modelConfig, cfg.BufferSizeSeconds)
	if detector == nil {
		return nil, fmt.Errorf("capability: failed to create silero vad detector")
	}

	return &SileroVAD{
		detector:   detector,
		sampleRate: cfg.SampleRate,
		minSpeech:  float64(cfg.MinSpeechDuration),
		maxSpeech:  float64(cfg.MaxSpeechDuration),
	}, nil
}

// Detect runs the detector over samples and drains every buffered speech
// segment into sample-index spans. Segments shorter than the configured
// minimum speech duration are dropped; longer-than-maximum ones are
// truncated to the maximum.
func (v *SileroVAD) Detect(samples []float32) (spans []Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			// Fail open: a panicking detector must never drop valid audio.
			logger.Warn("silero_vad_panic_failing_open", "recover", r)
			spans = []Span{{StartSample: 0, EndSample: len(samples)}}
			err = nil
		}
	}()

	v.detector.AcceptWaveform(samples)
	v.detector.Flush()

	for !v.detector.IsEmpty() {
		seg := v.detector.Front()
		v.detector.Pop()
		if seg == nil || len(seg.Samples) == 0 {
			continue
		}

		duration := float64(len(seg.Samples)) / float64(v.sampleRate)
		if duration < v.minSpeech {
			continue
		}
		n := len(seg.Samples)
		if v.maxSpeech > 0 && duration > v.maxSpeech {
			n = int(v.maxSpeech * float64(v.sampleRate))
		}

		spans = append(spans, Span{StartSample: seg.Start, EndSample: seg.Start + n})
	}

	v.detector.Reset()
	return spans, nil
}

// Close releases the underlying detector.
func (v *SileroVAD) Close() {
	if v.detector != nil {
		sherpa.DeleteVoiceActivityDetector(v.detector)
		v.detector = nil
	}
}
