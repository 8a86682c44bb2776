package capability

import (
	"fmt"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// RecognizerConfig configures the sherpa-onnx-go offline recognizer,
// mirroring the options the upstream bootstrap wiring exposes.
type RecognizerConfig struct {
	ModelPath                   string
	TokensPath                  string
	Language                    string
	SampleRate                  int
	FeatureDim                  int
	NumThreads                  int
	Provider                    string
	Debug                       bool
	UseInverseTextNormalization bool
}

// SherpaRecognizer wraps a single sherpa.OfflineRecognizer shared across all
// sessions. Calls must be serialized onto the GPU worker — see
// internal/pipeline for the single-reader-at-a-time discipline.
type SherpaRecognizer struct {
	recognizer *sherpa.OfflineRecognizer
	sampleRate int
}

// NewSherpaRecognizer creates the offline recognizer. A nil recognizer from
// the underlying library is a fatal-at-load-time condition: the server must
// refuse to start.
func NewSherpaRecognizer(cfg RecognizerConfig) (*SherpaRecognizer, error) {
	c := sherpa.OfflineRecognizerConfig{}
	c.FeatConfig.SampleRate = cfg.SampleRate
	c.FeatConfig.FeatureDim = cfg.FeatureDim
	c.ModelConfig.SenseVoice.Model = cfg.ModelPath
	c.ModelConfig.SenseVoice.Language = cfg.Language
	c.ModelConfig.SenseVoice.UseInverseTextNormalization = boolToInt(cfg.UseInverseTextNormalization)
	c.ModelConfig.Tokens = cfg.TokensPath
	c.ModelConfig.NumThreads = cfg.NumThreads
	c.ModelConfig.Provider = cfg.Provider
	c.ModelConfig.Debug = boolToInt(cfg.Debug)

	recognizer := sherpa.NewOfflineRecognizer(&c)
	if recognizer == nil {
		return nil, fmt.Errorf("capability: failed to create offline recognizer")
	}

	return &SherpaRecognizer{recognizer: recognizer, sampleRate: cfg.SampleRate}, nil
}

// Transcribe runs one recognizer pass over samples. language is accepted
// for interface symmetry with the capability contract; the sherpa
// recognizer's language is fixed at model-load time via its config.
func (r *SherpaRecognizer) Transcribe(samples []float32, language string) (result RecognizeResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: recognizer panic: %v", ErrOOM, rec)
		}
	}()

	stream := sherpa.NewOfflineStream(r.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(r.sampleRate, samples)
	r.recognizer.Decode(stream)
	out := stream.GetResult()
	if out == nil {
		return RecognizeResult{}, fmt.Errorf("capability: recognition returned no result")
	}

	duration := float64(len(samples)) / float64(r.sampleRate)
	segments := []Segment{}
	if out.Text != "" {
		segments = append(segments, Segment{Start: 0, End: duration, Text: out.Text})
	}

	return RecognizeResult{Text: out.Text, Segments: segments}, nil
}

// Close releases the underlying recognizer.
func (r *SherpaRecognizer) Close() {
	if r.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(r.recognizer)
		r.recognizer = nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
