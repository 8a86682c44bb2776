package capability

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	onnxWindowSize = 512
	onnxStateSize  = 128
)

var (
	onnxInitOnce sync.Once
	onnxInitErr  error
)

// OnnxVADConfig configures the onnxruntime_go-backed alternate VAD backend.
// This demonstrates the swappable-capability contract with a runtime that
// has no sherpa dependency at all.
type OnnxVADConfig struct {
	ModelPath     string
	LibraryPath   string
	Threshold     float64
	MinSpeechSecs float64
	SampleRate    int
}

// OnnxVAD runs Silero VAD v5 inference directly via onnxruntime_go, without
// going through sherpa-onnx-go. It processes samples in fixed windows and
// emits a speech span whenever consecutive windows cross the threshold.
type OnnxVAD struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32]
	stateTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	threshold  float64
	sampleRate int
	minSpeech  int
}

// NewOnnxVAD loads the ONNX model at cfg.ModelPath and allocates the
// input/output tensors used for every inference call.
func NewOnnxVAD(cfg OnnxVADConfig) (*OnnxVAD, error) {
	onnxInitOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		onnxInitErr = ort.InitializeEnvironment()
	})
	if onnxInitErr != nil {
		return nil, fmt.Errorf("capability: onnx runtime init: %w", onnxInitErr)
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("capability: onnx vad model not found: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, onnxWindowSize))
	if err != nil {
		return nil, fmt.Errorf("capability: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, onnxStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("capability: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(cfg.SampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("capability: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("capability: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, onnxStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("capability: create stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("capability: create onnx session: %w", err)
	}

	return &OnnxVAD{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		threshold:    cfg.Threshold,
		sampleRate:   cfg.SampleRate,
		minSpeech:    int(cfg.MinSpeechSecs * float64(cfg.SampleRate)),
	}, nil
}

// Detect runs fixed-window inference across samples and coalesces
// consecutive speech windows into spans. On any inference error it fails
// open, matching the VAD contract's "treat as speech present" rule.
func (v *OnnxVAD) Detect(samples []float32) ([]Span, error) {
	var spans []Span
	speechStart := -1

	for offset := 0; offset+onnxWindowSize <= len(samples); offset += onnxWindowSize {
		isSpeech, err := v.infer(samples[offset : offset+onnxWindowSize])
		if err != nil {
			return []Span{{StartSample: 0, EndSample: len(samples)}}, nil
		}

		if isSpeech {
			if speechStart == -1 {
				speechStart = offset
			}
		} else if speechStart != -1 {
			spans = append(spans, v.closeSpan(speechStart, offset))
			speechStart = -1
		}
	}

	if speechStart != -1 {
		spans = append(spans, v.closeSpan(speechStart, len(samples)))
	}

	return spans, nil
}

func (v *OnnxVAD) closeSpan(start, end int) Span {
	if end-start < v.minSpeech {
		return Span{StartSample: start, EndSample: start}
	}
	return Span{StartSample: start, EndSample: end}
}

func (v *OnnxVAD) infer(window []float32) (bool, error) {
	copy(v.inputTensor.GetData(), window)

	if err := v.session.Run(); err != nil {
		return false, fmt.Errorf("capability: onnx inference: %w", err)
	}

	prob := v.outputTensor.GetData()[0]
	copy(v.stateTensor.GetData(), v.stateNTensor.GetData())

	return float64(prob) >= v.threshold, nil
}

// Close releases the ONNX Runtime session and tensors.
func (v *OnnxVAD) Close() {
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	if v.inputTensor != nil {
		v.inputTensor.Destroy()
		v.inputTensor = nil
	}
	if v.stateTensor != nil {
		v.stateTensor.Destroy()
		v.stateTensor = nil
	}
	if v.srTensor != nil {
		v.srTensor.Destroy()
		v.srTensor = nil
	}
	if v.outputTensor != nil {
		v.outputTensor.Destroy()
		v.outputTensor = nil
	}
	if v.stateNTensor != nil {
		v.stateNTensor.Destroy()
		v.stateNTensor = nil
	}
}
