package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asr_server/internal/capability"
)

type fakeVAD struct {
	spans []capability.Span
	err   error
}

func (f fakeVAD) Detect(samples []float32) ([]capability.Span, error) { return f.spans, f.err }

type fakeRecognizer struct {
	calls  int
	result capability.RecognizeResult
	err    error
}

func (f *fakeRecognizer) Transcribe(samples []float32, language string) (capability.RecognizeResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeAligner struct{ calls int }

func (f *fakeAligner) Align(segments []capability.Segment, samples []float32) ([]capability.Segment, error) {
	f.calls++
	return segments, nil
}

type fakeDiarizer struct{ calls int }

func (f *fakeDiarizer) Diarize(segments []capability.Segment, samples []float32) ([]capability.Segment, error) {
	f.calls++
	out := make([]capability.Segment, len(segments))
	for i, s := range segments {
		s.Speaker = "Speaker_00"
		out[i] = s
	}
	return out, nil
}

type fakeCorrector struct{ calls int }

func (f *fakeCorrector) Correct(text string, segments []capability.Segment) (string, []capability.Segment, error) {
	f.calls++
	return text + " corrected", segments, nil
}

func samples(n int) []float32 { return make([]float32, n) }

func TestProcessPartial_NoSpeechSkipsRecognizer(t *testing.T) {
	recognizer := &fakeRecognizer{}
	p := New(fakeVAD{spans: nil}, recognizer, nil, nil, nil, "en")

	result, cached, err := p.ProcessPartial(samples(1600), "buff_x", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, recognizer.calls, "recognizer must not run when VAD finds no speech")
	assert.Empty(t, result.Text)
	assert.Nil(t, result.Segments)
	assert.Nil(t, cached.Segments, "cached sentinel should stay nil when nothing was recognized")
}

func TestProcessPartial_RecognizesOnceWhenSpeechPresent(t *testing.T) {
	recognizer := &fakeRecognizer{result: capability.RecognizeResult{
		Text:     "hello world",
		Segments: []capability.Segment{{Start: 0, End: 1, Text: "hello world"}},
	}}
	p := New(fakeVAD{spans: []capability.Span{{StartSample: 0, EndSample: 1600}}}, recognizer, nil, nil, nil, "en")

	result, cached, err := p.ProcessPartial(samples(1600), "buff_x", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, recognizer.calls)
	assert.Equal(t, "hello world", result.Text)
	assert.Equal(t, "hello world", cached.Text)
}

func TestProcessFinal_ReusesCachedRecognitionExactlyOnce(t *testing.T) {
	recognizer := &fakeRecognizer{result: capability.RecognizeResult{
		Text:     "hello world",
		Segments: []capability.Segment{{Start: 0, End: 1, Text: "hello world"}},
	}}
	aligner := &fakeAligner{}
	diarizer := &fakeDiarizer{}
	corrector := &fakeCorrector{}
	p := New(fakeVAD{spans: []capability.Span{{StartSample: 0, EndSample: 1600}}}, recognizer, aligner, diarizer, corrector, "en")

	_, cached, err := p.ProcessPartial(samples(1600), "buff_x", time.Now())
	require.NoError(t, err)

	final, err := p.ProcessFinal(cached, samples(1600), "buff_x")
	require.NoError(t, err)

	assert.Equal(t, 1, recognizer.calls, "reuse invariant: recognizer runs exactly once across partial+final")
	assert.Equal(t, 1, aligner.calls)
	assert.Equal(t, 1, diarizer.calls)
	assert.Equal(t, 1, corrector.calls)
	assert.Equal(t, "hello world corrected", final.Text)
	require.Len(t, final.Segments, 1)
	assert.Equal(t, "Speaker_00", final.Segments[0].Speaker)
}

func TestProcessFinal_NilStagesPassThrough(t *testing.T) {
	recognizer := &fakeRecognizer{result: capability.RecognizeResult{
		Text:     "hi",
		Segments: []capability.Segment{{Start: 0, End: 1, Text: "hi"}},
	}}
	p := New(nil, recognizer, nil, nil, nil, "en")

	_, cached, err := p.ProcessPartial(samples(1600), "buff_x", time.Now())
	require.NoError(t, err)

	final, err := p.ProcessFinal(cached, samples(1600), "buff_x")
	require.NoError(t, err)
	assert.Equal(t, "hi", final.Text, "text must pass through unchanged when every optional stage is nil")
}

func TestProcessPartial_RecognizerErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	recognizer := &fakeRecognizer{err: wantErr}
	p := New(nil, recognizer, nil, nil, nil, "en")

	_, _, err := p.ProcessPartial(samples(1600), "buff_x", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}
