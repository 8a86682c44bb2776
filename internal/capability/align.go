package capability

import "strings"

// HeuristicAligner is the stdlib-only Align implementation (see DESIGN.md
// for why no pack dependency fits here). It is a pure function of its
// inputs: given a segment's text and its [start, end) span, it distributes
// word timings evenly across whitespace-tokenized words. Segments with no
// text pass through unchanged.
type HeuristicAligner struct{}

// NewHeuristicAligner constructs the default Aligner.
func NewHeuristicAligner() *HeuristicAligner {
	return &HeuristicAligner{}
}

// Align refines word-level timings. samples is accepted for interface
// symmetry but unused — this implementation only needs segment bounds.
func (HeuristicAligner) Align(segments []Segment, samples []float32) ([]Segment, error) {
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = seg
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}

		span := seg.End - seg.Start
		step := span / float64(len(words))
		timed := make([]Word, len(words))
		for w, word := range words {
			start := seg.Start + step*float64(w)
			end := start + step
			timed[w] = Word{Start: start, End: end, Text: word}
		}
		out[i].Words = timed
	}
	return out, nil
}
