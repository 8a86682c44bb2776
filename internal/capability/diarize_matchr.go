package capability

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// MatchrDiarizer assigns speaker labels to segments. Without a real speaker
// embedding model, it falls back to a same-speaker continuity heuristic:
// consecutive segments are kept under the same speaker run unless their
// trailing/leading tokens look like a turn change (low Jaro-Winkler
// similarity between the end of one segment and the start of the next —
// a deliberately modest signal, documented in DESIGN.md).
type MatchrDiarizer struct {
	defaultSpeaker string
	threshold      float32
}

// NewMatchrDiarizer builds a Diarizer with the configured default label and
// same-speaker similarity threshold.
func NewMatchrDiarizer(defaultSpeaker string, threshold float32) *MatchrDiarizer {
	return &MatchrDiarizer{defaultSpeaker: defaultSpeaker, threshold: threshold}
}

// Diarize labels every segment. When unavailable or given no signal to work
// with, every segment gets the default label, matching the capability's
// "returns inputs with a default label" fallback contract.
func (d *MatchrDiarizer) Diarize(segments []Segment, samples []float32) ([]Segment, error) {
	out := make([]Segment, len(segments))
	if len(segments) == 0 {
		return out, nil
	}

	speakerIdx := 0
	out[0] = segments[0]
	out[0].Speaker = d.speakerLabel(speakerIdx)

	for i := 1; i < len(segments); i++ {
		out[i] = segments[i]
		if !d.sameSpeaker(segments[i-1].Text, segments[i].Text) {
			speakerIdx++
		}
		out[i].Speaker = d.speakerLabel(speakerIdx)
	}
	return out, nil
}

// speakerLabel names the first detected speaker with the configured default
// label and numbers every subsequent speaker run after it.
func (d *MatchrDiarizer) speakerLabel(idx int) string {
	if idx == 0 {
		return d.defaultSpeaker
	}
	return fmt.Sprintf("Speaker_%02d", idx)
}

// sameSpeaker decides whether prev and next plausibly continue one
// speaker's turn, by comparing prev's trailing word against next's leading
// word with Jaro-Winkler similarity. A pair in which either segment has no
// words is always treated as continuing the same speaker — there isn't
// enough signal to split them.
func (d *MatchrDiarizer) sameSpeaker(prev, next string) bool {
	prevWords := strings.Fields(prev)
	nextWords := strings.Fields(next)
	if len(prevWords) == 0 || len(nextWords) == 0 {
		return true
	}

	tail := strings.ToLower(prevWords[len(prevWords)-1])
	head := strings.ToLower(nextWords[0])
	score := matchr.JaroWinkler(tail, head, false)
	return score >= float64(d.threshold)
}
