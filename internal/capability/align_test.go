package capability

import "testing"

func TestHeuristicAligner_DistributesWordsEvenlyAcrossSpan(t *testing.T) {
	a := NewHeuristicAligner()
	segments := []Segment{{Start: 0, End: 2, Text: "one two"}}

	out, err := a.Align(segments, nil)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	words := out[0].Words
	if len(words) != 2 {
		t.Fatalf("len(words) = %d, want 2", len(words))
	}
	if words[0].Start != 0 || words[0].End != 1 {
		t.Errorf("words[0] = %+v, want Start=0 End=1", words[0])
	}
	if words[1].Start != 1 || words[1].End != 2 {
		t.Errorf("words[1] = %+v, want Start=1 End=2", words[1])
	}
}

func TestHeuristicAligner_EmptyTextPassesThrough(t *testing.T) {
	a := NewHeuristicAligner()
	segments := []Segment{{Start: 0, End: 1, Text: ""}}

	out, err := a.Align(segments, nil)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if len(out[0].Words) != 0 {
		t.Errorf("Words = %+v, want empty for a textless segment", out[0].Words)
	}
}
