package capability

import "testing"

func TestMatchrDiarizer_ContinuesSameSpeakerAcrossRelatedSegments(t *testing.T) {
	d := NewMatchrDiarizer("Speaker_00", 0.5)
	segments := []Segment{
		{Text: "the quick brown fox"},
		{Text: "fox jumps over the lazy dog"},
	}

	out, err := d.Diarize(segments, nil)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if out[0].Speaker != out[1].Speaker {
		t.Errorf("expected same speaker for a continued phrase, got %q vs %q", out[0].Speaker, out[1].Speaker)
	}
}

func TestMatchrDiarizer_NoSegmentsReturnsEmpty(t *testing.T) {
	d := NewMatchrDiarizer("Speaker_00", 0.5)
	out, err := d.Diarize(nil, nil)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}

func TestMatchrDiarizer_FirstSegmentAlwaysLabeled(t *testing.T) {
	d := NewMatchrDiarizer("Speaker_00", 0.5)
	out, err := d.Diarize([]Segment{{Text: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Diarize() error = %v", err)
	}
	if out[0].Speaker != "Speaker_00" {
		t.Errorf("out[0].Speaker = %q, want Speaker_00", out[0].Speaker)
	}
}
