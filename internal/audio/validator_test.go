package audio

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	v := New(16000, 30)

	tests := []struct {
		name    string
		chunk   []byte
		wantErr error
	}{
		{"empty", nil, ErrEmptyChunk},
		{"too small", make([]byte, 32), ErrChunkTooSmall},
		{"misaligned", make([]byte, 65), ErrFrameMisaligned},
		{"exactly min", make([]byte, MinChunkBytes), nil},
		{"too large", make([]byte, 1920004), ErrChunkTooLarge},
		{"exactly max", make([]byte, 1920000), nil},
		{"ordinary chunk", make([]byte, 4096), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.chunk)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want wrapping %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxChunkBytes(t *testing.T) {
	v := New(16000, 30)
	if got := v.MaxChunkBytes(); got != 1920000 {
		t.Errorf("MaxChunkBytes() = %d, want 1920000", got)
	}
}
