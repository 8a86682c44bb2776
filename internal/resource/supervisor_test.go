package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asr_server/internal/capability"
)

func TestSupervisor_HandleError_PassesThroughNonOOMErrors(t *testing.T) {
	s := New(time.Second, time.Second, nil)
	want := errors.New("some unrelated failure")

	got := s.HandleError(context.Background(), "buff_1", want)
	assert.Same(t, want, got)
}

func TestSupervisor_HandleError_NilIsNil(t *testing.T) {
	s := New(time.Second, time.Second, nil)
	assert.NoError(t, s.HandleError(context.Background(), "buff_1", nil))
}

func TestSupervisor_HandleError_WrapsOOMAndReleasesScratch(t *testing.T) {
	s := New(time.Second, time.Second, nil)
	s.ScratchCache().Set("scratch_key", []byte{1, 2, 3}, 0)

	err := fmtWrapOOM()
	got := s.HandleError(context.Background(), "buff_1", err)

	require.Error(t, got)
	assert.NotSame(t, err, got, "want a wrapped error for an OOM failure, not the same instance")
	assert.ErrorIs(t, got, capability.ErrOOM)

	_, found := s.ScratchCache().Get("scratch_key")
	assert.False(t, found, "scratch cache entry should be released after an OOM")
}

type oomWrap struct{}

func (oomWrap) Error() string { return "simulated oom" }
func (oomWrap) Unwrap() error { return capability.ErrOOM }

func fmtWrapOOM() error { return &oomWrap{} }
