package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsushin/internal/model"
)

func TestApplyPartialUpdate(t *testing.T) {
	s := New(DefaultState())

	got, err := s.ApplyBody(map[string]any{"speed": 2.0})
	require.NoError(t, err)

	want := DefaultState()
	want.Speed = 2.0
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.Get())
	assert.False(t, got.Running)
	assert.Equal(t, 120, got.GridWidth)
}

func TestApplyEmptyPatchReturnsCurrentState(t *testing.T) {
	s := New(DefaultState())
	_, err := s.ApplyBody(map[string]any{"running": true})
	require.NoError(t, err)

	got := s.Apply(model.ControlPatch{})
	assert.True(t, got.Running)
	assert.Equal(t, s.Get(), got)

	got, err = s.ApplyBody(map[string]any{"color": "blue"})
	require.NoError(t, err)
	assert.True(t, got.Running)
}

func TestApplyIgnoresUnknownKeys(t *testing.T) {
	s := New(DefaultState())

	got, err := s.ApplyBody(map[string]any{"weather": "rain", "running": true})
	require.NoError(t, err)
	assert.True(t, got.Running)
	assert.Equal(t, DefaultSpeed, got.Speed)
}

func TestApplyCoercionFailureWritesNothing(t *testing.T) {
	s := New(DefaultState())

	_, err := s.ApplyBody(map[string]any{"running": true, "grid_width": "wide"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Equal(t, DefaultState(), s.Get())
}

func TestApplyAcceptsNegativeSpeed(t *testing.T) {
	s := New(DefaultState())
	got, err := s.ApplyBody(map[string]any{"speed": -1})
	require.NoError(t, err)
	assert.Equal(t, -1.0, got.Speed)
}

func TestConcurrentApplyDisjointFields(t *testing.T) {
	s := New(DefaultState())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			w := i
			s.Apply(model.ControlPatch{GridWidth: &w})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 500 {
			h := i
			s.Apply(model.ControlPatch{GridHeight: &h})
		}
	}()
	wg.Wait()

	got := s.Get()
	assert.Equal(t, 499, got.GridWidth)
	assert.Equal(t, 499, got.GridHeight)
}
