// Package control holds the simulation control record shared by the
// dashboard and the agents.
package control

import (
	"sync"

	"github.com/ashita-ai/tsushin/internal/model"
)

// Default grid dimensions and speed used when nothing else is configured.
const (
	DefaultGridWidth  = 120
	DefaultGridHeight = 120
	DefaultSpeed      = 1.0
)

// DefaultState is the record a fresh process starts with.
func DefaultState() model.ControlState {
	return model.ControlState{
		Running:     false,
		Speed:       DefaultSpeed,
		Initialized: false,
		GridWidth:   DefaultGridWidth,
		GridHeight:  DefaultGridHeight,
	}
}

// Store guards a single ControlState. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state model.ControlState
}

// New creates a store holding initial.
func New(initial model.ControlState) *Store {
	return &Store{state: initial}
}

// Get returns a snapshot of the current state.
func (s *Store) Get() model.ControlState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply writes the fields set in patch, leaves the rest untouched, and
// returns the resulting state. An empty patch is a read.
func (s *Store) Apply(patch model.ControlPatch) model.ControlState {
	if patch.Empty() {
		return s.Get()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = patch.ApplyTo(s.state)
	return s.state
}

// ApplyBody coerces a decoded request body into a patch and applies it.
// Unknown keys are ignored. On a coercion error nothing is written.
func (s *Store) ApplyBody(body map[string]any) (model.ControlState, error) {
	patch, err := model.ParseControlPatch(body)
	if err != nil {
		return model.ControlState{}, err
	}
	return s.Apply(patch), nil
}
