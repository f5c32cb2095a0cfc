package model

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// ControlState is the shared simulation control record polled by agents and
// written by the dashboard.
type ControlState struct {
	Running     bool    `json:"running"`
	Speed       float64 `json:"speed"`
	Initialized bool    `json:"initialized"`
	GridWidth   int     `json:"grid_width"`
	GridHeight  int     `json:"grid_height"`
}

// ControlPatch is a partial update. Nil fields are left untouched.
type ControlPatch struct {
	Running     *bool
	Speed       *float64
	Initialized *bool
	GridWidth   *int
	GridHeight  *int
}

// Empty reports whether the patch touches no field.
func (p ControlPatch) Empty() bool {
	return p.Running == nil && p.Speed == nil && p.Initialized == nil &&
		p.GridWidth == nil && p.GridHeight == nil
}

// ApplyTo returns s with every set field of p copied over it.
func (p ControlPatch) ApplyTo(s ControlState) ControlState {
	if p.Running != nil {
		s.Running = *p.Running
	}
	if p.Speed != nil {
		s.Speed = *p.Speed
	}
	if p.Initialized != nil {
		s.Initialized = *p.Initialized
	}
	if p.GridWidth != nil {
		s.GridWidth = *p.GridWidth
	}
	if p.GridHeight != nil {
		s.GridHeight = *p.GridHeight
	}
	return s
}

// ParseControlPatch builds a patch from a decoded request body. Known keys
// are coerced (speed to float, grid dimensions to int, flags to bool) and
// unknown keys are ignored. Values are not range checked: a negative speed
// is stored as given. A non-finite speed is rejected.
func ParseControlPatch(body map[string]any) (ControlPatch, error) {
	var p ControlPatch
	if v, ok := body["running"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return ControlPatch{}, fmt.Errorf("%w: running: %v", ErrInvalidArgument, err)
		}
		p.Running = &b
	}
	if v, ok := body["speed"]; ok {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return ControlPatch{}, fmt.Errorf("%w: speed: %v", ErrInvalidArgument, err)
		}
		// "inf" and "NaN" parse as floats but have no JSON encoding.
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return ControlPatch{}, fmt.Errorf("%w: speed must be a finite number, got %v", ErrInvalidArgument, v)
		}
		p.Speed = &f
	}
	if v, ok := body["initialized"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return ControlPatch{}, fmt.Errorf("%w: initialized: %v", ErrInvalidArgument, err)
		}
		p.Initialized = &b
	}
	if v, ok := body["grid_width"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return ControlPatch{}, fmt.Errorf("%w: grid_width: %v", ErrInvalidArgument, err)
		}
		p.GridWidth = &n
	}
	if v, ok := body["grid_height"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return ControlPatch{}, fmt.Errorf("%w: grid_height: %v", ErrInvalidArgument, err)
		}
		p.GridHeight = &n
	}
	return p, nil
}
