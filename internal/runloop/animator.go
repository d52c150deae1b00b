package runloop

import "math"

// Animator bounces a value between 0 and 1 by a fixed step.
//
// The value is not clamped: it may overshoot either bound by less than one
// step before the direction flips.
type Animator struct {
	value float64
	step  float64
}

// NewAnimator returns an animator at start moving by step per Advance.
func NewAnimator(start, step float64) *Animator {
	return &Animator{value: start, step: step}
}

// Advance adds the step and flips direction at the bounds. It returns the
// new value.
func (a *Animator) Advance() float64 {
	a.value += a.step
	switch {
	case a.value >= 1:
		a.step = -math.Abs(a.step)
	case a.value <= 0:
		a.step = math.Abs(a.step)
	}
	return a.value
}

// Value returns the current value.
func (a *Animator) Value() float64 { return a.value }

// Step returns the signed step the next Advance applies.
func (a *Animator) Step() float64 { return a.step }
