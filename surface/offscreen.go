// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"fmt"
	"image"
	"sync"
)

// OffscreenName is the registry name of the offscreen backend.
const OffscreenName = "offscreen"

// Offscreen is an in-memory surface. It queues EventMap on creation, keeps
// a copy of the last presented frame and accepts injected events.
//
// Offscreen is safe for concurrent use, so events can be injected from a
// goroutine other than the one presenting.
type Offscreen struct {
	mu sync.Mutex

	width, height int
	fullscreen    bool

	events    []Event
	last      *image.RGBA
	presented int
	closed    bool
}

// NewOffscreen creates an offscreen surface.
func NewOffscreen(opts Options) (*Offscreen, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Offscreen{
		width:      opts.Width,
		height:     opts.Height,
		fullscreen: opts.Fullscreen,
		events:     []Event{EventMap},
	}, nil
}

// Width returns the surface width in pixels.
func (s *Offscreen) Width() int { return s.width }

// Height returns the surface height in pixels.
func (s *Offscreen) Height() int { return s.height }

// Fullscreen reports the hint the surface was created with.
func (s *Offscreen) Fullscreen() bool { return s.fullscreen }

// PollEvent returns the oldest queued event.
func (s *Offscreen) PollEvent() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return 0, false
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e, true
}

// Inject queues e behind any pending events.
func (s *Offscreen) Inject(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Present copies frame into the surface.
func (s *Offscreen) Present(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	b := frame.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("%w: frame %dx%d, surface %dx%d", ErrFrameSize, b.Dx(), b.Dy(), s.width, s.height)
	}
	if s.last == nil {
		s.last = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}
	rowBytes := s.width * 4
	for y := range s.height {
		src := frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(s.last.Pix[y*s.last.Stride:y*s.last.Stride+rowBytes], src[:rowBytes])
	}
	s.presented++
	return nil
}

// Presented returns how many frames were presented.
func (s *Offscreen) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Snapshot returns a copy of the last presented frame, or nil.
func (s *Offscreen) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	out := image.NewRGBA(s.last.Rect)
	copy(out.Pix, s.last.Pix)
	return out
}

// Close marks the surface closed. Idempotent.
func (s *Offscreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.events = nil
	return nil
}

var (
	_ Surface     = (*Offscreen)(nil)
	_ Snapshotter = (*Offscreen)(nil)
)
