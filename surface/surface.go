// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// Surface is a presentation target for converted frames.
//
// Surfaces are NOT thread-safe unless documented otherwise. The run loop
// owns its surface and uses it from one goroutine.
type Surface interface {
	// Width returns the surface width in pixels.
	Width() int

	// Height returns the surface height in pixels.
	Height() int

	// PollEvent returns the next pending notification, if any. It never
	// blocks.
	PollEvent() (Event, bool)

	// Present shows frame. The frame must match the surface size and may be
	// reused by the caller after Present returns.
	Present(frame *image.RGBA) error

	// Close releases the surface. Close is idempotent.
	Close() error
}

// Snapshotter is implemented by surfaces that can return what they last
// presented.
type Snapshotter interface {
	// Snapshot returns a copy of the last presented frame, or nil before the
	// first Present.
	Snapshot() *image.RGBA
}

// Host is implemented by surfaces whose window system must own the calling
// goroutine, usually the main one. Run blocks until the surface is closed
// by the user or by Close, so the frame loop has to run elsewhere.
type Host interface {
	Run() error
}

// DeviceSharer is implemented by surfaces that render with their own GPU
// device and can lend it to the converter. DeviceProvider blocks until the
// device exists, ctx is done or the surface closes.
type DeviceSharer interface {
	DeviceProvider(ctx context.Context) (gpucontext.DeviceProvider, error)
}

// Event is a surface notification.
type Event uint8

const (
	// EventExpose reports damaged content. It does not change visibility.
	EventExpose Event = iota

	// EventMap reports that the surface became visible.
	EventMap

	// EventUnmap reports that the surface was hidden.
	EventUnmap
)

func (e Event) String() string {
	switch e {
	case EventExpose:
		return "Expose"
	case EventMap:
		return "Map"
	case EventUnmap:
		return "Unmap"
	}
	return fmt.Sprintf("Event(%d)", uint8(e))
}

// Options configures a new surface.
type Options struct {
	// Width and Height are the surface size in pixels.
	Width  int
	Height int

	// Fullscreen asks the backend for a fullscreen surface. It is a hint
	// applied once at creation; backends without the notion ignore it.
	Fullscreen bool

	// Title names the surface where the backend shows one.
	Title string
}

// validate reports whether the size is usable.
func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, o.Width, o.Height)
	}
	return nil
}

// Errors.
var (
	// ErrInvalidSize is returned for a non-positive surface size.
	ErrInvalidSize = errors.New("surface: invalid size")

	// ErrFrameSize is returned by Present for a frame of the wrong size.
	ErrFrameSize = errors.New("surface: frame size does not match surface")

	// ErrClosed is returned when a closed surface is used.
	ErrClosed = errors.New("surface: closed")
)
