// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides the output surface converted frames are
// presented on.
//
// A Surface is a fixed-size target that accepts whole RGBA frames and
// reports visibility changes as events. The run loop only depends on this
// interface, so window systems, offscreen buffers and test doubles are
// interchangeable.
//
// # Events
//
// Surfaces report three notifications, polled one at a time:
//
//   - EventExpose: content was damaged; the next frame repairs it
//   - EventMap: the surface became visible
//   - EventUnmap: the surface was hidden
//
// # Registry
//
// Backends register a factory under a name and priority:
//
//	func init() {
//	    surface.Register("window", 100, newWindow, displayAvailable)
//	}
//
// The window backend in surface/window registers exactly this way.
//
// and callers open either a named backend or the best available one:
//
//	s, err := surface.Open(surface.Options{Width: 1280, Height: 720})
//	s, err := surface.OpenByName("offscreen", opts)
//
// # Offscreen
//
// The built-in "offscreen" backend keeps the last presented frame in
// memory. It emits EventMap once after creation and accepts injected
// events, which makes it the surface of choice for headless runs and tests.
//
// # Hosts
//
// Some backends need the main goroutine for their event loop. Those
// implement Host; the caller runs the frame loop on another goroutine and
// calls Run on the main one. Backends that own a GPU device may also
// implement DeviceSharer to lend it to the converter.
package surface
