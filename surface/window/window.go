// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package window presents converted frames in a desktop window.
//
// The backend registers itself with the surface registry as "window" at
// priority 100, ahead of the offscreen backend, and is available wherever
// a display is reachable. Import it for its side effect:
//
//	import _ "github.com/gogpu/colorconvert/surface/window"
//
// A Window is a surface.Host: its Run method must be called from the main
// goroutine and blocks until the window closes, while the frame loop
// calls Present from another goroutine. Frames are uploaded into a texture
// and drawn on the window's own draw callback.
//
// A Window is also a surface.DeviceSharer, so the converter can render on
// the window's GPU device instead of opening a second one.
package window

import (
	"context"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/surface"
)

// Name is the registry name of the window backend.
const Name = "window"

// Priority orders the window backend ahead of offscreen.
const Priority = 100

func init() {
	surface.Register(Name, Priority, func(opts surface.Options) (surface.Surface, error) {
		return New(opts)
	}, available)
}

// available reports whether a display is reachable. On Linux that needs
// an X11 or Wayland session.
func available() bool {
	return displayAvailable(runtime.GOOS, os.Getenv)
}

func displayAvailable(goos string, getenv func(string) string) bool {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return getenv("DISPLAY") != "" || getenv("WAYLAND_DISPLAY") != ""
	case "windows", "darwin":
		return true
	}
	return false
}

// Window is a surface backed by a gogpu application window.
type Window struct {
	*presenter

	app        *gogpu.App
	fullscreen bool

	// provider is set once on the draw callback, then ready is closed.
	provider gpucontext.DeviceProvider
	ready    chan struct{}

	doneOnce sync.Once
	done     chan struct{}
}

var (
	_ surface.Surface      = (*Window)(nil)
	_ surface.Host         = (*Window)(nil)
	_ surface.DeviceSharer = (*Window)(nil)
	_ surface.Snapshotter  = (*Window)(nil)
)

// New creates the window. It is shown when Run is called.
func New(opts surface.Options) (*Window, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, surface.ErrInvalidSize
	}
	title := opts.Title
	if title == "" {
		title = "colorconvert"
	}

	cfg := gogpu.DefaultConfig().
		WithTitle(title).
		WithSize(opts.Width, opts.Height).
		WithContinuousRender(true)
	fullscreen := false
	if opts.Fullscreen {
		cfg, fullscreen = withFullscreen(cfg)
		if !fullscreen {
			colorconvert.Logger().Warn("window: fullscreen not supported, using a window")
		}
	}

	w := &Window{
		presenter:  newPresenter(opts.Width, opts.Height),
		app:        gogpu.NewApp(cfg),
		fullscreen: fullscreen,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	w.app.OnDraw(w.onDraw)
	w.app.OnClose(w.onClose)
	events := w.app.EventSource()
	events.OnResize(w.resized)
	events.OnFocus(w.focused)
	return w, nil
}

// withFullscreen turns on fullscreen in a config that supports it. The
// second result is false when cfg has no fullscreen option.
func withFullscreen[C any](cfg C) (C, bool) {
	f, ok := any(cfg).(interface{ WithFullscreen(bool) C })
	if !ok {
		return cfg, false
	}
	return f.WithFullscreen(true), true
}

func (w *Window) onDraw(dc *gogpu.Context) {
	if w.provider == nil {
		if p := w.app.GPUContextProvider(); p != nil {
			w.provider = p
			close(w.ready)
			colorconvert.Logger().Info("window: ready", "backend", dc.Backend())
		}
	}
	if err := w.draw(dc.AsTextureDrawer(), dc.Width(), dc.Height()); err != nil {
		colorconvert.Logger().Error("window: draw", "err", err)
	}
}

func (w *Window) onClose() {
	w.presenter.close()
	w.shutdown()
	w.doneOnce.Do(func() { close(w.done) })
}

// Width returns the frame width in pixels.
func (w *Window) Width() int { return w.width }

// Height returns the frame height in pixels.
func (w *Window) Height() int { return w.height }

// Fullscreen reports whether the window was created fullscreen.
func (w *Window) Fullscreen() bool { return w.fullscreen }

// PollEvent returns the oldest pending event.
func (w *Window) PollEvent() (surface.Event, bool) { return w.pollEvent() }

// Present hands frame to the next draw callback.
func (w *Window) Present(frame *image.RGBA) error { return w.present(frame) }

// Snapshot returns a copy of the last presented frame.
func (w *Window) Snapshot() *image.RGBA { return w.snapshot() }

// Run shows the window and processes its events until it closes. It must
// be called from the main goroutine.
func (w *Window) Run() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	return w.app.Run()
}

// Close asks the window to quit. Close is idempotent.
func (w *Window) Close() error {
	if w.presenter.close() {
		w.app.Quit()
	}
	w.doneOnce.Do(func() { close(w.done) })
	return nil
}

// DeviceProvider waits for the window's GPU device.
func (w *Window) DeviceProvider(ctx context.Context) (gpucontext.DeviceProvider, error) {
	select {
	case <-w.ready:
		return w.provider, nil
	case <-w.done:
		return nil, surface.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
