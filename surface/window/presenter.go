// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package window

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/colorconvert/surface"
)

// errNoCreator is returned when the draw context cannot create textures.
var errNoCreator = errors.New("window: draw context has no texture creator")

// presenter is the part of a window that does not depend on the window
// system: the frame handed over by Present, the event queue and the upload
// of the frame into a texture on the draw callback.
//
// Present and PollEvent run on the frame loop goroutine, the callbacks on
// the window system's goroutine; mu guards everything below it.
type presenter struct {
	width, height int

	mu      sync.Mutex
	events  []surface.Event
	mapped  bool
	closed  bool
	pix     []byte
	hasPix  bool
	dirty   bool
	tex     gpucontext.Texture
	uploads int
}

func newPresenter(width, height int) *presenter {
	return &presenter{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}
}

func (p *presenter) queue(e surface.Event) {
	p.events = append(p.events, e)
}

// pollEvent pops the oldest event.
func (p *presenter) pollEvent() (surface.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return 0, false
	}
	e := p.events[0]
	p.events = p.events[1:]
	return e, true
}

// present copies frame into the pending buffer. The next draw callback
// uploads it.
func (p *presenter) present(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Dx() != p.width || b.Dy() != p.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d",
			surface.ErrFrameSize, b.Dx(), b.Dy(), p.width, p.height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return surface.ErrClosed
	}
	row := p.width * 4
	for y := range p.height {
		src := frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(p.pix[y*row:(y+1)*row], src[:row])
	}
	p.hasPix = true
	p.dirty = true
	return nil
}

// snapshot copies the last presented frame.
func (p *presenter) snapshot() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasPix {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.pix)
	return img
}

// resized translates a window size change. A zero size is a minimized
// window.
func (p *presenter) resized(w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case w <= 0 || h <= 0:
		if p.mapped {
			p.mapped = false
			p.queue(surface.EventUnmap)
		}
	case !p.mapped:
		p.mapped = true
		p.queue(surface.EventMap)
	default:
		p.queue(surface.EventExpose)
	}
}

// focused queues an Expose when a visible window regains focus.
func (p *presenter) focused(focus bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if focus && p.mapped {
		p.queue(surface.EventExpose)
	}
}

// draw runs on the window system's draw callback. The first call maps the
// surface. The frame is drawn centered in a viewW x viewH drawable.
func (p *presenter) draw(td gpucontext.TextureDrawer, viewW, viewH int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if !p.mapped && viewW > 0 && viewH > 0 {
		p.mapped = true
		p.queue(surface.EventMap)
	}
	if !p.hasPix {
		return nil
	}
	if err := p.upload(td); err != nil {
		return err
	}
	x := max(0, (viewW-p.width)/2)
	y := max(0, (viewH-p.height)/2)
	return td.DrawTexture(p.tex, float32(x), float32(y))
}

// upload refreshes the texture from pix when a new frame arrived.
func (p *presenter) upload(td gpucontext.TextureDrawer) error {
	if p.tex != nil && !p.dirty {
		return nil
	}
	if p.tex != nil {
		if u, ok := p.tex.(gpucontext.TextureUpdater); ok {
			if err := u.UpdateData(p.pix); err != nil {
				return fmt.Errorf("window: update texture: %w", err)
			}
			p.dirty = false
			p.uploads++
			return nil
		}
		p.releaseTexture()
	}

	creator := td.TextureCreator()
	if creator == nil {
		return errNoCreator
	}
	tex, err := creator.NewTextureFromRGBA(p.width, p.height, p.pix)
	if err != nil {
		return fmt.Errorf("window: create texture: %w", err)
	}
	p.tex = tex
	p.dirty = false
	p.uploads++
	return nil
}

func (p *presenter) releaseTexture() {
	if d, ok := p.tex.(interface{ Destroy() }); ok {
		d.Destroy()
	}
	p.tex = nil
}

// close marks the presenter closed. It reports whether this call closed it.
func (p *presenter) close() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	if p.mapped {
		p.mapped = false
		p.queue(surface.EventUnmap)
	}
	return true
}

// shutdown drops the texture. It runs on the window system's goroutine
// while the device is still alive.
func (p *presenter) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tex != nil {
		p.releaseTexture()
	}
}
