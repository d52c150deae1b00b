// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"image"

	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/yuv"
)

// errNotDrawn is returned by Frame before the first Draw.
var errNotDrawn = errors.New("gpu: no frame drawn yet")

// Renderer drives the whole GPU pipeline for one surface size: program,
// texture set, compositor and render target.
type Renderer struct {
	device *Device

	program    *Program
	textures   *TextureSet
	target     *RenderTarget
	compositor *Compositor

	drawn bool
}

// NewRenderer compiles the conversion program and allocates everything
// needed to draw width x height frames with an overlay of the given size.
// The device stays owned by the caller.
func NewRenderer(device *Device, width, height, overlayW, overlayH int) (*Renderer, error) {
	d, q := device.HAL()
	r := &Renderer{device: device}

	program, err := CompileProgram(d, q, ConvertShaderSource, TargetFormat)
	if err != nil {
		return nil, err
	}
	r.program = program

	r.textures = NewTextureSet(d, q)
	if err := r.textures.Initialize(program, width, height, overlayW, overlayH); err != nil {
		r.Close()
		return nil, err
	}

	r.target, err = NewRenderTarget(d, width, height)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.compositor, err = NewCompositor(d, q, program, r.textures, width, height)
	if err != nil {
		r.Close()
		return nil, err
	}

	slogger().Info("gpu: renderer ready",
		"width", width, "height", height, "overlay_width", overlayW, "overlay_height", overlayH)
	return r, nil
}

// SetOpacity binds the overlay blend weight.
func (r *Renderer) SetOpacity(opacity float32) error {
	return r.program.BindScalar(ParamOpacity, opacity)
}

// UploadPlanes replaces the Y, U and V slots.
func (r *Renderer) UploadPlanes(pb *yuv.PlaneBuffer) error {
	return r.textures.RefreshFull(pb)
}

// UploadOverlay replaces the canvas slot.
func (r *Renderer) UploadOverlay(img *overlay.Image) error {
	return r.textures.RefreshOverlayFull(img)
}

// UploadOverlayRegion replaces region of the canvas slot.
func (r *Renderer) UploadOverlayRegion(img *overlay.Image, region overlay.Region) error {
	return r.textures.RefreshOverlayRegion(img, region)
}

// Draw renders one frame into the render target.
func (r *Renderer) Draw() error {
	if err := r.compositor.Draw(r.target); err != nil {
		return err
	}
	r.drawn = true
	return nil
}

// Frame returns the last drawn frame.
func (r *Renderer) Frame() (*image.RGBA, error) {
	if !r.drawn {
		return nil, errNotDrawn
	}
	return r.target.Frame(), nil
}

// Program returns the conversion program.
func (r *Renderer) Program() *Program { return r.program }

// Textures returns the texture set.
func (r *Renderer) Textures() *TextureSet { return r.textures }

// Close releases every GPU object in reverse creation order. The device
// itself is left open.
func (r *Renderer) Close() error {
	if r.compositor != nil {
		r.compositor.Destroy()
		r.compositor = nil
	}
	if r.target != nil {
		r.target.Destroy()
		r.target = nil
	}
	if r.textures != nil {
		r.textures.Destroy()
		r.textures = nil
	}
	if r.program != nil {
		r.program.Destroy()
		r.program = nil
	}
	return nil
}
