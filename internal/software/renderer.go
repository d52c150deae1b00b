// Package software converts and composites frames on the CPU.
//
// Renderer produces the same pixels as the GPU pipeline within rounding:
// luma and chroma are sampled bilinearly with clamp-to-edge addressing, the
// overlay bilinearly with repeat addressing, and the result is stored as
// UNORM8. It is used when no Vulkan device is available and as the
// reference in tests.
package software

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/yuv"
)

// bandRows is the number of output rows converted per task.
const bandRows = 32

var errNotDrawn = errors.New("software: no frame drawn yet")

// Renderer is a CPU implementation of the frame pipeline.
type Renderer struct {
	width, height int

	planes *yuv.PlaneBuffer

	// canvas mirrors the overlay slot: RGBA rows of cw x ch pixels.
	canvas []byte
	cw, ch int

	opacity float64
	frame   *image.RGBA
	drawn   bool

	pool *bandPool
}

// NewRenderer allocates a renderer for width x height frames with an
// overlay slot of overlayW x overlayH. workers is the number of conversion
// goroutines; zero means GOMAXPROCS.
func NewRenderer(width, height, overlayW, overlayH, workers int) (*Renderer, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", colorconvert.ErrInvalidConfig, width, height)
	}
	if overlayW <= 0 || overlayH <= 0 {
		return nil, fmt.Errorf("%w: overlay slot has size %dx%d", colorconvert.ErrDeviceResource, overlayW, overlayH)
	}
	r := &Renderer{
		width:  width,
		height: height,
		canvas: make([]byte, overlayW*overlayH*4),
		cw:     overlayW,
		ch:     overlayH,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
		pool:   newBandPool(workers),
	}
	colorconvert.Logger().Info("software: renderer ready",
		"width", width, "height", height, "overlay_width", overlayW, "overlay_height", overlayH,
		"workers", r.pool.workers)
	return r, nil
}

// SetOpacity sets the overlay blend weight.
func (r *Renderer) SetOpacity(opacity float32) error {
	r.opacity = float64(opacity)
	return nil
}

// UploadPlanes replaces the Y, U and V planes. pb must match the frame size.
func (r *Renderer) UploadPlanes(pb *yuv.PlaneBuffer) error {
	if pb.Width() != r.width || pb.Height() != r.height {
		return fmt.Errorf("%w: planes are %dx%d, renderer is %dx%d",
			colorconvert.ErrDeviceResource, pb.Width(), pb.Height(), r.width, r.height)
	}
	r.planes = pb
	return nil
}

// UploadOverlay replaces the whole overlay slot.
func (r *Renderer) UploadOverlay(img *overlay.Image) error {
	return r.copyIn(img, overlay.Region{W: img.Width(), H: img.Height()})
}

// UploadOverlayRegion replaces region of the overlay slot, leaving the rest
// of the slot as it was.
func (r *Renderer) UploadOverlayRegion(img *overlay.Image, region overlay.Region) error {
	if !region.In(img.Width(), img.Height()) {
		return fmt.Errorf("%w: region %v outside %dx%d overlay",
			colorconvert.ErrDeviceResource, region, img.Width(), img.Height())
	}
	return r.copyIn(img, region)
}

func (r *Renderer) copyIn(img *overlay.Image, region overlay.Region) error {
	if region.X+region.W > r.cw || region.Y+region.H > r.ch {
		return fmt.Errorf("%w: overlay upload %v exceeds %dx%d slot",
			colorconvert.ErrDeviceResource, region, r.cw, r.ch)
	}
	src := img.RGBA()
	srcStride := img.Width() * 4
	dstStride := r.cw * 4
	n := region.W * 4
	for y := region.Y; y < region.Y+region.H; y++ {
		s := y*srcStride + region.X*4
		d := y*dstStride + region.X*4
		copy(r.canvas[d:d+n], src[s:s+n])
	}
	return nil
}

// Draw converts the current planes and composites the overlay into the
// frame image.
func (r *Renderer) Draw() error {
	if r.planes == nil {
		return fmt.Errorf("%w: no planes uploaded", colorconvert.ErrDeviceResource)
	}
	r.pool.forEachBand(r.height, bandRows, r.drawRows)
	r.drawn = true
	return nil
}

func (r *Renderer) drawRows(y0, y1 int) {
	fw, fh := float64(r.width), float64(r.height)
	for y := y0; y < y1; y++ {
		t := (float64(y) + 0.5) / fh
		row := r.frame.Pix[y*r.frame.Stride:]
		for x := range r.width {
			s := (float64(x) + 0.5) / fw
			c := yuv.SampleFrame(r.planes, s, t)
			if r.opacity != 0 {
				c = yuv.Blend(c, r.sampleCanvas(s, t), r.opacity)
			}
			i := x * 4
			row[i], row[i+1], row[i+2] = c.Bytes()
			row[i+3] = 0xFF
		}
	}
}

// sampleCanvas samples the overlay slot bilinearly with repeat addressing.
// Alpha is ignored.
func (r *Renderer) sampleCanvas(s, t float64) yuv.RGB {
	x := s*float64(r.cw) - 0.5
	y := t*float64(r.ch) - 0.5
	x0f, y0f := math.Floor(x), math.Floor(y)
	fx, fy := x-x0f, y-y0f

	x0, x1 := wrap(int(x0f), r.cw), wrap(int(x0f)+1, r.cw)
	y0, y1 := wrap(int(y0f), r.ch), wrap(int(y0f)+1, r.ch)

	var out [3]float64
	for ch := range 3 {
		p00 := float64(r.canvas[(y0*r.cw+x0)*4+ch])
		p10 := float64(r.canvas[(y0*r.cw+x1)*4+ch])
		p01 := float64(r.canvas[(y1*r.cw+x0)*4+ch])
		p11 := float64(r.canvas[(y1*r.cw+x1)*4+ch])
		top := p00 + (p10-p00)*fx
		bot := p01 + (p11-p01)*fx
		out[ch] = (top + (bot-top)*fy) / 255
	}
	return yuv.RGB{R: out[0], G: out[1], B: out[2]}
}

// wrap maps i into [0, n) with repeat addressing.
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Frame returns the last drawn frame. The same image is reused.
func (r *Renderer) Frame() (*image.RGBA, error) {
	if !r.drawn {
		return nil, errNotDrawn
	}
	return r.frame, nil
}

// Close stops the conversion goroutines.
func (r *Renderer) Close() error {
	r.pool.close()
	return nil
}
