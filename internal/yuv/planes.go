// Package yuv holds the planar 4:2:0 frame and the reference color math
// shared by the GPU shader and the software renderer.
package yuv

import (
	"fmt"
	"io"
	"os"

	"github.com/gogpu/colorconvert"
)

// Plane identifies one of the three planes of a 4:2:0 frame.
type Plane int

const (
	PlaneY Plane = iota
	PlaneU
	PlaneV
)

// String returns the plane letter.
func (p Plane) String() string {
	switch p {
	case PlaneY:
		return "Y"
	case PlaneU:
		return "U"
	case PlaneV:
		return "V"
	default:
		return fmt.Sprintf("Plane(%d)", int(p))
	}
}

// Dims returns the width and height of plane p for a frame of the given
// luma size. Chroma planes are subsampled by two in both directions.
func (p Plane) Dims(width, height int) (int, int) {
	if p == PlaneY {
		return width, height
	}
	return width / 2, height / 2
}

// PlaneBuffer is one 4:2:0 frame held in memory. It is immutable after
// load and may be shared.
type PlaneBuffer struct {
	width  int
	height int
	planes [3][]byte
}

// Load reads exactly one frame of colorconvert.Width x colorconvert.Height
// from r: the Y plane, then U, then V. Bytes after the frame are not read.
func Load(r io.Reader) (*PlaneBuffer, error) {
	return LoadSize(r, colorconvert.Width, colorconvert.Height)
}

// LoadSize is Load for an arbitrary even frame size.
func LoadSize(r io.Reader, width, height int) (*PlaneBuffer, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", colorconvert.ErrIncompleteData, width, height)
	}
	pb := &PlaneBuffer{width: width, height: height}
	for p := PlaneY; p <= PlaneV; p++ {
		w, h := p.Dims(width, height)
		buf := make([]byte, w*h)
		n, err := io.ReadFull(r, buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %s plane: read %d of %d bytes: %v",
				colorconvert.ErrIncompleteData, p, n, len(buf), err)
		}
		pb.planes[p] = buf
	}
	return pb, nil
}

// LoadFile opens path and reads one frame from it.
func LoadFile(path string) (*PlaneBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", colorconvert.ErrIncompleteData, err)
	}
	defer f.Close()

	pb, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pb, nil
}

// NewPlaneBuffer wraps existing plane slices. The slices are not copied.
func NewPlaneBuffer(width, height int, y, u, v []byte) (*PlaneBuffer, error) {
	pb := &PlaneBuffer{width: width, height: height, planes: [3][]byte{y, u, v}}
	for p := PlaneY; p <= PlaneV; p++ {
		w, h := p.Dims(width, height)
		if got := len(pb.planes[p]); got != w*h {
			return nil, fmt.Errorf("%w: %s plane has %d bytes, want %d",
				colorconvert.ErrIncompleteData, p, got, w*h)
		}
	}
	return pb, nil
}

// Uniform returns a frame where every sample of each plane has the same value.
func Uniform(width, height int, y, u, v byte) *PlaneBuffer {
	pb := &PlaneBuffer{width: width, height: height}
	vals := [3]byte{y, u, v}
	for p := PlaneY; p <= PlaneV; p++ {
		w, h := p.Dims(width, height)
		buf := make([]byte, w*h)
		for i := range buf {
			buf[i] = vals[p]
		}
		pb.planes[p] = buf
	}
	return pb
}

// Width returns the luma width.
func (pb *PlaneBuffer) Width() int { return pb.width }

// Height returns the luma height.
func (pb *PlaneBuffer) Height() int { return pb.height }

// Y returns the luma plane.
func (pb *PlaneBuffer) Y() []byte { return pb.planes[PlaneY] }

// U returns the Cb plane.
func (pb *PlaneBuffer) U() []byte { return pb.planes[PlaneU] }

// V returns the Cr plane.
func (pb *PlaneBuffer) V() []byte { return pb.planes[PlaneV] }

// Plane returns the samples of plane p together with its dimensions.
func (pb *PlaneBuffer) Plane(p Plane) (data []byte, width, height int) {
	w, h := p.Dims(pb.width, pb.height)
	return pb.planes[p], w, h
}
