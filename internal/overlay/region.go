package overlay

import (
	"fmt"
	"image"
	"math/rand"

	"github.com/gogpu/colorconvert"
)

// Region sampling constants.
const (
	// MinRegionSide is the smallest width or height a sampled region has.
	MinRegionSide = 100

	// MinRegionImageSize is the smallest overlay side for which every
	// sampling range is non-empty.
	MinRegionImageSize = MinRegionSide + 2
)

// Region is a sub-rectangle of the overlay in pixels.
type Region struct {
	X, Y int
	W, H int
}

func (r Region) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// In reports whether r lies entirely inside a w x h image.
func (r Region) In(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 &&
		r.X+r.W <= w && r.Y+r.H <= h
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

// ValidateForRegions reports whether random region sampling is possible on
// img. It fails with ErrImageTooSmall (which also matches ErrImageLoad).
func (img *Image) ValidateForRegions() error {
	if img.width < MinRegionImageSize || img.height < MinRegionImageSize {
		return fmt.Errorf("%w: %w: %dx%d, need at least %dx%d",
			colorconvert.ErrImageLoad, colorconvert.ErrImageTooSmall,
			img.width, img.height, MinRegionImageSize, MinRegionImageSize)
	}
	return nil
}

// SampleRegion draws a random region from rng:
//
//	x in [0, w-101), y in [0, h-101)
//	width in [100, w-x-1), height in [100, h-y-1)
//
// so the region never touches the right or bottom edge. Images smaller than
// MinRegionImageSize yield the full image.
func (img *Image) SampleRegion(rng *rand.Rand) Region {
	if img.width < MinRegionImageSize || img.height < MinRegionImageSize {
		return Region{W: img.width, H: img.height}
	}
	x := rng.Intn(img.width - (MinRegionSide + 1))
	y := rng.Intn(img.height - (MinRegionSide + 1))
	w := MinRegionSide + rng.Intn(img.width-x-1-MinRegionSide)
	h := MinRegionSide + rng.Intn(img.height-y-1-MinRegionSide)
	return Region{X: x, Y: y, W: w, H: h}
}
