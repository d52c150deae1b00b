// Package overlay loads the raster composited on top of the converted frame
// and picks the random sub-regions used for partial uploads.
package overlay

import (
	"fmt"
	"image"
	"os"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/colorconvert"
)

// Image is a decoded overlay with packed rows: 4 bytes per pixel when the
// source carries alpha, 3 otherwise. Rows are tightly packed, top row first.
type Image struct {
	width    int
	height   int
	hasAlpha bool
	pix      []byte

	// rgba is the 4-byte expansion used for uploads, built on first use.
	rgba []byte
}

// Load decodes the overlay at path. PNG, JPEG, BMP, TIFF and WebP are
// accepted.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", colorconvert.ErrImageLoad, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", colorconvert.ErrImageLoad, path, err)
	}
	img, err := FromImage(src)
	if err != nil {
		return nil, err
	}
	logger().Debug("overlay: loaded",
		"path", path, "format", format,
		"width", img.width, "height", img.height, "alpha", img.hasAlpha)
	return img, nil
}

// FromImage packs an in-memory image. Images reporting Opaque() are stored
// as RGB, everything else as straight (non-premultiplied) RGBA.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", colorconvert.ErrImageLoad)
	}

	nrgba, ok := src.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*b.Dx() {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(nrgba, nrgba.Bounds(), src, b.Min, xdraw.Src)
	}

	img := &Image{width: b.Dx(), height: b.Dy(), hasAlpha: !isOpaque(src)}
	if img.hasAlpha {
		img.pix = nrgba.Pix
		img.rgba = nrgba.Pix
		return img, nil
	}

	img.pix = make([]byte, img.width*img.height*3)
	for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
		copy(img.pix[j:j+3], nrgba.Pix[i:i+3])
	}
	return img, nil
}

// NewRGB wraps tightly packed 3-byte rows.
func NewRGB(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*3 {
		return nil, fmt.Errorf("%w: RGB buffer of %d bytes for %dx%d", colorconvert.ErrImageLoad, len(pix), width, height)
	}
	return &Image{width: width, height: height, pix: pix}, nil
}

// NewRGBA wraps tightly packed 4-byte rows.
func NewRGBA(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: RGBA buffer of %d bytes for %dx%d", colorconvert.ErrImageLoad, len(pix), width, height)
	}
	return &Image{width: width, height: height, hasAlpha: true, pix: pix, rgba: pix}, nil
}

// Transparent returns a 1x1 fully transparent image. It stands in for the
// overlay when nothing is composited.
func Transparent() *Image {
	pix := make([]byte, 4)
	return &Image{width: 1, height: 1, hasAlpha: true, pix: pix, rgba: pix}
}

func (img *Image) Width() int { return img.width }

func (img *Image) Height() int { return img.height }

// HasAlpha reports whether rows carry an alpha channel.
func (img *Image) HasAlpha() bool { return img.hasAlpha }

// Opaque reports whether the image has no alpha channel.
func (img *Image) Opaque() bool { return !img.hasAlpha }

// BytesPerPixel is 4 with alpha, 3 without.
func (img *Image) BytesPerPixel() int {
	if img.hasAlpha {
		return 4
	}
	return 3
}

// Stride returns the packed row length in bytes.
func (img *Image) Stride() int { return img.width * img.BytesPerPixel() }

// Pix returns the packed rows.
func (img *Image) Pix() []byte { return img.pix }

// RGBA returns the rows expanded to 4 bytes per pixel, alpha 255 for RGB
// sources. The expansion is computed once and cached.
func (img *Image) RGBA() []byte {
	if img.rgba != nil {
		return img.rgba
	}
	out := make([]byte, img.width*img.height*4)
	for i, j := 0, 0; i < len(img.pix); i, j = i+3, j+4 {
		out[j] = img.pix[i]
		out[j+1] = img.pix[i+1]
		out[j+2] = img.pix[i+2]
		out[j+3] = 0xFF
	}
	img.rgba = out
	return out
}

// At returns the RGB channels at (x, y) normalized to [0, 1].
func (img *Image) At(x, y int) (r, g, b float64) {
	bpp := img.BytesPerPixel()
	i := y*img.Stride() + x*bpp
	return float64(img.pix[i]) / 255, float64(img.pix[i+1]) / 255, float64(img.pix[i+2]) / 255
}

// isOpaque reports whether src is known to have no transparency.
func isOpaque(src image.Image) bool {
	if o, ok := src.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
