package yuv

// Conversion constants. The WGSL program in internal/gpu/shaders uses the
// same literals; keep both in sync.
const (
	LumaOffset = 0.0625
	LumaScale  = 1.1643
	ChromaBias = 0.5

	CrToR = 1.5958
	CbToG = 0.39173
	CrToG = 0.81290
	CbToB = 2.017
)

// RGB is a linear color triple in [0, 1] before clamping.
type RGB struct {
	R, G, B float64
}

// Convert maps normalized Y, U, V samples to RGB. The result is not clamped;
// out-of-range channels are saturated when stored to an 8-bit target.
func Convert(y, u, v float64) RGB {
	yp := LumaScale * (y - LumaOffset)
	up := u - ChromaBias
	vp := v - ChromaBias
	return RGB{
		R: yp + CrToR*vp,
		G: yp - CbToG*up - CrToG*vp,
		B: yp + CbToB*up,
	}
}

// Blend returns base*(1-opacity) + overlay*opacity per channel.
func Blend(base, overlay RGB, opacity float64) RGB {
	k := 1 - opacity
	return RGB{
		R: base.R*k + overlay.R*opacity,
		G: base.G*k + overlay.G*opacity,
		B: base.B*k + overlay.B*opacity,
	}
}

// Unorm8 converts a normalized channel to a byte the way a UNORM render
// target stores it: clamp to [0, 1], scale and round to nearest.
func Unorm8(c float64) uint8 {
	switch {
	case c <= 0:
		return 0
	case c >= 1:
		return 255
	}
	return uint8(c*255 + 0.5)
}

func (c RGB) Bytes() (r, g, b uint8) {
	return Unorm8(c.R), Unorm8(c.G), Unorm8(c.B)
}
