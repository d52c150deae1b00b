package yuv

import "math"

// SampleLinear samples an 8-bit single channel plane at normalized
// coordinates (s, t) with bilinear filtering and clamp-to-edge addressing,
// matching a linear sampler over an R8Unorm texture. Texel centers sit at
// (i+0.5)/w.
func SampleLinear(plane []byte, w, h int, s, t float64) float64 {
	x := s*float64(w) - 0.5
	y := t*float64(h) - 0.5

	x0 := math.Floor(x)
	y0 := math.Floor(y)
	fx := x - x0
	fy := y - y0

	ix0 := clampInt(int(x0), 0, w-1)
	ix1 := clampInt(int(x0)+1, 0, w-1)
	iy0 := clampInt(int(y0), 0, h-1)
	iy1 := clampInt(int(y0)+1, 0, h-1)

	p00 := float64(plane[iy0*w+ix0])
	p10 := float64(plane[iy0*w+ix1])
	p01 := float64(plane[iy1*w+ix0])
	p11 := float64(plane[iy1*w+ix1])

	top := p00 + (p10-p00)*fx
	bot := p01 + (p11-p01)*fx
	return (top + (bot-top)*fy) / 255
}

// SampleFrame converts the frame at normalized output coordinate (s, t).
// Luma is sampled at (s, t); both chroma planes at (s*0.5, t*0.5).
func SampleFrame(pb *PlaneBuffer, s, t float64) RGB {
	yd, yw, yh := pb.Plane(PlaneY)
	ud, uw, uh := pb.Plane(PlaneU)
	vd, vw, vh := pb.Plane(PlaneV)

	cs, ct := s*0.5, t*0.5
	return Convert(
		SampleLinear(yd, yw, yh, s, t),
		SampleLinear(ud, uw, uh, cs, ct),
		SampleLinear(vd, vw, vh, cs, ct),
	)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
