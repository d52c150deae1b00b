// Package colorconvert renders a planar YUV 4:2:0 frame by converting it to
// RGB on the GPU and optionally blending an RGB(A) overlay on top.
//
// # Overview
//
// A single 1280x720 frame is read once from a raw file (Y, U and V planes
// concatenated, no header) and redrawn every frame through a WGSL conversion
// program. Four compositing variants are available (see [Mode]):
//
//   - plain: conversion only
//   - fixed: overlay blended at opacity 0.5
//   - animated: overlay opacity bouncing between 0 and 1
//   - region: animated, with the overlay refreshed through a random sub-rectangle
//
// # Conversion
//
// Narrow-range BT.601 style:
//
//	y' = 1.1643 * (Y - 0.0625)
//	u' = U - 0.5
//	v' = V - 0.5
//	R = y' + 1.5958*v'
//	G = y' - 0.39173*u' - 0.81290*v'
//	B = y' + 2.017*u'
//
// followed by result = base*(1-opacity) + overlay*opacity.
//
// # Packages
//
//   - internal/yuv: plane loading and the reference conversion math
//   - internal/overlay: overlay decoding and region sampling
//   - internal/gpu: conversion program, textures and compositor on gogpu/wgpu
//   - internal/software: CPU renderer used when no GPU is available
//   - internal/runloop: animator, frame pacer and the visibility state machine
//   - surface: output surface abstraction and registry
//
// # Logging
//
// Nothing is logged by default. Call [SetLogger] to enable log/slog output.
package colorconvert
