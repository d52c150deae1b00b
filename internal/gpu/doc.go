// Package gpu implements the YUV to RGB conversion pipeline on top of the
// gogpu HAL (github.com/gogpu/wgpu/hal).
//
// # Architecture
//
//	PlaneBuffer ─┐
//	             ├─> TextureSet (Y,U,V: R8Unorm; canvas: RGBA8Unorm)
//	Overlay ─────┘          │
//	                        v
//	Program (WGSL -> naga SPIR-V -> render pipeline, uniform block)
//	                        │
//	                        v
//	Compositor.Draw ──> RenderTarget (RGBA8Unorm) ──> readback *image.RGBA
//
// A single full-screen quad is drawn per frame. The fragment shader samples
// luma at the interpolated texture coordinate and both chroma planes at half
// of it, converts with fixed BT.601 style constants and mixes the canvas in
// at the bound opacity.
//
// # Devices
//
// [OpenDevice] opens a standalone Vulkan device. [DeviceFromProvider] wraps a
// device owned by a host framework; such a device is never destroyed here.
//
// # Testing
//
// All objects are exercised against the noop HAL backend
// (github.com/gogpu/wgpu/hal/noop), which accepts every call without a GPU.
package gpu
