package gpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/colorconvert"
)

// TargetFormat is the color format of the render target.
const TargetFormat = gputypes.TextureFormatRGBA8Unorm

// copyRowAlignment is the bytes-per-row alignment of texture to buffer copies.
const copyRowAlignment = 256

// RenderTarget is the offscreen color attachment the quad is drawn into,
// with a staging buffer for readback.
type RenderTarget struct {
	device hal.Device

	tex     hal.Texture
	view    hal.TextureView
	staging hal.Buffer

	width       uint32
	height      uint32
	bytesPerRow uint32

	// Recorded every frame; kept here so encoding does not allocate.
	toCopy   [1]hal.TextureBarrier
	toRender [1]hal.TextureBarrier
	region   [1]hal.BufferTextureCopy

	frame *image.RGBA
}

// NewRenderTarget allocates a width x height target.
func NewRenderTarget(device hal.Device, width, height int) (*RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: render target size %dx%d", colorconvert.ErrDeviceResource, width, height)
	}
	w, h := uint32(width), uint32(height) //nolint:gosec // checked positive
	t := &RenderTarget{
		device:      device,
		width:       w,
		height:      h,
		bytesPerRow: alignedBytesPerRow(w),
		frame:       image.NewRGBA(image.Rect(0, 0, width, height)),
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "yuv_target",
		Size:          hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create target texture: %v", colorconvert.ErrDeviceResource, err)
	}
	t.tex = tex

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "yuv_target_view",
		Format:        TargetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("%w: create target view: %v", colorconvert.ErrDeviceResource, err)
	}
	t.view = view

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv_target_staging",
		Size:  uint64(t.bytesPerRow) * uint64(t.height),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("%w: create staging buffer: %v", colorconvert.ErrDeviceResource, err)
	}
	t.staging = staging

	t.toCopy[0] = hal.TextureBarrier{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}
	t.toRender[0] = hal.TextureBarrier{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}
	t.region[0] = hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: t.bytesPerRow, RowsPerImage: t.height},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}
	return t, nil
}

// alignedBytesPerRow rounds a row of RGBA8 pixels up to the copy alignment.
func alignedBytesPerRow(width uint32) uint32 {
	return (width*4 + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
}

// encodeReadback records the copy of the target into the staging buffer
// and returns the target to attachment usage. Called after the render pass
// has ended.
func (t *RenderTarget) encodeReadback(encoder hal.CommandEncoder) {
	encoder.TransitionTextures(t.toCopy[:])
	encoder.CopyTextureToBuffer(t.tex, t.staging, t.region[:])
	encoder.TransitionTextures(t.toRender[:])
}

// readback maps the staging buffer and unpacks it into the frame image.
// The submission that filled the staging buffer must have completed.
func (t *RenderTarget) readback() error {
	size := uint64(t.bytesPerRow) * uint64(t.height)
	m, err := t.device.MapBuffer(t.staging, 0, size)
	if err != nil {
		return fmt.Errorf("%w: map staging buffer: %v", colorconvert.ErrDeviceResource, err)
	}
	raw := unsafe.Slice((*byte)(m.Ptr), size)
	unpackRows(t.frame.Pix, t.frame.Stride, raw, int(t.bytesPerRow), int(t.width)*4, int(t.height))
	if err := t.device.UnmapBuffer(t.staging); err != nil {
		return fmt.Errorf("%w: unmap staging buffer: %v", colorconvert.ErrDeviceResource, err)
	}
	return nil
}

// unpackRows copies rowBytes of each of rows rows from src (stride srcStride)
// into dst (stride dstStride).
func unpackRows(dst []byte, dstStride int, src []byte, srcStride, rowBytes, rows int) {
	for y := range rows {
		copy(dst[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
}

// Frame returns the image filled by the last readback. The same image is
// reused for every frame.
func (t *RenderTarget) Frame() *image.RGBA { return t.frame }

func (t *RenderTarget) View() hal.TextureView { return t.view }

func (t *RenderTarget) Size() (uint32, uint32) { return t.width, t.height }

// Destroy releases the target. Safe to call more than once.
func (t *RenderTarget) Destroy() {
	if t.staging != nil {
		t.device.DestroyBuffer(t.staging)
		t.staging = nil
	}
	if t.view != nil {
		t.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}
