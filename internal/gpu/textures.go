package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/yuv"
)

// Role names one of the four image slots.
type Role int

const (
	RoleY Role = iota
	RoleU
	RoleV
	RoleCanvas

	numRoles
)

// Binding returns the fixed unit of the role.
func (r Role) Binding() uint32 { return uint32(r) }

// Param returns the program input the role feeds.
func (r Role) Param() string {
	switch r {
	case RoleY:
		return ParamY
	case RoleU:
		return ParamU
	case RoleV:
		return ParamV
	case RoleCanvas:
		return ParamCanvas
	}
	return ""
}

func (r Role) String() string {
	switch r {
	case RoleY:
		return "Y"
	case RoleU:
		return "U"
	case RoleV:
		return "V"
	case RoleCanvas:
		return "canvas"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// plane maps a luma/chroma role to its plane; ok is false for the canvas.
func (r Role) plane() (yuv.Plane, bool) {
	switch r {
	case RoleY:
		return yuv.PlaneY, true
	case RoleU:
		return yuv.PlaneU, true
	case RoleV:
		return yuv.PlaneV, true
	}
	return 0, false
}

// Sampler input names declared by the conversion program.
const (
	planeSamplerParam  = "plane_sampler"
	canvasSamplerParam = "canvas_sampler"
)

// upload is one queue.WriteTexture call, planned without touching the
// device so the addressing can be checked in isolation.
type upload struct {
	role   Role
	origin hal.Origin3D
	layout hal.ImageDataLayout
	size   hal.Extent3D
	data   []byte
}

// planeUploads plans full replacement of the Y, U and V slots.
func planeUploads(pb *yuv.PlaneBuffer) []upload {
	ups := make([]upload, 0, 3)
	for _, role := range []Role{RoleY, RoleU, RoleV} {
		p, _ := role.plane()
		data, w, h := pb.Plane(p)
		ups = append(ups, upload{
			role:   role,
			layout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w), RowsPerImage: uint32(h)}, //nolint:gosec // plane sizes fit uint32
			size:   hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},         //nolint:gosec // plane sizes fit uint32
			data:   data,
		})
	}
	return ups
}

// overlayFullUpload plans replacement of the whole canvas slot. RGB sources
// are sent through their RGBA expansion.
func overlayFullUpload(img *overlay.Image) upload {
	w, h := uint32(img.Width()), uint32(img.Height()) //nolint:gosec // image sizes fit uint32
	return upload{
		role:   RoleCanvas,
		layout: hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		size:   hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		data:   img.RGBA(),
	}
}

// overlayRegionUpload plans a write of r only. The source rows keep the
// full image stride and the layout offset points at the first byte of the
// region, so nothing is copied on the CPU. The layout is per call and
// does not affect later uploads.
func overlayRegionUpload(img *overlay.Image, r overlay.Region) upload {
	stride := img.Width() * 4
	offset := r.Y*stride + r.X*4
	return upload{
		role:   RoleCanvas,
		origin: hal.Origin3D{X: uint32(r.X), Y: uint32(r.Y), Z: 0}, //nolint:gosec // region inside image
		layout: hal.ImageDataLayout{
			Offset:       uint64(offset), //nolint:gosec // offset inside image
			BytesPerRow:  uint32(stride), //nolint:gosec // stride fits uint32
			RowsPerImage: uint32(r.H),    //nolint:gosec // region inside image
		},
		size: hal.Extent3D{Width: uint32(r.W), Height: uint32(r.H), DepthOrArrayLayers: 1}, //nolint:gosec // region inside image
		data: img.RGBA(),
	}
}

// TextureSet owns the four image slots and their samplers.
type TextureSet struct {
	device hal.Device
	queue  hal.Queue

	textures [numRoles]hal.Texture
	views    [numRoles]hal.TextureView
	sizes    [numRoles]hal.Extent3D

	planeSampler  hal.Sampler
	canvasSampler hal.Sampler

	// uploads counts WriteTexture calls per role.
	uploads [numRoles]int
}

// NewTextureSet returns an empty set. Nothing is allocated until Initialize.
func NewTextureSet(device hal.Device, queue hal.Queue) *TextureSet {
	return &TextureSet{device: device, queue: queue}
}

// Initialize allocates storage for every slot at its native size, creates
// the linear samplers and binds each slot's unit to its program input.
// Luma and chroma sizes come from the frame geometry; the canvas takes the
// overlay size.
func (ts *TextureSet) Initialize(program *Program, frameW, frameH, overlayW, overlayH int) error {
	dims := [numRoles][2]int{
		RoleY:      {frameW, frameH},
		RoleU:      {frameW / 2, frameH / 2},
		RoleV:      {frameW / 2, frameH / 2},
		RoleCanvas: {overlayW, overlayH},
	}
	for role := RoleY; role < numRoles; role++ {
		format := gputypes.TextureFormatR8Unorm
		if role == RoleCanvas {
			format = gputypes.TextureFormatRGBA8Unorm
		}
		if err := ts.createSlot(role, dims[role][0], dims[role][1], format); err != nil {
			ts.Destroy()
			return err
		}
	}

	var err error
	ts.planeSampler, err = ts.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "yuv_plane_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		ts.Destroy()
		return fmt.Errorf("%w: create plane sampler: %v", colorconvert.ErrDeviceResource, err)
	}
	ts.canvasSampler, err = ts.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "yuv_canvas_sampler",
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		ts.Destroy()
		return fmt.Errorf("%w: create canvas sampler: %v", colorconvert.ErrDeviceResource, err)
	}

	for role := RoleY; role < numRoles; role++ {
		if err := program.BindSampler(role.Param(), role.Binding()); err != nil {
			ts.Destroy()
			return fmt.Errorf("bind %s slot: %w", role, err)
		}
	}
	return nil
}

func (ts *TextureSet) createSlot(role Role, w, h int, format gputypes.TextureFormat) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s slot has size %dx%d", colorconvert.ErrDeviceResource, role, w, h)
	}
	size := hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1} //nolint:gosec // checked positive
	tex, err := ts.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "yuv_" + role.String(),
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: create %s texture: %v", colorconvert.ErrDeviceResource, role, err)
	}
	ts.textures[role] = tex

	view, err := ts.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "yuv_" + role.String() + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: create %s view: %v", colorconvert.ErrDeviceResource, role, err)
	}
	ts.views[role] = view
	ts.sizes[role] = size

	slogger().Debug("gpu: texture slot created", "role", role, "width", w, "height", h, "unit", role.Binding())
	return nil
}

// RefreshFull replaces the Y, U and V slots from pb.
func (ts *TextureSet) RefreshFull(pb *yuv.PlaneBuffer) error {
	for _, u := range planeUploads(pb) {
		if err := ts.write(u); err != nil {
			return err
		}
	}
	return nil
}

// RefreshOverlayFull replaces the whole canvas slot.
func (ts *TextureSet) RefreshOverlayFull(img *overlay.Image) error {
	return ts.write(overlayFullUpload(img))
}

// RefreshOverlayRegion writes only r of img into the canvas slot, at the
// same position.
func (ts *TextureSet) RefreshOverlayRegion(img *overlay.Image, r overlay.Region) error {
	if !r.In(img.Width(), img.Height()) {
		return fmt.Errorf("%w: region %v outside %dx%d overlay",
			colorconvert.ErrDeviceResource, r, img.Width(), img.Height())
	}
	return ts.write(overlayRegionUpload(img, r))
}

func (ts *TextureSet) write(u upload) error {
	tex := ts.textures[u.role]
	if tex == nil {
		return fmt.Errorf("%w: %s slot not initialized", colorconvert.ErrDeviceResource, u.role)
	}
	slot := ts.sizes[u.role]
	if u.origin.X+u.size.Width > slot.Width || u.origin.Y+u.size.Height > slot.Height {
		return fmt.Errorf("%w: %s upload %dx%d at (%d,%d) exceeds %dx%d slot",
			colorconvert.ErrDeviceResource, u.role,
			u.size.Width, u.size.Height, u.origin.X, u.origin.Y, slot.Width, slot.Height)
	}

	err := ts.queue.WriteTexture(&hal.ImageCopyTexture{
		Texture:  tex,
		MipLevel: 0,
		Origin:   u.origin,
		Aspect:   gputypes.TextureAspectAll,
	}, u.data, &u.layout, &u.size)
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", colorconvert.ErrDeviceResource, u.role, err)
	}
	ts.uploads[u.role]++
	return nil
}

// View returns the texture view of a slot.
func (ts *TextureSet) View(role Role) hal.TextureView { return ts.views[role] }

// Size returns the allocated size of a slot.
func (ts *TextureSet) Size(role Role) (w, h uint32) {
	return ts.sizes[role].Width, ts.sizes[role].Height
}

// Uploads returns how many writes the slot has received.
func (ts *TextureSet) Uploads(role Role) int { return ts.uploads[role] }

// sampler returns the sampler declared under name.
func (ts *TextureSet) sampler(name string) hal.Sampler {
	switch name {
	case planeSamplerParam:
		return ts.planeSampler
	case canvasSamplerParam:
		return ts.canvasSampler
	}
	return nil
}

// Destroy releases all slots and samplers in reverse creation order.
func (ts *TextureSet) Destroy() {
	if ts.canvasSampler != nil {
		ts.device.DestroySampler(ts.canvasSampler)
		ts.canvasSampler = nil
	}
	if ts.planeSampler != nil {
		ts.device.DestroySampler(ts.planeSampler)
		ts.planeSampler = nil
	}
	for role := numRoles - 1; role >= RoleY; role-- {
		if ts.views[role] != nil {
			ts.device.DestroyTextureView(ts.views[role])
			ts.views[role] = nil
		}
		if ts.textures[role] != nil {
			ts.device.DestroyTexture(ts.textures[role])
			ts.textures[role] = nil
		}
		ts.sizes[role] = hal.Extent3D{}
	}
}
