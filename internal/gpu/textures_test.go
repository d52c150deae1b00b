package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/yuv"
)

func TestRoleBindings(t *testing.T) {
	tests := []struct {
		role    Role
		binding uint32
		param   string
	}{
		{RoleY, 0, ParamY},
		{RoleU, 1, ParamU},
		{RoleV, 2, ParamV},
		{RoleCanvas, 3, ParamCanvas},
	}
	for _, tt := range tests {
		if got := tt.role.Binding(); got != tt.binding {
			t.Errorf("%s.Binding() = %d, want %d", tt.role, got, tt.binding)
		}
		if got := tt.role.Param(); got != tt.param {
			t.Errorf("%s.Param() = %q, want %q", tt.role, got, tt.param)
		}
	}
}

func TestPlaneUploads(t *testing.T) {
	pb := yuv.Uniform(8, 4, 1, 2, 3)
	ups := planeUploads(pb)
	if len(ups) != 3 {
		t.Fatalf("got %d uploads, want 3", len(ups))
	}

	want := []struct {
		role Role
		w, h uint32
		fill byte
	}{
		{RoleY, 8, 4, 1},
		{RoleU, 4, 2, 2},
		{RoleV, 4, 2, 3},
	}
	for i, w := range want {
		u := ups[i]
		if u.role != w.role || u.size.Width != w.w || u.size.Height != w.h {
			t.Errorf("upload %d: role=%s size=%dx%d, want %s %dx%d", i, u.role, u.size.Width, u.size.Height, w.role, w.w, w.h)
		}
		if u.layout.BytesPerRow != w.w || u.layout.RowsPerImage != w.h || u.layout.Offset != 0 {
			t.Errorf("upload %d: layout %+v", i, u.layout)
		}
		if u.origin.X != 0 || u.origin.Y != 0 {
			t.Errorf("upload %d: origin %+v, want zero", i, u.origin)
		}
		if len(u.data) != int(w.w*w.h) || u.data[0] != w.fill {
			t.Errorf("upload %d: %d bytes starting %d", i, len(u.data), u.data[0])
		}
	}
}

func rampRGB(t *testing.T, w, h int) *overlay.Image {
	t.Helper()
	pix := make([]byte, w*h*3)
	for y := range h {
		for x := range w {
			i := (y*w + x) * 3
			pix[i] = byte(x)
			pix[i+1] = byte(y)
			pix[i+2] = 0x5A
		}
	}
	img, err := overlay.NewRGB(w, h, pix)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestOverlayFullUploadExpandsRGB(t *testing.T) {
	img := rampRGB(t, 30, 20)
	u := overlayFullUpload(img)
	if u.role != RoleCanvas || u.size.Width != 30 || u.size.Height != 20 {
		t.Fatalf("upload role=%s size=%dx%d", u.role, u.size.Width, u.size.Height)
	}
	if u.layout.BytesPerRow != 120 {
		t.Errorf("BytesPerRow = %d, want 120", u.layout.BytesPerRow)
	}
	if len(u.data) != 30*20*4 || u.data[3] != 0xFF {
		t.Errorf("data len=%d alpha=%d", len(u.data), u.data[3])
	}
}

func TestOverlayRegionUploadAddressesInPlace(t *testing.T) {
	img := rampRGB(t, 300, 200)
	r := overlay.Region{X: 10, Y: 20, W: 120, H: 110}
	u := overlayRegionUpload(img, r)

	if u.origin.X != 10 || u.origin.Y != 20 {
		t.Errorf("origin = %+v, want (10,20)", u.origin)
	}
	if u.size.Width != 120 || u.size.Height != 110 {
		t.Errorf("size = %dx%d, want 120x110", u.size.Width, u.size.Height)
	}
	if u.layout.BytesPerRow != 300*4 {
		t.Errorf("BytesPerRow = %d, want full stride %d", u.layout.BytesPerRow, 300*4)
	}
	if u.layout.RowsPerImage != 110 {
		t.Errorf("RowsPerImage = %d, want 110", u.layout.RowsPerImage)
	}
	wantOffset := uint64(20*300*4 + 10*4)
	if u.layout.Offset != wantOffset {
		t.Errorf("Offset = %d, want %d", u.layout.Offset, wantOffset)
	}
	if len(u.data) != 300*200*4 {
		t.Errorf("data is %d bytes, want the whole image", len(u.data))
	}
	// The first addressed texel is pixel (10,20) of the source.
	if px := u.data[u.layout.Offset:]; px[0] != 10 || px[1] != 20 || px[2] != 0x5A || px[3] != 0xFF {
		t.Errorf("first region texel = %v", px[:4])
	}

	// A following full upload starts from zero again.
	full := overlayFullUpload(img)
	if full.layout.Offset != 0 || full.origin.X != 0 || full.origin.Y != 0 {
		t.Errorf("full upload after region: offset=%d origin=%+v", full.layout.Offset, full.origin)
	}
}

func TestTextureSetLifecycle(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	p := scannedProgram(t, device, queue)

	ts := NewTextureSet(device, queue)
	if err := ts.Initialize(p, 64, 32, 300, 200); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer ts.Destroy()

	sizes := map[Role][2]uint32{
		RoleY:      {64, 32},
		RoleU:      {32, 16},
		RoleV:      {32, 16},
		RoleCanvas: {300, 200},
	}
	for role, want := range sizes {
		if ts.View(role) == nil {
			t.Errorf("%s view is nil", role)
		}
		if w, h := ts.Size(role); w != want[0] || h != want[1] {
			t.Errorf("%s size = %dx%d, want %dx%d", role, w, h, want[0], want[1])
		}
		if u, ok := p.Unit(role.Param()); !ok || u != role.Binding() {
			t.Errorf("%s not bound to unit %d", role, role.Binding())
		}
	}
	if ts.sampler(planeSamplerParam) == nil || ts.sampler(canvasSamplerParam) == nil {
		t.Error("samplers not created")
	}

	for range 3 {
		if err := ts.RefreshFull(yuv.Uniform(64, 32, 16, 128, 128)); err != nil {
			t.Fatalf("RefreshFull: %v", err)
		}
	}
	for _, role := range []Role{RoleY, RoleU, RoleV} {
		if n := ts.Uploads(role); n != 3 {
			t.Errorf("%s uploads = %d, want 3", role, n)
		}
	}

	img := rampRGB(t, 300, 200)
	if err := ts.RefreshOverlayFull(img); err != nil {
		t.Fatalf("RefreshOverlayFull: %v", err)
	}
	if err := ts.RefreshOverlayRegion(img, overlay.Region{X: 5, Y: 5, W: 100, H: 100}); err != nil {
		t.Fatalf("RefreshOverlayRegion: %v", err)
	}
	if n := ts.Uploads(RoleCanvas); n != 2 {
		t.Errorf("canvas uploads = %d, want 2", n)
	}

	err := ts.RefreshOverlayRegion(img, overlay.Region{X: 250, Y: 150, W: 100, H: 100})
	if !errors.Is(err, colorconvert.ErrDeviceResource) {
		t.Errorf("out-of-bounds region: err = %v, want ErrDeviceResource", err)
	}

	// An overlay larger than the slot is rejected rather than written.
	big := rampRGB(t, 400, 200)
	if err := ts.RefreshOverlayFull(big); !errors.Is(err, colorconvert.ErrDeviceResource) {
		t.Errorf("oversized overlay: err = %v, want ErrDeviceResource", err)
	}

	ts.Destroy()
	for role := RoleY; role < numRoles; role++ {
		if ts.View(role) != nil {
			t.Errorf("%s view survived Destroy", role)
		}
	}
	ts.Destroy()
}

func TestTextureSetWriteBeforeInitialize(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	ts := NewTextureSet(device, queue)
	err := ts.RefreshFull(yuv.Uniform(8, 4, 0, 0, 0))
	if !errors.Is(err, colorconvert.ErrDeviceResource) {
		t.Errorf("err = %v, want ErrDeviceResource", err)
	}
}

func TestTextureSetRejectsEmptyOverlay(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	p := scannedProgram(t, device, queue)

	ts := NewTextureSet(device, queue)
	if err := ts.Initialize(p, 64, 32, 0, 0); !errors.Is(err, colorconvert.ErrDeviceResource) {
		t.Errorf("err = %v, want ErrDeviceResource", err)
	}
	if ts.View(RoleY) != nil {
		t.Error("partial initialization not rolled back")
	}
}
