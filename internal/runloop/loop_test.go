package runloop

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/software"
	"github.com/gogpu/colorconvert/internal/yuv"
	"github.com/gogpu/colorconvert/surface"
)

// recordingRenderer records the calls a loop makes.
type recordingRenderer struct {
	opacities    []float32
	planeUploads int
	fullUploads  int
	regions      []overlay.Region
	draws        int

	drawErr    error
	opacityErr error
	frame      *image.RGBA
}

func newRecordingRenderer(w, h int) *recordingRenderer {
	return &recordingRenderer{frame: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (r *recordingRenderer) SetOpacity(v float32) error {
	if r.opacityErr != nil {
		return r.opacityErr
	}
	r.opacities = append(r.opacities, v)
	return nil
}

func (r *recordingRenderer) UploadPlanes(*yuv.PlaneBuffer) error { r.planeUploads++; return nil }
func (r *recordingRenderer) UploadOverlay(*overlay.Image) error  { r.fullUploads++; return nil }

func (r *recordingRenderer) UploadOverlayRegion(_ *overlay.Image, region overlay.Region) error {
	r.regions = append(r.regions, region)
	return nil
}

func (r *recordingRenderer) Draw() error {
	if r.drawErr != nil {
		return r.drawErr
	}
	r.draws++
	return nil
}

func (r *recordingRenderer) Frame() (*image.RGBA, error) { return r.frame, nil }

const testW, testH = 64, 32

func testOverlay(t *testing.T, w, h int) *overlay.Image {
	t.Helper()
	img, err := overlay.NewRGB(w, h, make([]byte, w*h*3))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func newTestLoop(t *testing.T, mode colorconvert.Mode, r Renderer, opts ...colorconvert.Option) (*Loop, *surface.Offscreen, *fakeClock) {
	t.Helper()
	surf, err := surface.NewOffscreen(surface.Options{Width: testW, Height: testH})
	if err != nil {
		t.Fatal(err)
	}
	clock := newFakeClock()
	cfg := colorconvert.NewConfig(append([]colorconvert.Option{colorconvert.WithMode(mode)}, opts...)...)
	l, err := New(cfg, Deps{
		Renderer: r,
		Surface:  surf,
		Planes:   yuv.Uniform(testW, testH, 128, 128, 128),
		Overlay:  testOverlay(t, 300, 200),
		Clock:    clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, surf, clock
}

func step(t *testing.T, l *Loop) bool {
	t.Helper()
	presented, err := l.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return presented
}

func TestLoopVisibility(t *testing.T) {
	r := newRecordingRenderer(testW, testH)
	l, surf, clock := newTestLoop(t, colorconvert.ModeFixedOverlay, r)

	if l.Visibility() != Hidden {
		t.Fatalf("initial visibility = %v", l.Visibility())
	}

	// The offscreen surface queued Map on creation.
	if !step(t, l) || l.Visibility() != Visible {
		t.Fatal("first step after Map did not present")
	}

	surf.Inject(surface.EventExpose)
	if !step(t, l) || l.Visibility() != Visible {
		t.Error("Expose changed visibility")
	}

	surf.Inject(surface.EventUnmap)
	before := len(clock.slept)
	if step(t, l) {
		t.Error("presented while hidden")
	}
	if len(clock.slept) != before+1 || clock.slept[before] != 16*time.Millisecond {
		t.Errorf("hidden step slept %v, want one 16ms interval", clock.slept[before:])
	}
	if step(t, l) {
		t.Error("presented while still hidden")
	}

	surf.Inject(surface.EventMap)
	if !step(t, l) {
		t.Error("Map did not resume presenting")
	}

	if r.draws != 3 || surf.Presented() != 3 || l.Frames() != 3 {
		t.Errorf("draws=%d presented=%d frames=%d, want 3", r.draws, surf.Presented(), l.Frames())
	}
}

func TestLoopOneEventPerStep(t *testing.T) {
	r := newRecordingRenderer(testW, testH)
	l, surf, _ := newTestLoop(t, colorconvert.ModeFixedOverlay, r)
	step(t, l) // Map

	surf.Inject(surface.EventUnmap)
	surf.Inject(surface.EventMap)

	// Unmap is handled alone, Map waits for the next iteration.
	if step(t, l) {
		t.Error("presented in the Unmap iteration")
	}
	if !step(t, l) {
		t.Error("Map iteration did not present")
	}
}

func TestLoopModes(t *testing.T) {
	tests := []struct {
		mode          colorconvert.Mode
		wantOpacities func(t *testing.T, got []float32)
		fullUploads   int
		regions       int
	}{
		{
			mode: colorconvert.ModePlain,
			wantOpacities: func(t *testing.T, got []float32) {
				if len(got) != 1 || got[0] != 0 {
					t.Errorf("opacities = %v, want [0]", got)
				}
			},
			fullUploads: 1,
		},
		{
			mode: colorconvert.ModeFixedOverlay,
			wantOpacities: func(t *testing.T, got []float32) {
				if len(got) != 1 || got[0] != 0.5 {
					t.Errorf("opacities = %v, want [0.5]", got)
				}
			},
			fullUploads: 4,
		},
		{
			mode: colorconvert.ModeAnimated,
			wantOpacities: func(t *testing.T, got []float32) {
				want := []float32{0.51, 0.52, 0.53, 0.54}
				if len(got) != len(want) {
					t.Fatalf("opacities = %v, want %v", got, want)
				}
				for i := range want {
					if d := got[i] - want[i]; d > 1e-6 || d < -1e-6 {
						t.Errorf("opacity %d = %v, want %v", i, got[i], want[i])
					}
				}
			},
			fullUploads: 4,
		},
		{
			mode: colorconvert.ModeAnimatedRegion,
			wantOpacities: func(t *testing.T, got []float32) {
				if len(got) != 4 {
					t.Errorf("opacities = %v, want 4 values", got)
				}
			},
			fullUploads: 1,
			regions:     4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			r := newRecordingRenderer(testW, testH)
			l, _, _ := newTestLoop(t, tt.mode, r)
			for range 4 {
				if !step(t, l) {
					t.Fatal("frame not presented")
				}
			}
			tt.wantOpacities(t, r.opacities)
			if r.planeUploads != 4 {
				t.Errorf("plane uploads = %d, want 4", r.planeUploads)
			}
			if r.fullUploads != tt.fullUploads {
				t.Errorf("full overlay uploads = %d, want %d", r.fullUploads, tt.fullUploads)
			}
			if len(r.regions) != tt.regions {
				t.Errorf("region uploads = %d, want %d", len(r.regions), tt.regions)
			}
			for _, region := range r.regions {
				if !region.In(300, 200) || region.W < overlay.MinRegionSide || region.H < overlay.MinRegionSide {
					t.Errorf("region %v outside 300x200 or too small", region)
				}
			}
		})
	}
}

func TestLoopRegionsFollowSeed(t *testing.T) {
	run := func(seed int64) []overlay.Region {
		r := newRecordingRenderer(testW, testH)
		l, _, _ := newTestLoop(t, colorconvert.ModeAnimatedRegion, r, colorconvert.WithSeed(seed))
		for range 5 {
			step(t, l)
		}
		return r.regions
	}
	a, b := run(7), run(7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("region %d differs for the same seed: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLoopPacesPresentedFrames(t *testing.T) {
	r := newRecordingRenderer(testW, testH)
	l, _, clock := newTestLoop(t, colorconvert.ModeFixedOverlay, r, colorconvert.WithFrameInterval(20*time.Millisecond))

	clock.advance(5 * time.Millisecond)
	step(t, l)
	if len(clock.slept) != 1 || clock.slept[0] != 15*time.Millisecond {
		t.Errorf("slept %v, want [15ms]", clock.slept)
	}
}

func TestLoopErrors(t *testing.T) {
	surf, _ := surface.NewOffscreen(surface.Options{Width: testW, Height: testH})
	planes := yuv.Uniform(testW, testH, 0, 0, 0)
	r := newRecordingRenderer(testW, testH)

	tests := []struct {
		name string
		cfg  colorconvert.Config
		deps Deps
		want error
	}{
		{"no renderer", colorconvert.DefaultConfig(), Deps{Surface: surf, Planes: planes}, colorconvert.ErrInvalidConfig},
		{"no surface", colorconvert.DefaultConfig(), Deps{Renderer: r, Planes: planes}, colorconvert.ErrInvalidConfig},
		{"no planes", colorconvert.DefaultConfig(), Deps{Renderer: r, Surface: surf}, colorconvert.ErrInvalidConfig},
		{
			"overlay missing",
			colorconvert.NewConfig(colorconvert.WithMode(colorconvert.ModeAnimated)),
			Deps{Renderer: r, Surface: surf, Planes: planes},
			colorconvert.ErrInvalidConfig,
		},
		{
			"overlay too small for regions",
			colorconvert.NewConfig(colorconvert.WithMode(colorconvert.ModeAnimatedRegion)),
			Deps{Renderer: r, Surface: surf, Planes: planes, Overlay: testOverlay(t, 50, 300)},
			colorconvert.ErrImageTooSmall,
		},
		{
			"bad config",
			colorconvert.NewConfig(colorconvert.WithReportEvery(0)),
			Deps{Renderer: r, Surface: surf, Planes: planes},
			colorconvert.ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.deps); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoopDrawFailureStopsRun(t *testing.T) {
	drawErr := errors.New("device lost")
	r := newRecordingRenderer(testW, testH)
	r.drawErr = drawErr
	l, _, _ := newTestLoop(t, colorconvert.ModeFixedOverlay, r)

	if err := l.Run(context.Background()); !errors.Is(err, drawErr) {
		t.Errorf("Run = %v, want draw error", err)
	}
}

func TestLoopMissingOpacityInputIsNotFatal(t *testing.T) {
	r := newRecordingRenderer(testW, testH)
	r.opacityErr = colorconvert.ErrUnknownParameter
	l, _, _ := newTestLoop(t, colorconvert.ModeAnimated, r)
	if !step(t, l) {
		t.Error("frame not presented without an opacity input")
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	r := newRecordingRenderer(testW, testH)
	l, _, _ := newTestLoop(t, colorconvert.ModeFixedOverlay, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
	if r.draws != 0 {
		t.Errorf("drew %d frames after cancel", r.draws)
	}
}

// TestUniformGrayEndToEnd runs the plain mode through the software renderer
// and the offscreen surface.
func TestUniformGrayEndToEnd(t *testing.T) {
	r, err := software.NewRenderer(testW, testH, 1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	l, surf, _ := newTestLoop(t, colorconvert.ModePlain, r)
	if !step(t, l) {
		t.Fatal("frame not presented")
	}

	snap := surf.Snapshot()
	if snap == nil {
		t.Fatal("nothing presented")
	}
	want := color.RGBA{R: 131, G: 130, B: 131, A: 255}
	for y := range testH {
		for x := range testW {
			if got := snap.RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestAnimatedOverlayEndToEnd(t *testing.T) {
	r, err := software.NewRenderer(testW, testH, 300, 200, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	l, surf, _ := newTestLoop(t, colorconvert.ModeAnimatedRegion, r)
	var last color.RGBA
	for i := range 3 {
		step(t, l)
		px := surf.Snapshot().RGBAAt(10, 10)
		// The overlay is black, so the frame darkens as opacity rises.
		if i > 0 && px.R >= last.R {
			t.Errorf("frame %d red = %d, not darker than %d", i, px.R, last.R)
		}
		last = px
	}
}
