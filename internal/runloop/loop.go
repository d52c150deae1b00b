package runloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/yuv"
	"github.com/gogpu/colorconvert/surface"
)

// Renderer converts and composites one frame at a time. Both the GPU and
// the software renderer implement it.
type Renderer interface {
	SetOpacity(opacity float32) error
	UploadPlanes(pb *yuv.PlaneBuffer) error
	UploadOverlay(img *overlay.Image) error
	UploadOverlayRegion(img *overlay.Image, r overlay.Region) error
	Draw() error
	Frame() (*image.RGBA, error)
}

// Visibility is the surface state the loop tracks.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

func (v Visibility) String() string {
	if v == Visible {
		return "Visible"
	}
	return "Hidden"
}

// Deps are the collaborators of a Loop.
type Deps struct {
	Renderer Renderer
	Surface  surface.Surface
	Planes   *yuv.PlaneBuffer

	// Overlay is required by every mode except ModePlain.
	Overlay *overlay.Image

	// Clock defaults to SystemClock.
	Clock Clock

	// Report receives one line per framerate report. Optional.
	Report io.Writer
}

// Loop is the frame loop. It is not safe for concurrent use.
type Loop struct {
	cfg colorconvert.Config

	renderer Renderer
	surf     surface.Surface
	planes   *yuv.PlaneBuffer
	overlay  *overlay.Image

	clock    Clock
	anim     *Animator
	pacer    *Pacer
	reporter *Reporter
	rng      *rand.Rand

	vis     Visibility
	opacity float32
	region  overlay.Region
}

// New validates cfg against deps and prepares the renderer for the mode:
// ModePlain gets a transparent overlay at opacity 0, ModeFixedOverlay the
// fixed opacity, and ModeAnimatedRegion one full overlay upload so texels
// outside the first regions are defined.
func New(cfg colorconvert.Config, deps Deps) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Renderer == nil:
		return nil, fmt.Errorf("%w: no renderer", colorconvert.ErrInvalidConfig)
	case deps.Surface == nil:
		return nil, fmt.Errorf("%w: no surface", colorconvert.ErrInvalidConfig)
	case deps.Planes == nil:
		return nil, fmt.Errorf("%w: no planes", colorconvert.ErrInvalidConfig)
	case cfg.Mode.HasOverlay() && deps.Overlay == nil:
		return nil, fmt.Errorf("%w: mode %s needs an overlay", colorconvert.ErrInvalidConfig, cfg.Mode)
	}
	if cfg.Mode.PartialUpload() {
		if err := deps.Overlay.ValidateForRegions(); err != nil {
			return nil, err
		}
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	l := &Loop{
		cfg:      cfg,
		renderer: deps.Renderer,
		surf:     deps.Surface,
		planes:   deps.Planes,
		overlay:  deps.Overlay,
		clock:    clock,
		anim:     NewAnimator(cfg.OpacityStart, cfg.OpacityStep),
		pacer:    NewPacer(clock),
		reporter: NewReporter(clock, cfg.ReportEvery, deps.Report),
		rng:      rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // region placement, not security
		vis:      Hidden,
	}

	var err error
	switch cfg.Mode {
	case colorconvert.ModePlain:
		l.overlay = overlay.Transparent()
		err = l.renderer.UploadOverlay(l.overlay)
		if err == nil {
			err = l.setOpacity(0)
		}
	case colorconvert.ModeFixedOverlay:
		err = l.setOpacity(colorconvert.FixedOpacity)
	case colorconvert.ModeAnimatedRegion:
		err = l.renderer.UploadOverlay(l.overlay)
	}
	if err != nil {
		return nil, fmt.Errorf("runloop: prepare %s mode: %w", cfg.Mode, err)
	}

	logger().Info("runloop: ready", "mode", cfg.Mode, "interval", cfg.FrameInterval, "seed", cfg.Seed)
	return l, nil
}

// Run iterates until ctx is cancelled or a frame fails. Cancellation is a
// normal stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			logger().Info("runloop: stopped", "frames", l.reporter.Frames())
			return nil
		default:
		}
		if _, err := l.Step(); err != nil {
			return err
		}
	}
}

// Step runs one iteration: at most one surface event, then either a full
// frame when visible or an idle interval when hidden. presented reports
// whether a frame reached the surface.
func (l *Loop) Step() (presented bool, err error) {
	if e, ok := l.surf.PollEvent(); ok {
		l.handle(e)
	}
	if l.vis != Visible {
		l.clock.Sleep(l.cfg.FrameInterval)
		return false, nil
	}
	if err := l.frame(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Loop) handle(e surface.Event) {
	prev := l.vis
	switch e {
	case surface.EventMap:
		l.vis = Visible
	case surface.EventUnmap:
		l.vis = Hidden
	case surface.EventExpose:
	}
	if l.vis != prev {
		logger().Debug("runloop: visibility changed", "event", e, "from", prev, "to", l.vis)
	}
}

func (l *Loop) frame() error {
	if l.cfg.Mode.Animated() {
		if err := l.setOpacity(l.anim.Advance()); err != nil {
			return err
		}
	}
	if err := l.renderer.UploadPlanes(l.planes); err != nil {
		return fmt.Errorf("runloop: upload planes: %w", err)
	}

	switch l.cfg.Mode {
	case colorconvert.ModeFixedOverlay, colorconvert.ModeAnimated:
		if err := l.renderer.UploadOverlay(l.overlay); err != nil {
			return fmt.Errorf("runloop: upload overlay: %w", err)
		}
	case colorconvert.ModeAnimatedRegion:
		l.region = l.overlay.SampleRegion(l.rng)
		if err := l.renderer.UploadOverlayRegion(l.overlay, l.region); err != nil {
			return fmt.Errorf("runloop: upload overlay region %v: %w", l.region, err)
		}
	}

	if err := l.renderer.Draw(); err != nil {
		return fmt.Errorf("runloop: draw: %w", err)
	}
	img, err := l.renderer.Frame()
	if err != nil {
		return fmt.Errorf("runloop: read frame: %w", err)
	}
	if err := l.surf.Present(img); err != nil {
		return fmt.Errorf("runloop: present: %w", err)
	}

	l.pacer.MarkAndSleep(l.cfg.FrameInterval)
	l.reporter.Tick()
	return nil
}

func (l *Loop) setOpacity(v float64) error {
	l.opacity = float32(v)
	if err := l.renderer.SetOpacity(l.opacity); err != nil {
		if errors.Is(err, colorconvert.ErrUnknownParameter) {
			// A program without an opacity input still draws.
			logger().Warn("runloop: opacity not bound", "err", err)
			return nil
		}
		return fmt.Errorf("runloop: set opacity: %w", err)
	}
	return nil
}

// Visibility returns the tracked surface state.
func (l *Loop) Visibility() Visibility { return l.vis }

func (l *Loop) Opacity() float32 { return l.opacity }

// Region returns the overlay region uploaded by the last frame in
// ModeAnimatedRegion.
func (l *Loop) Region() overlay.Region { return l.region }

func (l *Loop) Frames() int { return l.reporter.Frames() }
