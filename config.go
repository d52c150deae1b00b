package colorconvert

import (
	"fmt"
	"strings"
	"time"
)

// Frame geometry. The frame size is fixed for the lifetime of the process.
const (
	// Width is the luma plane and output surface width in pixels.
	Width = 1280

	// Height is the luma plane and output surface height in pixels.
	Height = 720

	// ChromaWidth is the width of each 4:2:0 chroma plane.
	ChromaWidth = Width / 2

	// ChromaHeight is the height of each 4:2:0 chroma plane.
	ChromaHeight = Height / 2

	// LumaSize is the byte size of the Y plane.
	LumaSize = Width * Height

	// ChromaSize is the byte size of one of the U or V planes.
	ChromaSize = ChromaWidth * ChromaHeight

	// FrameSize is the byte size of one raw frame: Y, U and V concatenated.
	FrameSize = LumaSize + 2*ChromaSize
)

// Input files, read relative to the working directory.
const (
	PlaneFile   = "sample.yuv420"
	OverlayFile = "canvas.png"
)

// FixedOpacity is the blend weight used by ModeFixedOverlay.
const FixedOpacity = 0.5

// Mode selects which compositing variant the run loop drives.
type Mode int

const (
	// ModePlain converts the frame with no overlay.
	ModePlain Mode = iota

	// ModeFixedOverlay blends the overlay at FixedOpacity.
	ModeFixedOverlay

	// ModeAnimated blends the overlay at an opacity bouncing between 0 and 1.
	ModeAnimated

	// ModeAnimatedRegion is ModeAnimated with the overlay refreshed through a
	// random sub-rectangle every frame instead of a full upload.
	ModeAnimatedRegion
)

var modeNames = [...]string{
	ModePlain:          "plain",
	ModeFixedOverlay:   "fixed",
	ModeAnimated:       "animated",
	ModeAnimatedRegion: "region",
}

// String returns the flag name of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode parses a flag name produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return ModePlain, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// HasOverlay reports whether the mode composites the overlay image.
func (m Mode) HasOverlay() bool { return m != ModePlain }

// Animated reports whether the opacity changes every frame.
func (m Mode) Animated() bool { return m == ModeAnimated || m == ModeAnimatedRegion }

// PartialUpload reports whether the overlay is refreshed by sub-region.
func (m Mode) PartialUpload() bool { return m == ModeAnimatedRegion }

// Config holds the run configuration. Frame geometry and file names are
// constants; everything here only tunes the loop.
type Config struct {
	// Mode selects the compositing variant.
	Mode Mode

	// PlanePath is the raw 4:2:0 frame file.
	PlanePath string

	// OverlayPath is the overlay image file. Unused by ModePlain.
	OverlayPath string

	// FrameInterval is the target time per presented frame.
	FrameInterval time.Duration

	// ReportEvery is the number of presented frames between framerate reports.
	ReportEvery int

	// Seed seeds the overlay region generator.
	Seed int64

	// Fullscreen is sent once to the surface as a hint at creation.
	Fullscreen bool

	// Surface names the surface backend. Empty selects the best available.
	Surface string

	// OpacityStart and OpacityStep configure the opacity animator.
	OpacityStart float64
	OpacityStep  float64
}

// DefaultConfig returns the configuration the demo runs with.
func DefaultConfig() Config {
	return Config{
		Mode:          ModePlain,
		PlanePath:     PlaneFile,
		OverlayPath:   OverlayFile,
		FrameInterval: 16 * time.Millisecond,
		ReportEvery:   1000,
		Seed:          1,
		OpacityStart:  0.5,
		OpacityStep:   0.01,
	}
}

// Option configures a Config.
//
// Example:
//
//	cfg := colorconvert.NewConfig(
//	    colorconvert.WithMode(colorconvert.ModeAnimatedRegion),
//	    colorconvert.WithSeed(42),
//	)
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMode sets the compositing variant.
func WithMode(m Mode) Option {
	return func(c *Config) { c.Mode = m }
}

// WithPlanePath overrides the raw frame file.
func WithPlanePath(path string) Option {
	return func(c *Config) { c.PlanePath = path }
}

// WithOverlayPath overrides the overlay image file.
func WithOverlayPath(path string) Option {
	return func(c *Config) { c.OverlayPath = path }
}

// WithFrameInterval sets the target frame interval.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Config) { c.FrameInterval = d }
}

// WithReportEvery sets how many frames pass between framerate reports.
func WithReportEvery(n int) Option {
	return func(c *Config) { c.ReportEvery = n }
}

// WithSeed seeds the overlay region generator.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithFullscreen requests a fullscreen surface.
func WithFullscreen(on bool) Option {
	return func(c *Config) { c.Fullscreen = on }
}

// WithOpacityStart sets the opacity the animated modes begin at, in [0, 1].
func WithOpacityStart(v float64) Option {
	return func(c *Config) { c.OpacityStart = v }
}

// WithOpacityStep sets how far the animated opacity moves per frame. The
// sign gives the initial direction.
func WithOpacityStep(v float64) Option {
	return func(c *Config) { c.OpacityStep = v }
}

// WithSurface selects a surface backend by name.
func WithSurface(name string) Option {
	return func(c *Config) { c.Surface = name }
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	switch {
	case c.Mode < ModePlain || c.Mode > ModeAnimatedRegion:
		return fmt.Errorf("%w: mode %d out of range", ErrInvalidConfig, int(c.Mode))
	case c.PlanePath == "":
		return fmt.Errorf("%w: empty plane path", ErrInvalidConfig)
	case c.Mode.HasOverlay() && c.OverlayPath == "":
		return fmt.Errorf("%w: mode %s needs an overlay path", ErrInvalidConfig, c.Mode)
	case c.FrameInterval < 0:
		return fmt.Errorf("%w: negative frame interval %v", ErrInvalidConfig, c.FrameInterval)
	case c.ReportEvery <= 0:
		return fmt.Errorf("%w: report interval must be positive, got %d", ErrInvalidConfig, c.ReportEvery)
	case c.OpacityStart < 0 || c.OpacityStart > 1:
		return fmt.Errorf("%w: opacity start %v outside [0, 1]", ErrInvalidConfig, c.OpacityStart)
	case c.Mode.Animated() && c.OpacityStep == 0:
		return fmt.Errorf("%w: zero opacity step", ErrInvalidConfig)
	}
	return nil
}
