// Command colorconvert converts a raw 4:2:0 frame to RGB on the GPU and
// presents it continuously, optionally blending an overlay image over it.
//
// Usage:
//
//	colorconvert [-mode plain|fixed|animated|region] [-fps 60] [-seed 1]
//	             [-opacity-start 0.5] [-opacity-step 0.01]
//	             [-surface name] [-fullscreen] [-software] [-v]
//
// The frame is read from sample.yuv420 and the overlay from canvas.png in
// the working directory. With a display available the frame is shown in a
// window, otherwise it is rendered offscreen. The program runs until the
// window is closed or it is interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/colorconvert"
	"github.com/gogpu/colorconvert/internal/gpu"
	"github.com/gogpu/colorconvert/internal/overlay"
	"github.com/gogpu/colorconvert/internal/runloop"
	"github.com/gogpu/colorconvert/internal/software"
	"github.com/gogpu/colorconvert/internal/yuv"
	"github.com/gogpu/colorconvert/surface"
	_ "github.com/gogpu/colorconvert/surface/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "colorconvert: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	mode       string
	fps        float64
	seed       int64
	opacity    float64
	step       float64
	surface    string
	fullscreen bool
	software   bool
	verbose    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.mode, "mode", colorconvert.ModePlain.String(), "compositing mode: plain, fixed, animated or region")
	flag.Float64Var(&f.fps, "fps", 62.5, "target frames per second, 0 for unpaced")
	flag.Int64Var(&f.seed, "seed", 1, "seed of the overlay region generator")
	flag.Float64Var(&f.opacity, "opacity-start", 0.5, "initial overlay opacity of the animated modes")
	flag.Float64Var(&f.step, "opacity-step", 0.01, "per-frame opacity change of the animated modes")
	flag.StringVar(&f.surface, "surface", "", "surface backend, empty for the best available")
	flag.BoolVar(&f.fullscreen, "fullscreen", false, "request a fullscreen surface")
	flag.BoolVar(&f.software, "software", false, "convert on the CPU instead of the GPU")
	flag.BoolVar(&f.verbose, "v", false, "log debug messages")
	flag.Parse()
	return f
}

func (f flags) config() (colorconvert.Config, error) {
	mode, err := colorconvert.ParseMode(f.mode)
	if err != nil {
		return colorconvert.Config{}, err
	}
	if f.fps < 0 {
		return colorconvert.Config{}, fmt.Errorf("%w: negative fps %v", colorconvert.ErrInvalidConfig, f.fps)
	}
	var interval time.Duration
	if f.fps > 0 {
		interval = time.Duration(float64(time.Second) / f.fps)
	}
	cfg := colorconvert.NewConfig(
		colorconvert.WithMode(mode),
		colorconvert.WithFrameInterval(interval),
		colorconvert.WithSeed(f.seed),
		colorconvert.WithOpacityStart(f.opacity),
		colorconvert.WithOpacityStep(f.step),
		colorconvert.WithSurface(f.surface),
		colorconvert.WithFullscreen(f.fullscreen),
	)
	return cfg, cfg.Validate()
}

func run() error {
	f := parseFlags()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	colorconvert.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := colorconvert.Logger()

	cfg, err := f.config()
	if err != nil {
		return err
	}

	planes, err := yuv.LoadFile(cfg.PlanePath)
	if err != nil {
		return err
	}
	var img *overlay.Image
	if cfg.Mode.HasOverlay() {
		if img, err = overlay.Load(cfg.OverlayPath); err != nil {
			return err
		}
		if cfg.Mode.PartialUpload() {
			if err := img.ValidateForRegions(); err != nil {
				return err
			}
		}
	}

	opts := surfaceOptions(cfg)
	var surf surface.Surface
	if cfg.Surface != "" {
		surf, err = surface.OpenByName(cfg.Surface, opts)
	} else {
		surf, err = surface.Open(opts)
	}
	if err != nil {
		return fmt.Errorf("open surface: %w", err)
	}
	defer surf.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("colorconvert: running", "mode", cfg.Mode, "surface", fmt.Sprintf("%T", surf))

	host, hosted := surf.(surface.Host)
	if !hosted {
		return convert(ctx, cfg, f.software, surf, planes, img)
	}

	// The window owns this goroutine; convert next to it and close the
	// window when conversion ends.
	errc := make(chan error, 1)
	go func() {
		err := convert(ctx, cfg, f.software, surf, planes, img)
		_ = surf.Close()
		errc <- err
	}()
	hostErr := host.Run()
	stop()
	err = <-errc
	if errors.Is(err, surface.ErrClosed) {
		err = nil
	}
	return errors.Join(hostErr, err)
}

func surfaceOptions(cfg colorconvert.Config) surface.Options {
	return surface.Options{
		Width:      colorconvert.Width,
		Height:     colorconvert.Height,
		Fullscreen: cfg.Fullscreen,
		Title:      "colorconvert",
	}
}

// convert opens the renderer for surf and runs the frame loop until ctx is
// done.
func convert(ctx context.Context, cfg colorconvert.Config, useCPU bool,
	surf surface.Surface, planes *yuv.PlaneBuffer, img *overlay.Image,
) error {
	overlayW, overlayH := 1, 1
	if img != nil {
		overlayW, overlayH = img.Width(), img.Height()
	}
	renderer, closeRenderer, err := openRenderer(ctx, useCPU, surf, overlayW, overlayH)
	if err != nil {
		return err
	}
	defer closeRenderer()

	loop, err := runloop.New(cfg, runloop.Deps{
		Renderer: renderer,
		Surface:  surf,
		Planes:   planes,
		Overlay:  img,
		Report:   os.Stdout,
	})
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}

// openRenderer opens the GPU renderer, or the CPU one when useCPU is
// set. A machine without Vulkan is an error unless useCPU is set.
func openRenderer(ctx context.Context, useCPU bool, surf surface.Surface, overlayW, overlayH int) (runloop.Renderer, func(), error) {
	if useCPU {
		return openSoftware(overlayW, overlayH)
	}

	dev, err := openDevice(ctx, surf)
	if err != nil {
		if errors.Is(err, colorconvert.ErrExtensionMissing) {
			return nil, nil, fmt.Errorf("%w (run with -software to convert on the CPU)", err)
		}
		return nil, nil, err
	}
	r, err := gpu.NewRenderer(dev, colorconvert.Width, colorconvert.Height, overlayW, overlayH)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return r, func() {
		_ = r.Close()
		dev.Close()
	}, nil
}

// openDevice borrows the surface's GPU device when it lends one and opens
// a standalone Vulkan device otherwise.
func openDevice(ctx context.Context, surf surface.Surface) (*gpu.Device, error) {
	sharer, ok := surf.(surface.DeviceSharer)
	if !ok {
		return gpu.OpenDevice()
	}
	provider, err := sharer.DeviceProvider(ctx)
	if err != nil {
		return nil, err
	}
	dev, err := gpu.DeviceFromProvider(provider)
	if err != nil {
		colorconvert.Logger().Warn("colorconvert: cannot share the surface device, opening another", "err", err)
		return gpu.OpenDevice()
	}
	return dev, nil
}

func openSoftware(overlayW, overlayH int) (runloop.Renderer, func(), error) {
	r, err := software.NewRenderer(colorconvert.Width, colorconvert.Height, overlayW, overlayH, 0)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}
