package runloop

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reporter reports the framerate every n frames.
//
// The reported figure is 1000 divided by the seconds elapsed since the
// previous report, which is frames per second only when n is 1000.
type Reporter struct {
	clock   Clock
	every   int
	out     io.Writer
	printer *message.Printer

	frames int
	start  time.Time
}

// NewReporter returns a reporter ticking every n frames. Each report is
// logged and, when out is non-nil, written to out as one line in the
// fixed "Framerate: <fps>fps" format: six significant digits, exponent
// form past that, no grouping.
func NewReporter(clock Clock, n int, out io.Writer) *Reporter {
	return &Reporter{
		clock:   clock,
		every:   n,
		out:     out,
		printer: message.NewPrinter(language.English),
		start:   clock.Now(),
	}
}

// Tick counts one frame. On every nth frame it reports, restarts its timer
// and returns the figure with ok set.
func (r *Reporter) Tick() (fps float64, ok bool) {
	r.frames++
	if r.every <= 0 || r.frames%r.every != 0 {
		return 0, false
	}

	elapsed := r.clock.Now().Sub(r.start).Seconds()
	r.start = r.clock.Now()
	if elapsed <= 0 {
		return 0, false
	}
	fps = 1000 / elapsed

	logger().Info("runloop: framerate",
		"fps", fps, "rate", r.printer.Sprintf("%.1f fps", fps),
		"frames", r.frames, "elapsed", elapsed)
	if r.out != nil {
		_, _ = fmt.Fprintf(r.out, "Framerate: %.6gfps\n", fps)
	}
	return fps, true
}

// Frames returns the number of frames counted so far.
func (r *Reporter) Frames() int { return r.frames }
