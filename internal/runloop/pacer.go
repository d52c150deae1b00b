package runloop

import "time"

// Clock is the time source of the loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Pacer keeps frames at least a target interval apart.
type Pacer struct {
	clock Clock
	mark  time.Time
}

// NewPacer returns a pacer marked at the current time of clock.
func NewPacer(clock Clock) *Pacer {
	return &Pacer{clock: clock, mark: clock.Now()}
}

// MarkAndSleep sleeps for whatever is left of target since the previous
// mark, then marks again. It returns the time slept, zero when the frame
// already took target or longer.
func (p *Pacer) MarkAndSleep(target time.Duration) time.Duration {
	var slept time.Duration
	if d := target - p.clock.Now().Sub(p.mark); d > 0 {
		p.clock.Sleep(d)
		slept = d
	}
	p.mark = p.clock.Now()
	return slept
}
