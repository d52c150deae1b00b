package runloop

import "time"

// fakeClock advances only when told to or when slept on.
type fakeClock struct {
	now   time.Time
	slept []time.Duration

	// perNow is added after every Now call, emulating work between reads.
	perNow time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.perNow)
	return t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }
