package clock

import "time"

// Millis is a free-running millisecond counter. It wraps around after
// roughly 49.7 days of uptime, so elapsed time must always be computed
// with Since, never by comparing two Millis values directly.
type Millis uint32

// Clock provides the current tick count. Implementations must be
// monotonic between calls; wall-clock adjustments must not affect it.
type Clock interface {
	Now() Millis
}

// Since returns the elapsed ticks between then and now. The unsigned
// subtraction is wraparound-safe: it stays correct when the counter
// has wrapped between the two samples, as long as the real elapsed
// time is below the counter period.
func Since(now, then Millis) Millis {
	return now - then
}

// SystemClock derives Millis from the runtime's monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a SystemClock anchored at the current instant.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the milliseconds elapsed since the clock was created,
// truncated to the counter width.
func (c *SystemClock) Now() Millis {
	return Millis(time.Since(c.start).Milliseconds())
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	now Millis
}

// NewFake creates a fake clock starting at the given tick count.
func NewFake(start Millis) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake tick count.
func (f *Fake) Now() Millis {
	return f.now
}

// Advance moves the fake clock forward by d milliseconds.
func (f *Fake) Advance(d Millis) {
	f.now += d
}

// Set moves the fake clock to an absolute tick count.
func (f *Fake) Set(now Millis) {
	f.now = now
}

// Compile-time interface satisfaction checks.
var (
	_ Clock = (*SystemClock)(nil)
	_ Clock = (*Fake)(nil)
)
