package driver

import "time"

// hostClock is the monotonic tick source the zero-timestamp math runs on.
// Abstracted so tests can drive timestamps deterministically.
type hostClock interface {
	// Now returns the current time in host ticks.
	Now() uint64
	// TicksPerSecond returns the host clock's tick rate.
	TicksPerSecond() float64
}

// monotonicClock counts nanoseconds since construction.
type monotonicClock struct {
	base time.Time
}

func newMonotonicClock() *monotonicClock {
	return &monotonicClock{base: time.Now()}
}

func (c *monotonicClock) Now() uint64             { return uint64(time.Since(c.base)) }
func (c *monotonicClock) TicksPerSecond() float64 { return 1e9 }

// ioClock correlates the device's sample clock with the host clock. It is
// the per-cycle timing context: anchor host time, anchor sample time and
// ticks-per-frame, recomputed whenever the nominal sample rate changes.
//
// Reads and writes are confined to the IO thread and to rate changes that
// only happen while IO is stopped, so no locking is needed.
type ioClock struct {
	clock  hostClock
	period uint32 // zero-timestamp quantization, in frames

	anchorHostTime   uint64
	anchorSampleTime float64
	ticksPerFrame    float64

	// seed changes whenever the timeline is re-anchored so the host knows
	// earlier timestamps are discontinuous with later ones.
	seed uint64

	lastSampleTime float64
	lastHostTime   uint64
}

func newIOClock(clock hostClock, rate int, period uint32) *ioClock {
	c := &ioClock{clock: clock, period: period, seed: 1}
	c.setRate(rate)
	c.anchor()
	return c
}

// setRate recomputes ticks-per-frame from the host clock ratio. Nothing is
// cached across this call: the next timestamp uses the new rate.
func (c *ioClock) setRate(rate int) {
	c.ticksPerFrame = c.clock.TicksPerSecond() / float64(rate)
}

// anchor restarts the sample timeline at the current host time.
func (c *ioClock) anchor() {
	c.anchorHostTime = c.clock.Now()
	c.anchorSampleTime = 0
	c.lastSampleTime = 0
	c.lastHostTime = c.anchorHostTime
	c.seed++
}

// zeroTimeStamp returns the most recent (sampleTime, hostTime) pair aligned
// to a period boundary. Successive calls never move backwards.
func (c *ioClock) zeroTimeStamp() (sampleTime float64, hostTime uint64, seed uint64) {
	elapsed := c.clock.Now() - c.anchorHostTime
	elapsedFrames := float64(elapsed) / c.ticksPerFrame
	periods := uint64(elapsedFrames / float64(c.period))

	sampleTime = float64(periods) * float64(c.period)
	hostTime = c.anchorHostTime + uint64(float64(periods)*float64(c.period)*c.ticksPerFrame)

	if sampleTime < c.lastSampleTime {
		return c.lastSampleTime, c.lastHostTime, c.seed
	}
	c.lastSampleTime = sampleTime
	c.lastHostTime = hostTime
	return sampleTime, hostTime, c.seed
}
