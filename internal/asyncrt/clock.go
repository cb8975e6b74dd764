package asyncrt

import (
	"time"

	"fortio.org/safecast"
)

// Clock is the millisecond time base of a run. The sequencer calls
// SleepUntilMs at the end of every tick to hold the frame rate.
type Clock interface {
	NowMs() uint64
	SleepUntilMs(deadlineMs uint64)
}

// VirtualClock only moves when told to, so runs driven by it are
// reproducible and take no wall time.
type VirtualClock struct {
	now uint64
}

func NewVirtualClock(startMs uint64) *VirtualClock { return &VirtualClock{now: startMs} }

func (c *VirtualClock) NowMs() uint64 { return c.now }

// Advance moves the clock forward by deltaMs.
func (c *VirtualClock) Advance(deltaMs uint64) { c.now += deltaMs }

// SleepUntilMs jumps straight to deadlineMs; it never moves backwards.
func (c *VirtualClock) SleepUntilMs(deadlineMs uint64) { c.now = max(c.now, deadlineMs) }

// RealClock counts wall milliseconds since it was created and really sleeps.
type RealClock struct {
	start time.Time
}

func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

func (c *RealClock) NowMs() uint64 {
	ms, err := safecast.Conv[uint64](time.Since(c.start).Milliseconds())
	if err != nil {
		return 0
	}
	return ms
}

func (c *RealClock) SleepUntilMs(deadlineMs uint64) {
	now := c.NowMs()
	if deadlineMs <= now {
		return
	}
	ms, err := safecast.Conv[int64](deadlineMs - now)
	if err != nil {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
