// Package primitives implements the block opcodes of the runtime, one file
// per block family. Register installs every family into a runtime.
package primitives

import (
	"math"

	"blockvm/internal/engine"
)

// family is one group of opcodes sharing state.
type family interface {
	primitives() map[string]engine.BlockFunc
	hats() map[string]engine.HatInfo
}

// Register installs every block family into rt. Family state (list
// operations' random source, the clone counter) is private to rt.
func Register(rt *engine.Runtime) {
	families := []family{
		&events{rt: rt},
		&control{rt: rt},
		&operators{rt: rt},
		&data{rt: rt},
		&motion{rt: rt},
		&looks{rt: rt},
		&sensing{rt: rt},
		&sound{rt: rt},
		&speech{rt: rt},
		&procedures{},
	}
	for _, f := range families {
		for opcode, fn := range f.primitives() {
			rt.Register(opcode, fn)
		}
		for opcode, info := range f.hats() {
			rt.RegisterHat(opcode, info)
		}
	}
}

// Opcodes returns every opcode Register installs, for inspection.
func Opcodes() []string {
	rt := engine.NewRuntime(engine.Options{})
	Register(rt)
	return rt.Opcodes()
}

func noHats() map[string]engine.HatInfo { return nil }

// timed runs a block that waits durationMs on a stack timer: start runs once
// when the timer is set, tick on every later step while it runs and done once
// it has expired.
func timed(util *engine.BlockUtility, durationMs float64, start func(), tick func(frac float64), done func()) {
	if util.StackTimerNeedsInit() {
		util.StartStackTimer(math.Max(0, durationMs))
		if start != nil {
			start()
		}
		util.Runtime().RequestRedraw()
		util.Yield()
		return
	}
	if !util.StackTimerFinished() {
		if tick != nil {
			timer := util.StackFrame().Timer
			tick(float64(util.NowMs()-timer.StartMs) / timer.DurationMs)
		}
		util.Yield()
		return
	}
	if done != nil {
		done()
	}
}

// clampInt rounds n to an int limited to ±limit.
func clampInt(n float64, limit int) int {
	if math.IsNaN(n) {
		return 0
	}
	return int(math.Max(-float64(limit), math.Min(float64(limit), math.Round(n))))
}
