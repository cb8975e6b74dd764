package campaign

import (
	"math/rand"

	"blockvm/internal/engine"
)

// inputDriver posts random keyboard and mouse events into a runtime, the way
// a search driver would explore a program's input space. Keys are held for a
// few ticks; mouse clicks are released on the next tick.
type inputDriver struct {
	rng  *rand.Rand
	rate float64
	keys []string

	held      map[string]int // key -> ticks left
	mouseDown bool
	posted    int
}

func newInputDriver(seed int64, rate float64, keys []string) *inputDriver {
	return &inputDriver{
		rng:  rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible input
		rate: rate,
		keys: keys,
		held: make(map[string]int),
	}
}

// step releases expired input and, with probability rate, posts one new
// event. It runs before the tick so that hats start in the same frame.
func (d *inputDriver) step(rt *engine.Runtime) {
	for key, left := range d.held {
		if left <= 1 {
			delete(d.held, key)
			rt.PostKey(key, false)
			continue
		}
		d.held[key] = left - 1
	}
	if d.mouseDown {
		d.mouseDown = false
		rt.PostMouse(rt.IO.Mouse.X, rt.IO.Mouse.Y, false)
	}

	if d.rate <= 0 || d.rng.Float64() >= d.rate {
		return
	}
	d.posted++
	if len(d.keys) > 0 && d.rng.Intn(3) > 0 {
		key := d.keys[d.rng.Intn(len(d.keys))]
		if _, down := d.held[key]; !down {
			rt.PostKey(key, true)
		}
		d.held[key] = 1 + d.rng.Intn(5)
		return
	}
	x, y := 0.0, 0.0
	if rt.Renderer != nil {
		b := rt.Renderer.StageBounds()
		x = b.Left + d.rng.Float64()*b.Width()
		y = b.Bottom + d.rng.Float64()*b.Height()
	}
	rt.PostMouse(x, y, true)
	d.mouseDown = true
}
