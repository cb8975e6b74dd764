package engine

import (
	"math"
	"testing"

	"blockvm/internal/cast"
	"blockvm/internal/render"
)

func TestWalkGridVisitsOutwardOnce(t *testing.T) {
	bounds := render.Rect{Left: -20, Right: 20, Top: 20, Bottom: -20}
	seen := make(map[point]int)
	var order []point
	walkGrid(0, 0, bounds, 10, func(x, y int) bool {
		seen[point{x, y}]++
		order = append(order, point{x, y})
		return true
	})
	if len(seen) != 25 {
		t.Fatalf("visited %d points, want 25", len(seen))
	}
	for p, n := range seen {
		if n != 1 {
			t.Fatalf("%v visited %d times", p, n)
		}
	}
	if order[0] != (point{0, 0}) {
		t.Fatalf("walk must start at the origin, got %v", order[0])
	}
	ring := func(p point) int { return max(abs(p.x), abs(p.y)) / 10 }
	for i := 1; i < len(order); i++ {
		if ring(order[i]) < ring(order[i-1]) {
			t.Fatalf("walk went inwards at %d: %v after %v", i, order[i], order[i-1])
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestFuzzyFindColor(t *testing.T) {
	r := render.New(480, 360)
	red := r.CreateDrawable()
	r.SetSkin(red, render.SolidSkin(20, 20, cast.RGB{255, 0, 0}), 10, 10)
	r.SetPosition(red, 100, 0)
	r.SetVisible(red, true)

	hit := fuzzyFindColor(r, r.VisibleDrawList(), cast.RGB{255, 0, 0}, 0, 0, r.StageBounds())
	if !hit.found {
		t.Fatalf("red drawable not found")
	}
	if hit.distance.False != 0 || hit.distance.True < 0.14 || hit.distance.True > 0.16 {
		t.Fatalf("distance %v, want about 90/600", hit.distance)
	}

	miss := fuzzyFindColor(r, r.VisibleDrawList(), cast.RGB{0, 0, 255}, 0, 0, r.StageBounds())
	if miss.found || miss.distance != distNotTaken {
		t.Fatalf("blue must not be found: %+v", miss)
	}
}

func TestTouchingObjectEdgeDistance(t *testing.T) {
	f := newFixture(t)
	s := f.rt.Sensing()
	f.sprite.SetXY(200, 0)
	d := s.touchingObjectDistance(Args{"TOUCHINGOBJECTMENU": "_edge_"}, f.sprite)
	if d != (Distance{40, 0}) {
		t.Fatalf("edge distance: %v", d)
	}
	f.sprite.SetXY(240, 0)
	if d := s.touchingObjectDistance(Args{"TOUCHINGOBJECTMENU": "_edge_"}, f.sprite); d != distTaken {
		t.Fatalf("at the edge: %v", d)
	}
}

// sensingScene puts a red sprite A at (10.7, 0.9) and a blue sprite B at
// (100, 0) on a rendered 480x360 stage.
func sensingScene(t *testing.T) (*Runtime, *Target, *Target) {
	t.Helper()
	rt := NewRuntime(Options{Renderer: render.New(480, 360)})
	sprite := func(id, name string, c cast.RGB, x, y float64) *Target {
		s := NewTarget(id, name, false, nil)
		s.Costumes = []Costume{{Name: "c", Width: 20, Height: 20, CenterX: 10, CenterY: 10, Color: c}}
		rt.AddTarget(s)
		s.SetXY(x, y)
		return s
	}
	a := sprite("a", "A", cast.RGB{255, 0, 0}, 10.7, 0.9)
	b := sprite("b", "B", cast.RGB{0, 0, 255}, 100, 0)
	return rt, a, b
}

func TestColorTouchingColorDistance(t *testing.T) {
	rt, a, b := sensingScene(t)
	s := rt.Sensing()
	blue := cast.RGB{0, 0, 255}

	cases := []struct {
		name string
		args Args
		want func() Distance
	}{
		{"color1 missing from costume", Args{"COLOR": "#00ff00", "COLOR2": "#0000ff"},
			func() Distance { return distNotTaken }},
		{"color2 searched from color1", Args{"COLOR": "#ff0000", "COLOR2": "#0000ff"},
			func() Distance {
				// red is first found at the truncated sprite position
				return fuzzyFindColor(rt.Renderer, []int{b.DrawableID}, blue, 10, 0, rt.Renderer.StageBounds()).distance
			}},
		{"color2 nowhere", Args{"COLOR": "#ff0000", "COLOR2": "#00ff00"},
			func() Distance { return distNotTaken }},
	}
	for _, tc := range cases {
		if got := s.colorTouchingColorDistance(tc.args, a); got != tc.want() {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want())
		}
	}

	fromSprite := fuzzyFindColor(rt.Renderer, []int{b.DrawableID}, blue, a.X, a.Y, rt.Renderer.StageBounds()).distance
	got := s.colorTouchingColorDistance(Args{"COLOR": "#ff0000", "COLOR2": "#0000ff"}, a)
	if got == fromSprite || got.True <= 0 || got.False != 0 {
		t.Fatalf("color2 distance %v must be measured from color1's sample point, not %v", got, fromSprite)
	}
}

func TestTouchingSpriteDistance(t *testing.T) {
	rt, a, b := sensingScene(t)
	s := rt.Sensing()
	menu := func(name string) Args { return Args{"TOUCHINGOBJECTMENU": name} }

	want := math.Hypot(100-10.7, 0.9)
	if d := s.touchingObjectDistance(menu("B"), a); d.False != 0 || math.Abs(d.True-want) > 1e-9 {
		t.Fatalf("distance to B: %v, want [%v 0]", d, want)
	}
	if d := s.touchingObjectDistance(menu("nobody"), a); d != (Distance{farAway, 0}) {
		t.Fatalf("unknown sprite: %v", d)
	}
	a.SetXY(b.X, b.Y)
	if d := s.touchingObjectDistance(menu("B"), a); d != distTaken {
		t.Fatalf("same position: %v", d)
	}
}

func TestPressedDistances(t *testing.T) {
	f := newFixture(t)
	c := newExecContext()
	util := &BlockUtility{sequencer: f.seq, thread: f.thread("x")}
	cases := []struct {
		opcode string
		value  any
		want   Distance
	}{
		{"sensing_keypressed", true, distTaken},
		{"sensing_keypressed", false, distNotTaken},
		{"sensing_mousedown", true, distTaken},
		{"sensing_mousedown", false, distNotTaken},
		{"sensing_mousedown", "true", distNotTaken},
	}
	for _, tc := range cases {
		op := &BlockCached{Opcode: tc.opcode, args: Args{}}
		if d, ok := c.branchDistance(op, tc.value, util); !ok || d != tc.want {
			t.Errorf("%s(%v) = %v %v, want %v", tc.opcode, tc.value, d, ok, tc.want)
		}
	}
}
