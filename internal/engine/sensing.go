package engine

import (
	"math"

	"blockvm/internal/cast"
	"blockvm/internal/render"
)

// Sensing answers the collision and distance questions of sensing blocks. The
// sensing primitives and the distance evaluator share it, so a predicate and
// its distance are always computed from the same scene.
type Sensing struct {
	rt *Runtime
}

// farAway is reported by distance queries without a valid target.
const farAway = 10000

// TouchingColor reports whether target touches the COLOR argument.
func (s *Sensing) TouchingColor(args Args, target *Target) bool {
	r := s.rt.Renderer
	if r == nil || target == nil || target.DrawableID == 0 {
		return false
	}
	return r.IsTouchingColor(target.DrawableID, cast.ToRGB(args["COLOR"]))
}

// ColorTouchingColor reports whether the part of target colored COLOR touches
// COLOR2.
func (s *Sensing) ColorTouchingColor(args Args, target *Target) bool {
	r := s.rt.Renderer
	if r == nil || target == nil || target.DrawableID == 0 {
		return false
	}
	return r.IsTouchingColorMasked(target.DrawableID, cast.ToRGB(args["COLOR2"]), cast.ToRGB(args["COLOR"]))
}

// TouchingObject handles "_mouse_", "_edge_" and sprite names.
func (s *Sensing) TouchingObject(menu string, target *Target) bool {
	r := s.rt.Renderer
	if r == nil || target == nil || target.DrawableID == 0 {
		return false
	}
	switch menu {
	case "_mouse_":
		m := s.rt.IO.Mouse
		return r.PointInDrawable(target.DrawableID, m.X, m.Y)
	case "_edge_":
		b, stage := target.Bounds(), r.StageBounds()
		return b.Left < stage.Left || b.Right > stage.Right || b.Top > stage.Top || b.Bottom < stage.Bottom
	}
	other := s.rt.SpriteByName(menu)
	if other == nil {
		return false
	}
	var ids []int
	for _, t := range s.rt.targets {
		if t.Name == other.Name && !t.IsStage && t.DrawableID != 0 && t != target {
			ids = append(ids, t.DrawableID)
		}
	}
	return r.IsTouchingDrawables(target.DrawableID, ids)
}

// DistanceTo returns the distance from target to the mouse or a sprite.
func (s *Sensing) DistanceTo(menu string, target *Target) float64 {
	if target == nil || target.IsStage {
		return farAway
	}
	var x, y float64
	if menu == "_mouse_" {
		x, y = s.rt.IO.Mouse.X, s.rt.IO.Mouse.Y
	} else {
		other := s.rt.SpriteByName(menu)
		if other == nil {
			return farAway
		}
		x, y = other.X, other.Y
	}
	return math.Hypot(target.X-x, target.Y-y)
}

func (s *Sensing) touchingColorDistance(args Args, target *Target) Distance {
	if target == nil {
		return distNotTaken
	}
	return s.nearestColor(args["COLOR"], target, target.X, target.Y)
}

func (s *Sensing) colorTouchingColorDistance(args Args, target *Target) Distance {
	r := s.rt.Renderer
	if r == nil || target == nil || target.DrawableID == 0 {
		return distNotTaken
	}
	own := fuzzyFindColor(r, []int{target.DrawableID}, cast.ToRGB(args["COLOR"]), target.X, target.Y, target.Bounds())
	if !own.found {
		// the costume lacks COLOR, the block can never report true
		return distNotTaken
	}
	return s.nearestColor(args["COLOR2"], target, own.x, own.y)
}

func (s *Sensing) touchingObjectDistance(args Args, target *Target) Distance {
	if target == nil {
		return distNotTaken
	}
	menu := cast.ToString(args["TOUCHINGOBJECTMENU"])
	if menu == "_edge_" {
		stage := s.stageBounds()
		edge := math.Min(math.Min(target.X-stage.Left, target.Y-stage.Bottom), math.Min(stage.Right-target.X, stage.Top-target.Y))
		if edge <= 0 {
			return distTaken
		}
		return Distance{True: edge, False: 0}
	}
	d := s.DistanceTo(menu, target)
	if d > 0 {
		return Distance{True: d, False: 0}
	}
	return distTaken
}

// nearestColor searches the stage, excluding target itself, for the color
// closest to (x, y).
func (s *Sensing) nearestColor(colorArg any, target *Target, x, y float64) Distance {
	r := s.rt.Renderer
	if r == nil {
		return distNotTaken
	}
	list := r.VisibleDrawList()
	touchables := make([]int, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] != target.DrawableID {
			touchables = append(touchables, list[i])
		}
	}
	return fuzzyFindColor(r, touchables, cast.ToRGB(colorArg), x, y, r.StageBounds()).distance
}

func (s *Sensing) stageBounds() render.Rect {
	if s.rt.Renderer != nil {
		return s.rt.Renderer.StageBounds()
	}
	return render.Rect{Left: -240, Right: 240, Top: 180, Bottom: -180}
}
