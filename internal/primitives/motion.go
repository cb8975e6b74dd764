package primitives

import (
	"math"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
	"blockvm/internal/render"
)

type motion struct {
	rt *engine.Runtime
}

func (m *motion) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"motion_movesteps":        m.moveSteps,
		"motion_gotoxy":           m.goToXY,
		"motion_goto":             m.goTo,
		"motion_turnright":        m.turnRight,
		"motion_turnleft":         m.turnLeft,
		"motion_pointindirection": m.pointInDirection,
		"motion_pointtowards":     m.pointTowards,
		"motion_glidesecstoxy":    m.glideSecsToXY,
		"motion_glideto":          m.glideTo,
		"motion_ifonedgebounce":   m.ifOnEdgeBounce,
		"motion_setrotationstyle": m.noop,
		"motion_changexby":        m.changeX,
		"motion_setx":             m.setX,
		"motion_changeyby":        m.changeY,
		"motion_sety":             m.setY,
		"motion_xposition":        m.getX,
		"motion_yposition":        m.getY,
		"motion_direction":        m.getDirection,
	}
}

func (m *motion) hats() map[string]engine.HatInfo { return noHats() }

func (m *motion) noop(engine.Args, *engine.BlockUtility) any { return nil }

func (m *motion) stage() render.Rect {
	if m.rt.Renderer != nil {
		return m.rt.Renderer.StageBounds()
	}
	return render.Rect{Left: -240, Right: 240, Top: 180, Bottom: -180}
}

// moveTo sets the sprite position, keeping its center on the stage.
func (m *motion) moveTo(t *engine.Target, x, y float64) {
	stage := m.stage()
	t.SetXY(math.Max(stage.Left, math.Min(stage.Right, x)), math.Max(stage.Bottom, math.Min(stage.Top, y)))
	m.rt.RequestRedraw()
}

// limitPrecision snaps coordinates within 1e-9 of an integer.
func limitPrecision(n float64) float64 {
	if r := math.Round(n); math.Abs(n-r) < 1e-9 {
		return r
	}
	return n
}

func (m *motion) moveSteps(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	steps := cast.ToNumber(args["STEPS"])
	rad := (90 - t.Direction) * math.Pi / 180
	m.moveTo(t, t.X+steps*math.Cos(rad), t.Y+steps*math.Sin(rad))
	return nil
}

func (m *motion) goToXY(args engine.Args, util *engine.BlockUtility) any {
	m.moveTo(util.Target(), cast.ToNumber(args["X"]), cast.ToNumber(args["Y"]))
	return nil
}

// targetXY resolves a "go to" menu value: "_mouse_", "_random_" or a sprite.
func (m *motion) targetXY(menu string) (float64, float64, bool) {
	switch menu {
	case "_mouse_":
		return m.rt.IO.Mouse.X, m.rt.IO.Mouse.Y, true
	case "_random_":
		stage := m.stage()
		w, h := stage.Right-stage.Left, stage.Top-stage.Bottom
		return math.Round(w * (m.rt.Rand.Float64() - 0.5)), math.Round(h * (m.rt.Rand.Float64() - 0.5)), true
	}
	other := m.rt.SpriteByName(menu)
	if other == nil {
		return 0, 0, false
	}
	return other.X, other.Y, true
}

func (m *motion) goTo(args engine.Args, util *engine.BlockUtility) any {
	if x, y, ok := m.targetXY(cast.ToString(args["TO"])); ok {
		m.moveTo(util.Target(), x, y)
	}
	return nil
}

func (m *motion) turnRight(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	t.SetDirection(t.Direction + cast.ToNumber(args["DEGREES"]))
	return nil
}

func (m *motion) turnLeft(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	t.SetDirection(t.Direction - cast.ToNumber(args["DEGREES"]))
	return nil
}

func (m *motion) pointInDirection(args engine.Args, util *engine.BlockUtility) any {
	util.Target().SetDirection(cast.ToNumber(args["DIRECTION"]))
	return nil
}

func (m *motion) pointTowards(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	menu := cast.ToString(args["TOWARDS"])
	if menu == "_random_" {
		t.SetDirection(math.Round(m.rt.Rand.Float64()*360) - 180)
		return nil
	}
	x, y, ok := m.targetXY(menu)
	if !ok {
		return nil
	}
	dx, dy := x-t.X, y-t.Y
	t.SetDirection(90 - math.Atan2(dy, dx)*180/math.Pi)
	return nil
}

// glide moves the sprite from its position when the glide started to
// (endX, endY) over secs seconds of stack timer.
func (m *motion) glide(util *engine.BlockUtility, secs, endX, endY float64) {
	t := util.Target()
	frame := util.StackFrame()
	timed(util, 1000*secs,
		func() {
			frame.SetValue("startX", t.X)
			frame.SetValue("startY", t.Y)
			frame.SetValue("endX", endX)
			frame.SetValue("endY", endY)
		},
		func(frac float64) {
			sx, _ := frame.Value("startX")
			sy, _ := frame.Value("startY")
			ex, _ := frame.Value("endX")
			ey, _ := frame.Value("endY")
			x0, y0 := sx.(float64), sy.(float64)
			m.moveTo(t, x0+(ex.(float64)-x0)*frac, y0+(ey.(float64)-y0)*frac)
		},
		func() {
			ex, ok := frame.Value("endX")
			if !ok {
				return
			}
			ey, _ := frame.Value("endY")
			m.moveTo(t, ex.(float64), ey.(float64))
		})
}

func (m *motion) glideSecsToXY(args engine.Args, util *engine.BlockUtility) any {
	m.glide(util, cast.ToNumber(args["SECS"]), cast.ToNumber(args["X"]), cast.ToNumber(args["Y"]))
	return nil
}

func (m *motion) glideTo(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	x, y, ok := t.X, t.Y, true
	if util.StackTimerNeedsInit() {
		x, y, ok = m.targetXY(cast.ToString(args["TO"]))
	}
	if ok {
		m.glide(util, cast.ToNumber(args["SECS"]), x, y)
	}
	return nil
}

// ifOnEdgeBounce turns the sprite away from the nearest edge it crosses and
// moves it back onto the stage.
func (m *motion) ifOnEdgeBounce(_ engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	b, stage := t.Bounds(), m.stage()
	distLeft := math.Max(0, b.Left-stage.Left)
	distTop := math.Max(0, stage.Top-b.Top)
	distRight := math.Max(0, stage.Right-b.Right)
	distBottom := math.Max(0, b.Bottom-stage.Bottom)

	nearest, least := "", math.Inf(1)
	for _, edge := range []struct {
		name string
		dist float64
	}{{"left", distLeft}, {"top", distTop}, {"right", distRight}, {"bottom", distBottom}} {
		if edge.dist < least {
			nearest, least = edge.name, edge.dist
		}
	}
	if least > 0 {
		return nil
	}
	rad := (90 - t.Direction) * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	switch nearest {
	case "left":
		dx = math.Max(0.2, math.Abs(dx))
	case "top":
		dy = -math.Max(0.2, math.Abs(dy))
	case "right":
		dx = -math.Max(0.2, math.Abs(dx))
	case "bottom":
		dy = math.Max(0.2, math.Abs(dy))
	}
	t.SetDirection(90 - math.Atan2(dy, dx)*180/math.Pi)

	// push back inside
	x, y := t.X, t.Y
	switch {
	case b.Left < stage.Left:
		x += stage.Left - b.Left
	case b.Right > stage.Right:
		x -= b.Right - stage.Right
	}
	switch {
	case b.Top > stage.Top:
		y -= b.Top - stage.Top
	case b.Bottom < stage.Bottom:
		y += stage.Bottom - b.Bottom
	}
	m.moveTo(t, x, y)
	return nil
}

func (m *motion) changeX(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	m.moveTo(t, t.X+cast.ToNumber(args["DX"]), t.Y)
	return nil
}

func (m *motion) setX(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	m.moveTo(t, cast.ToNumber(args["X"]), t.Y)
	return nil
}

func (m *motion) changeY(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	m.moveTo(t, t.X, t.Y+cast.ToNumber(args["DY"]))
	return nil
}

func (m *motion) setY(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	m.moveTo(t, t.X, cast.ToNumber(args["Y"]))
	return nil
}

func (m *motion) getX(_ engine.Args, util *engine.BlockUtility) any {
	return limitPrecision(util.Target().X)
}

func (m *motion) getY(_ engine.Args, util *engine.BlockUtility) any {
	return limitPrecision(util.Target().Y)
}

func (m *motion) getDirection(_ engine.Args, util *engine.BlockUtility) any {
	return util.Target().Direction
}
