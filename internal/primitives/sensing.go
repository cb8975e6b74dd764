package primitives

import (
	"math"
	"strings"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type sensing struct {
	rt *engine.Runtime
}

func (s *sensing) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"sensing_touchingobject":       s.touchingObject,
		"sensing_touchingcolor":        s.touchingColor,
		"sensing_coloristouchingcolor": s.colorTouchingColor,
		"sensing_distanceto":           s.distanceTo,
		"sensing_keypressed":           s.keyPressed,
		"sensing_mousedown":            s.mouseDown,
		"sensing_mousex":               s.mouseX,
		"sensing_mousey":               s.mouseY,
		"sensing_timer":                s.timer,
		"sensing_resettimer":           s.resetTimer,
		"sensing_of":                   s.of,
		"sensing_loudness":             s.loudness,
		"sensing_username":             s.username,
	}
}

func (s *sensing) hats() map[string]engine.HatInfo { return noHats() }

func (s *sensing) touchingObject(args engine.Args, util *engine.BlockUtility) any {
	return s.rt.Sensing().TouchingObject(cast.ToString(args["TOUCHINGOBJECTMENU"]), util.Target())
}

func (s *sensing) touchingColor(args engine.Args, util *engine.BlockUtility) any {
	return s.rt.Sensing().TouchingColor(args, util.Target())
}

func (s *sensing) colorTouchingColor(args engine.Args, util *engine.BlockUtility) any {
	return s.rt.Sensing().ColorTouchingColor(args, util.Target())
}

func (s *sensing) distanceTo(args engine.Args, util *engine.BlockUtility) any {
	return s.rt.Sensing().DistanceTo(cast.ToString(args["DISTANCETOMENU"]), util.Target())
}

// keyName normalizes a KEY_OPTION value: numbers are key codes, other values
// are lower-cased key names.
func keyName(v any) string {
	if n, ok := v.(float64); ok {
		switch n {
		case 32:
			return "space"
		case 37:
			return "left arrow"
		case 38:
			return "up arrow"
		case 39:
			return "right arrow"
		case 40:
			return "down arrow"
		}
		if n >= 48 && n <= 90 {
			return strings.ToLower(string(rune(int(n))))
		}
		return ""
	}
	return strings.ToLower(cast.ToString(v))
}

func (s *sensing) keyPressed(args engine.Args, _ *engine.BlockUtility) any {
	return s.rt.IO.Keyboard.IsPressed(keyName(args["KEY_OPTION"]))
}

func (s *sensing) mouseDown(engine.Args, *engine.BlockUtility) any { return s.rt.IO.Mouse.Down }

func (s *sensing) mouseX(engine.Args, *engine.BlockUtility) any { return s.rt.IO.Mouse.X }

func (s *sensing) mouseY(engine.Args, *engine.BlockUtility) any { return s.rt.IO.Mouse.Y }

func (s *sensing) timer(engine.Args, *engine.BlockUtility) any { return s.rt.TimerSeconds() }

func (s *sensing) resetTimer(engine.Args, *engine.BlockUtility) any {
	s.rt.ResetTimer()
	return nil
}

// of reads a property or a local variable of another target.
func (s *sensing) of(args engine.Args, _ *engine.BlockUtility) any {
	object := cast.ToString(args["OBJECT"])
	property := cast.ToString(args["PROPERTY"])
	var t *engine.Target
	if object == "_stage_" {
		t = s.rt.Stage()
	} else {
		t = s.rt.SpriteByName(object)
	}
	if t == nil {
		return 0.0
	}
	if t.IsStage {
		switch property {
		case "background #", "backdrop #":
			return numberOrName(t, "number")
		case "backdrop name":
			return numberOrName(t, "name")
		case "volume":
			return 100.0
		}
	} else {
		switch property {
		case "x position":
			return limitPrecision(t.X)
		case "y position":
			return limitPrecision(t.Y)
		case "direction":
			return t.Direction
		case "costume #":
			return numberOrName(t, "number")
		case "costume name":
			return numberOrName(t, "name")
		case "size":
			return math.Round(t.Size)
		case "volume":
			return 100.0
		}
	}
	for _, v := range t.Variables {
		if v.Name == property && v.Type == engine.VarScalar {
			return v.Value
		}
	}
	return 0.0
}

// no microphone
func (s *sensing) loudness(engine.Args, *engine.BlockUtility) any { return -1.0 }

func (s *sensing) username(engine.Args, *engine.BlockUtility) any { return "" }
