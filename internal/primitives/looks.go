package primitives

import (
	"math"
	"strings"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type looks struct {
	rt *engine.Runtime
}

func (l *looks) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"looks_say":                l.say,
		"looks_sayforsecs":         l.sayForSecs,
		"looks_think":              l.think,
		"looks_thinkforsecs":       l.thinkForSecs,
		"looks_show":               l.show,
		"looks_hide":               l.hide,
		"looks_switchcostumeto":    l.switchCostume,
		"looks_nextcostume":        l.nextCostume,
		"looks_switchbackdropto":   l.switchBackdrop,
		"looks_nextbackdrop":       l.nextBackdrop,
		"looks_changesizeby":       l.changeSize,
		"looks_setsizeto":          l.setSize,
		"looks_size":               l.getSize,
		"looks_costumenumbername":  l.getCostumeNumberName,
		"looks_backdropnumbername": l.getBackdropNumberName,
	}
}

func (l *looks) hats() map[string]engine.HatInfo { return noHats() }

func (l *looks) bubble(t *engine.Target, kind string, message any) {
	t.SetBubble(kind, cast.ToString(message))
	l.rt.RequestRedraw()
}

// bubbleFor shows the bubble for SECS seconds. It is only cleared when no
// other block replaced the text in the meantime.
func (l *looks) bubbleFor(args engine.Args, util *engine.BlockUtility, kind string) {
	t := util.Target()
	text := cast.ToString(args["MESSAGE"])
	timed(util, 1000*cast.ToNumber(args["SECS"]),
		func() { l.bubble(t, kind, text) },
		nil,
		func() {
			if t.Bubble.Kind == kind && t.Bubble.Text == text {
				l.bubble(t, kind, "")
			}
		})
}

func (l *looks) say(args engine.Args, util *engine.BlockUtility) any {
	l.bubble(util.Target(), "say", args["MESSAGE"])
	return nil
}

func (l *looks) sayForSecs(args engine.Args, util *engine.BlockUtility) any {
	l.bubbleFor(args, util, "say")
	return nil
}

func (l *looks) think(args engine.Args, util *engine.BlockUtility) any {
	l.bubble(util.Target(), "think", args["MESSAGE"])
	return nil
}

func (l *looks) thinkForSecs(args engine.Args, util *engine.BlockUtility) any {
	l.bubbleFor(args, util, "think")
	return nil
}

func (l *looks) show(_ engine.Args, util *engine.BlockUtility) any {
	util.Target().SetVisible(true)
	l.rt.RequestRedraw()
	return nil
}

func (l *looks) hide(_ engine.Args, util *engine.BlockUtility) any {
	util.Target().SetVisible(false)
	l.rt.RequestRedraw()
	return nil
}

// setCostume switches to a costume named by requested, falling back to the
// "next"/"previous" keywords and then to a 1-based number.
func (l *looks) setCostume(t *engine.Target, requested any) {
	if n, ok := requested.(float64); ok {
		t.SetCostume(clampInt(n, math.MaxInt32) - 1)
		l.rt.RequestRedraw()
		return
	}
	name := cast.ToString(requested)
	if idx := t.CostumeIndexByName(name); idx >= 0 {
		t.SetCostume(idx)
	} else {
		switch strings.ToLower(name) {
		case "next costume", "next backdrop":
			t.SetCostume(t.CurrentCostume + 1)
		case "previous costume", "previous backdrop":
			t.SetCostume(t.CurrentCostume - 1)
		default:
			if cast.IsNumeric(name) && !cast.IsWhiteSpace(name) {
				t.SetCostume(clampInt(cast.ToNumber(name), math.MaxInt32) - 1)
			}
		}
	}
	l.rt.RequestRedraw()
}

func (l *looks) switchCostume(args engine.Args, util *engine.BlockUtility) any {
	l.setCostume(util.Target(), args["COSTUME"])
	return nil
}

func (l *looks) nextCostume(_ engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	t.SetCostume(t.CurrentCostume + 1)
	l.rt.RequestRedraw()
	return nil
}

// setBackdrop switches the stage costume and starts the backdrop hats.
func (l *looks) setBackdrop(util *engine.BlockUtility, requested any) {
	stage := l.rt.Stage()
	if stage == nil {
		return
	}
	l.setCostume(stage, requested)
	if len(stage.Costumes) > 0 {
		name := stage.Costumes[stage.CurrentCostume].Name
		util.StartHats("event_whenbackdropswitchesto", map[string]string{"BACKDROP": name}, nil)
	}
}

func (l *looks) switchBackdrop(args engine.Args, util *engine.BlockUtility) any {
	l.setBackdrop(util, args["BACKDROP"])
	return nil
}

func (l *looks) nextBackdrop(_ engine.Args, util *engine.BlockUtility) any {
	l.setBackdrop(util, "next backdrop")
	return nil
}

func (l *looks) changeSize(args engine.Args, util *engine.BlockUtility) any {
	t := util.Target()
	t.SetSize(t.Size + cast.ToNumber(args["CHANGE"]))
	l.rt.RequestRedraw()
	return nil
}

func (l *looks) setSize(args engine.Args, util *engine.BlockUtility) any {
	util.Target().SetSize(cast.ToNumber(args["SIZE"]))
	l.rt.RequestRedraw()
	return nil
}

func (l *looks) getSize(_ engine.Args, util *engine.BlockUtility) any {
	return math.Round(util.Target().Size)
}

func numberOrName(t *engine.Target, which string) any {
	if t == nil || len(t.Costumes) == 0 {
		return ""
	}
	if which == "number" {
		return float64(t.CurrentCostume + 1)
	}
	return t.Costumes[t.CurrentCostume].Name
}

func (l *looks) getCostumeNumberName(args engine.Args, util *engine.BlockUtility) any {
	return numberOrName(util.Target(), cast.ToString(args["NUMBER_NAME"]))
}

func (l *looks) getBackdropNumberName(args engine.Args, _ *engine.BlockUtility) any {
	return numberOrName(l.rt.Stage(), cast.ToString(args["NUMBER_NAME"]))
}
