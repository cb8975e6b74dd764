package primitives

import (
	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

// sound has no audio output; playing only takes the sound's duration.
type sound struct {
	rt *engine.Runtime
}

func (s *sound) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"sound_play":          s.play,
		"sound_playuntildone": s.playUntilDone,
		"sound_stopallsounds": s.stopAll,
	}
}

func (s *sound) hats() map[string]engine.HatInfo { return noHats() }

// lookupSound finds a sound by name, then by 1-based number.
func lookupSound(t *engine.Target, v any) (engine.Sound, bool) {
	name := cast.ToString(v)
	for _, snd := range t.Sounds {
		if snd.Name == name {
			return snd, true
		}
	}
	if n := len(t.Sounds); n > 0 && cast.IsNumeric(v) && !cast.IsWhiteSpace(v) {
		idx := clampInt(cast.ToNumber(v), maxLoop) - 1
		idx %= n
		if idx < 0 {
			idx += n
		}
		return t.Sounds[idx], true
	}
	return engine.Sound{}, false
}

func (s *sound) play(args engine.Args, util *engine.BlockUtility) any {
	lookupSound(util.Target(), args["SOUND_MENU"])
	return nil
}

func (s *sound) playUntilDone(args engine.Args, util *engine.BlockUtility) any {
	duration := 0.0
	if util.StackTimerNeedsInit() {
		snd, ok := lookupSound(util.Target(), args["SOUND_MENU"])
		if !ok {
			return nil
		}
		duration = snd.DurationMs
	}
	timed(util, duration, nil, nil, nil)
	return nil
}

func (s *sound) stopAll(engine.Args, *engine.BlockUtility) any { return nil }
