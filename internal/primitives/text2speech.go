package primitives

import (
	"math"
	"strings"

	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

// Speech has no synthesizer; speaking lasts a time derived from the text and
// the voice.
const (
	msPerRune    = 65.0
	minSpeechMs  = 500.0
	defaultVoice = "alto"
)

var voiceRates = map[string]float64{
	"alto":   1,
	"tenor":  1,
	"squeak": 0.7,
	"giant":  1.5,
	"kitten": 0.6,
}

type speech struct {
	rt     *engine.Runtime
	voices map[string]string
}

func (s *speech) primitives() map[string]engine.BlockFunc {
	return map[string]engine.BlockFunc{
		"text2speech_speakAndWait": s.speakAndWait,
		"text2speech_setVoice":     s.setVoice,
		"text2speech_setLanguage":  s.setLanguage,
	}
}

func (s *speech) hats() map[string]engine.HatInfo { return noHats() }

func (s *speech) voice(t *engine.Target) string {
	if v, ok := s.voices[t.Original().ID]; ok {
		return v
	}
	return defaultVoice
}

// speakDurationMs estimates how long words take to say.
func (s *speech) speakDurationMs(t *engine.Target, words string) float64 {
	n := float64(len([]rune(strings.TrimSpace(words))))
	return math.Max(minSpeechMs, n*msPerRune*voiceRates[s.voice(t)])
}

// speakAndWait returns a promise that settles when speaking ends. The stack
// timer mirrors the promise so the halting time stays observable.
func (s *speech) speakAndWait(args engine.Args, util *engine.BlockUtility) any {
	words := cast.ToString(args["WORDS"])
	duration := s.speakDurationMs(util.Target(), words)
	util.StartStackTimer(duration)
	return util.ResolveAfter(duration, nil, "speak")
}

func (s *speech) setVoice(args engine.Args, util *engine.BlockUtility) any {
	voice := strings.ToLower(cast.ToString(args["VOICE"]))
	if _, ok := voiceRates[voice]; !ok {
		return nil
	}
	if s.voices == nil {
		s.voices = make(map[string]string)
	}
	s.voices[util.Target().Original().ID] = voice
	return nil
}

// languages do not change the timing
func (s *speech) setLanguage(engine.Args, *engine.BlockUtility) any { return nil }
