package trace

import (
	"fmt"
	"slices"
	"strings"
)

// Level controls tracing verbosity. Each level keeps the scopes of the
// levels below it.
type Level uint8

const (
	LevelOff   Level = iota
	LevelError       // warnings and crash dumps
	LevelRun         // program run boundaries
	LevelTick        // scheduler ticks and threads
	LevelDebug       // everything including block-level
)

var levelNames = []string{"off", "error", "run", "tick", "debug"}

// widest scope kept by each level; LevelOff and LevelError keep none.
var levelScopes = [...]Scope{LevelRun: ScopeRun, LevelTick: ScopeThread, LevelDebug: ScopeBlock}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

func ParseLevel(s string) (Level, error) {
	i := slices.Index(levelNames, strings.ToLower(s))
	if i < 0 {
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames, "|"))
	}
	return Level(i), nil
}

// ShouldEmit reports whether events of scope pass at level l.
func (l Level) ShouldEmit(scope Scope) bool {
	if l < LevelRun || int(l) >= len(levelScopes) {
		return false
	}
	return scope <= levelScopes[l]
}

// accept reports whether a tracer at level l keeps ev. Warnings and
// heartbeats pass at every level but off.
func (l Level) accept(ev *Event) bool {
	if l == LevelOff {
		return false
	}
	if ev.Kind == KindHeartbeat || ev.Kind == KindWarning {
		return true
	}
	return l.ShouldEmit(ev.Scope)
}
