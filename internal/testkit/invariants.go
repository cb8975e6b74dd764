// Package testkit holds invariant checks shared by tests that drive a
// runtime through many ticks.
package testkit

import (
	"errors"
	"fmt"
	"math"

	"fortio.org/safecast"

	"blockvm/internal/engine"
)

// CheckRuntimeInvariants runs a minimal set of state invariants on rt between
// two ticks:
//  1. the stage exists and is the first target
//  2. every sprite keeps its direction in (-180, 180], its size in [5, 500]
//     and a costume index in range
//  3. every clone's original is still a live target, and at most maxClones
//     clones exist
//  4. drawable ids are unique
//  5. every live thread runs on a live target
func CheckRuntimeInvariants(rt *engine.Runtime, maxClones int) error {
	if rt == nil {
		return errors.New("nil runtime")
	}
	targets := rt.Targets()
	if len(targets) == 0 || !targets[0].IsStage {
		return errors.New("stage is not the first target")
	}

	live := make(map[*engine.Target]bool, len(targets))
	for _, t := range targets {
		live[t] = true
	}
	var problems []error
	clones := 0
	drawables := make(map[int]string, len(targets))
	for i, t := range targets {
		if i > 0 && t.IsStage {
			problems = append(problems, fmt.Errorf("second stage %q at layer %d", t.Name, i))
		}
		if !t.IsStage {
			if t.Direction <= -180 || t.Direction > 180 || math.IsNaN(t.Direction) {
				problems = append(problems, fmt.Errorf("%s: direction %v", t.Name, t.Direction))
			}
			if t.Size < 5 || t.Size > 500 {
				problems = append(problems, fmt.Errorf("%s: size %v", t.Name, t.Size))
			}
		}
		if n := len(t.Costumes); n > 0 && (t.CurrentCostume < 0 || t.CurrentCostume >= n) {
			problems = append(problems, fmt.Errorf("%s: costume %d of %d", t.Name, t.CurrentCostume, n))
		}
		if !t.IsOriginal {
			clones++
			if !live[t.Original()] {
				problems = append(problems, fmt.Errorf("clone of %s outlived its original", t.Name))
			}
		}
		if t.DrawableID != 0 {
			if other, dup := drawables[t.DrawableID]; dup {
				problems = append(problems, fmt.Errorf("drawable %d shared by %s and %s", t.DrawableID, other, t.Name))
			}
			drawables[t.DrawableID] = t.Name
		}
	}
	count, err := safecast.Conv[uint16](clones)
	if err != nil {
		return fmt.Errorf("clone count overflow: %w", err)
	}
	if maxClones > 0 && int(count) > maxClones {
		problems = append(problems, fmt.Errorf("%d clones, limit %d", count, maxClones))
	}

	for _, th := range rt.Threads() {
		if th.Status == engine.StatusDone {
			continue
		}
		if th.Target != nil && !live[th.Target] {
			problems = append(problems, fmt.Errorf("thread %d runs on removed target %s", th.ID, th.Target.Name))
		}
	}
	return errors.Join(problems...)
}
