package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate checks that the project can be instantiated: exactly one stage,
// unique target IDs and names, costumes with a size and a color, and block
// links that point at blocks of the same target. All problems are reported
// together, each wrapping ErrInvalid.
func (p *Project) Validate() error {
	if len(p.Targets) == 0 {
		return ErrNoTargets
	}
	var problems []error
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if p.Stage.Width <= 0 || p.Stage.Height <= 0 {
		report("stage size %dx%d", p.Stage.Width, p.Stage.Height)
	}
	stages := 0
	ids := make(map[string]bool, len(p.Targets))
	names := make(map[string]bool, len(p.Targets))
	for i := range p.Targets {
		t := &p.Targets[i]
		if t.IsStage {
			stages++
		}
		switch {
		case t.ID == "":
			report("target %d has no id", i)
		case ids[t.ID]:
			report("duplicate target id %q", t.ID)
		}
		ids[t.ID] = true
		if names[t.Name] {
			report("duplicate target name %q", t.Name)
		}
		names[t.Name] = true
		t.validate(report)
	}
	if stages != 1 {
		report("want exactly one stage, got %d", stages)
	}
	for _, m := range p.Monitors {
		if m.ID == "" || m.Opcode == "" {
			report("monitor %q needs an id and an opcode", m.ID)
		}
		if m.TargetID != "" && !ids[m.TargetID] {
			report("monitor %q watches unknown target %q", m.ID, m.TargetID)
		}
	}
	return errors.Join(problems...)
}

func (t *Target) validate(report func(string, ...any)) {
	where := t.Name
	if where == "" {
		where = t.ID
	}
	for _, c := range t.Costumes {
		if c.Width <= 0 || c.Height <= 0 {
			report("%s: costume %q has size %dx%d", where, c.Name, c.Width, c.Height)
		}
		if !validColor(c.Color) {
			report("%s: costume %q has color %q, want #rrggbb", where, c.Name, c.Color)
		}
	}
	if len(t.Costumes) > 0 && (t.CurrentCostume < 0 || t.CurrentCostume >= len(t.Costumes)) {
		report("%s: current costume %d out of range", where, t.CurrentCostume)
	}
	for _, s := range t.Sounds {
		if s.DurationMs < 0 {
			report("%s: sound %q has negative duration", where, s.Name)
		}
	}

	// Sorted so that the error text does not depend on map order.
	ids := make([]string, 0, len(t.Blocks))
	for id := range t.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := t.Blocks[id]
		if b.Opcode == "" {
			report("%s: block %q has no opcode", where, id)
		}
		link := func(kind, ref string) {
			if ref == "" {
				return
			}
			if _, ok := t.Blocks[ref]; !ok {
				report("%s: block %q %s %q does not exist", where, id, kind, ref)
			}
		}
		link("next", b.Next)
		link("parent", b.Parent)
		for name, in := range b.Inputs {
			link("input "+name, in.Block)
			link("input "+name+" shadow", in.Shadow)
		}
		if b.Next == id {
			report("%s: block %q is its own next block", where, id)
		}
		if strings.HasPrefix(b.Opcode, "procedures_") && b.Opcode != "procedures_definition" && b.Mutation == nil {
			report("%s: block %q (%s) has no mutation", where, id, b.Opcode)
		}
	}
}

func validColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
