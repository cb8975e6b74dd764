// Package dag builds the call graph between the custom procedures of one
// target and orders it.
package dag

import (
	"sort"

	"blockvm/internal/blocks"
)

type ProcID uint32

// Proc is a defined procedure and the proccodes its body calls.
type Proc struct {
	Code  string
	Calls []string
}

type ProcIndex struct {
	NameToID map[string]ProcID
	IDToName []string
}

// BuildIndex collects every defined or called proccode, sorts them and hands
// out IDs in that order.
func BuildIndex(procs []Proc) ProcIndex {
	uniq := make(map[string]struct{}, len(procs))
	for _, p := range procs {
		if p.Code != "" {
			uniq[p.Code] = struct{}{}
		}
		for _, call := range p.Calls {
			if call == "" {
				continue
			}
			uniq[call] = struct{}{}
		}
	}

	codes := make([]string, 0, len(uniq))
	for code := range uniq {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	nameToID := make(map[string]ProcID, len(codes))
	for i, code := range codes {
		nameToID[code] = ProcID(i)
	}

	return ProcIndex{
		NameToID: nameToID,
		IDToName: codes,
	}
}

// Procedures extracts the defined procedures of c. Calls made from ordinary
// scripts are not part of the graph.
func Procedures(c *blocks.Container) []Proc {
	byDef := make(map[string]*Proc)
	var order []string
	for _, id := range c.Scripts() {
		def := c.GetBlock(id)
		if def == nil || def.Opcode != "procedures_definition" {
			continue
		}
		proto := c.GetBlock(def.Inputs[blocks.InputCustomBlock].Block)
		if proto == nil || proto.Mutation == nil {
			continue
		}
		byDef[id] = &Proc{Code: proto.Mutation.ProcCode}
		order = append(order, id)
	}
	for _, id := range c.IDs() {
		b := c.GetBlock(id)
		if b.Opcode != "procedures_call" || b.Mutation == nil {
			continue
		}
		if p := byDef[c.GetTopLevelScript(id)]; p != nil {
			p.Calls = append(p.Calls, b.Mutation.ProcCode)
		}
	}
	out := make([]Proc, 0, len(order))
	for _, id := range order {
		out = append(out, *byDef[id])
	}
	return out
}
