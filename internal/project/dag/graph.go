package dag

import (
	"fmt"
	"slices"
	"strings"

	"blockvm/internal/blocks"
)

type Graph struct {
	Edges   [][]ProcID // Edges[caller] = callees
	Indeg   []int      // counts only defined procedures
	Present []bool     // defined, not only called
}

// Problem is a call the runtime will silently skip.
type Problem struct {
	Caller string
	Callee string
}

func (p Problem) String() string {
	return fmt.Sprintf("procedure %q calls undefined procedure %q", p.Caller, p.Callee)
}

// BuildGraph wires caller to callee edges. A procedure defined twice keeps
// its first definition, matching how the runtime resolves calls. Self calls
// stay in the graph so that recursion shows up as a cycle.
func BuildGraph(idx ProcIndex, procs []Proc) (Graph, []Problem) {
	nodeCount := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]ProcID, nodeCount),
		Indeg:   make([]int, nodeCount),
		Present: make([]bool, nodeCount),
	}
	calls := make([][]string, nodeCount)
	for _, p := range procs {
		id, ok := idx.NameToID[p.Code]
		if !ok || g.Present[int(id)] {
			continue
		}
		g.Present[int(id)] = true
		calls[int(id)] = p.Calls
	}

	var problems []Problem
	for from := range nodeCount {
		if !g.Present[from] {
			continue
		}
		seen := make(map[ProcID]struct{}, len(calls[from]))
		for _, callee := range calls[from] {
			toID, ok := idx.NameToID[callee]
			if !ok {
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			if !g.Present[int(toID)] {
				problems = append(problems, Problem{Caller: idx.IDToName[from], Callee: callee})
				continue
			}
			g.Edges[from] = append(g.Edges[from], toID)
			g.Indeg[int(toID)]++
		}
		if len(g.Edges[from]) > 1 {
			slices.Sort(g.Edges[from])
		}
	}
	return g, problems
}

// CycleSummary names the procedures left in a cycle, or "" when acyclic.
func CycleSummary(idx ProcIndex, topo *Topo) string {
	if !topo.Cyclic || len(topo.Cycles) == 0 {
		return ""
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, id := range topo.Cycles {
		names = append(names, idx.IDToName[int(id)])
	}
	return strings.Join(names, " -> ")
}

// Analysis summarizes a target's procedures. InCycle lists procedures that
// are recursive or only reachable through recursion.
type Analysis struct {
	Order    []string
	Batches  [][]string
	InCycle  []string
	Problems []Problem
}

// Analyze builds and sorts the call graph of c.
func Analyze(c *blocks.Container) Analysis {
	procs := Procedures(c)
	idx := BuildIndex(procs)
	g, problems := BuildGraph(idx, procs)
	topo := ToposortKahn(g)

	names := func(ids []ProcID) []string {
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = idx.IDToName[int(id)]
		}
		return out
	}
	a := Analysis{Order: names(topo.Order), InCycle: names(topo.Cycles), Problems: problems}
	for _, batch := range topo.Batches {
		a.Batches = append(a.Batches, names(batch))
	}
	return a
}
