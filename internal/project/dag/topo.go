package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo orders callers before callees. Procedures on or behind a cycle are
// left out of Order and listed in Cycles instead.
type Topo struct {
	Order   []ProcID
	Batches [][]ProcID // callers whose callees all come later
	Cyclic  bool
	Cycles  []ProcID
}

func procID(i int) ProcID {
	id, err := safecast.Conv[ProcID](i)
	if err != nil {
		panic(fmt.Errorf("procedure id overflow: %w", err))
	}
	return id
}

// ToposortKahn peels the call graph one level at a time: the first batch
// holds procedures nothing calls, the next those called only from the first,
// and so on. Whatever still has callers after that sits on or behind a cycle.
func ToposortKahn(g Graph) *Topo {
	callers := slices.Clone(g.Indeg)
	topo := &Topo{}

	var level []ProcID
	for i, defined := range g.Present {
		if defined && callers[i] == 0 {
			level = append(level, procID(i))
		}
	}

	for len(level) > 0 {
		slices.Sort(level)
		topo.Batches = append(topo.Batches, level)
		topo.Order = append(topo.Order, level...)

		var freed []ProcID
		for _, caller := range level {
			for _, callee := range g.Edges[caller] {
				if !g.Present[callee] {
					continue
				}
				if callers[callee]--; callers[callee] == 0 {
					freed = append(freed, callee)
				}
			}
		}
		level = freed
	}

	for i, defined := range g.Present {
		if defined && callers[i] > 0 {
			topo.Cycles = append(topo.Cycles, procID(i))
		}
	}
	topo.Cyclic = len(topo.Cycles) > 0
	return topo
}
