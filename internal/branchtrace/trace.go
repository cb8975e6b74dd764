package branchtrace

import (
	"sort"

	"blockvm/internal/engine"
)

// VariableInfo is a variable's state at the moment of a trace.
type VariableInfo struct {
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Type  string `json:"type" msgpack:"type"`
	Value any    `json:"value" msgpack:"value"`
}

// TargetInfo is a target's observable state at the moment of a trace. Motion
// and visibility are left zero for the stage.
type TargetInfo struct {
	ID             string                  `json:"id" msgpack:"id"`
	Name           string                  `json:"name" msgpack:"name"`
	IsStage        bool                    `json:"isStage,omitempty" msgpack:"is_stage,omitempty"`
	IsClone        bool                    `json:"isClone,omitempty" msgpack:"is_clone,omitempty"`
	X              float64                 `json:"x" msgpack:"x"`
	Y              float64                 `json:"y" msgpack:"y"`
	Direction      float64                 `json:"direction" msgpack:"direction"`
	Size           float64                 `json:"size" msgpack:"size"`
	Visible        bool                    `json:"visible" msgpack:"visible"`
	CurrentCostume int                     `json:"currentCostume" msgpack:"current_costume"`
	Variables      map[string]VariableInfo `json:"variables" msgpack:"variables"`
}

// Trace is the record of one block key.
type Trace struct {
	Key         string                `json:"key" msgpack:"key"`
	BlockID     string                `json:"blockId" msgpack:"block_id"`
	Opcode      string                `json:"opcode" msgpack:"opcode"`
	TargetName  string                `json:"target" msgpack:"target"`
	Distance    engine.Distance       `json:"distance" msgpack:"distance"`
	HasDistance bool                  `json:"hasDistance" msgpack:"has_distance"`
	ArgValues   map[string]any        `json:"argValues" msgpack:"arg_values"`
	Fields      map[string]any        `json:"fields,omitempty" msgpack:"fields,omitempty"`
	Targets     map[string]TargetInfo `json:"targets" msgpack:"targets"`
	Hits        int                   `json:"hits" msgpack:"hits"`
}

// TargetLister supplies the targets whose state traces snapshot.
// *engine.Runtime satisfies it.
type TargetLister interface {
	Targets() []*engine.Target
}

func newTrace(key string, op *engine.BlockCached, target *engine.Target, targets TargetLister) *Trace {
	tr := &Trace{
		Key:       key,
		BlockID:   op.ID,
		Opcode:    op.Opcode,
		ArgValues: normalizeArgs(op.ArgValues()),
		Targets:   snapshot(targets),
		Hits:      1,
	}
	if target != nil {
		tr.TargetName = target.Name
	}
	tr.Distance, tr.HasDistance = op.TraceDistance()
	if fields := op.Fields(); len(fields) > 0 {
		tr.Fields = make(map[string]any, len(fields))
		for name, f := range fields {
			tr.Fields[name] = f.Value
		}
	}
	return tr
}

// normalizeArgs flattens variable references into plain maps so the record
// encodes the same way in JSON and msgpack.
func normalizeArgs(args map[string]any) map[string]any {
	for k, v := range args {
		if ref, ok := v.(engine.VarRef); ok {
			args[k] = map[string]any{"id": ref.ID, "name": ref.Name}
		}
	}
	return args
}

func snapshot(targets TargetLister) map[string]TargetInfo {
	if targets == nil {
		return nil
	}
	all := targets.Targets()
	out := make(map[string]TargetInfo, len(all))
	for _, t := range all {
		info := TargetInfo{
			ID:             t.ID,
			Name:           t.Name,
			IsStage:        t.IsStage,
			IsClone:        !t.IsOriginal,
			CurrentCostume: t.CurrentCostume,
			Variables:      make(map[string]VariableInfo, len(t.Variables)),
		}
		if !t.IsStage {
			info.X, info.Y = t.X, t.Y
			info.Direction = t.Direction
			info.Size = t.Size
			info.Visible = t.Visible
		}
		for id, v := range t.Variables {
			value := v.Value
			if list, ok := value.([]any); ok {
				value = append([]any(nil), list...)
			}
			info.Variables[id] = VariableInfo{ID: id, Name: v.Name, Type: string(v.Type), Value: value}
		}
		out[t.ID] = info
	}
	return out
}

// TargetIDs returns the snapshot's target IDs in sorted order.
func (tr *Trace) TargetIDs() []string {
	ids := make([]string, 0, len(tr.Targets))
	for id := range tr.Targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
