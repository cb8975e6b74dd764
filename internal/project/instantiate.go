package project

import (
	"sort"

	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/engine"
	"blockvm/internal/render"
)

// NewRenderer returns a software renderer sized to the project's stage.
func (p *Project) NewRenderer() *render.Renderer {
	return render.New(p.Stage.Width, p.Stage.Height)
}

// Instantiate adds fresh targets for every project target to rt, stage first
// and sprites by layer order, and registers the monitors. When r is not nil it
// becomes the runtime's renderer before any drawable is created. The project
// itself is left untouched.
func (p *Project) Instantiate(rt *engine.Runtime, r engine.Renderer) []*engine.Target {
	if r != nil {
		rt.Renderer = r
	}
	order := make([]int, 0, len(p.Targets))
	for i := range p.Targets {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := &p.Targets[order[a]], &p.Targets[order[b]]
		if ta.IsStage != tb.IsStage {
			return ta.IsStage
		}
		return ta.LayerOrder < tb.LayerOrder
	})

	out := make([]*engine.Target, 0, len(order))
	for _, i := range order {
		t := p.Targets[i].newTarget()
		rt.AddTarget(t)
		out = append(out, t)
	}
	for _, m := range p.Monitors {
		rt.MonitorBlocks.CreateBlock(&blocks.Block{
			ID:       m.ID,
			Opcode:   m.Opcode,
			TopLevel: true,
			Fields:   copyFields(m.Fields),
		})
		if m.TargetID != "" {
			rt.SetMonitorTarget(m.ID, m.TargetID)
		}
	}
	return out
}

func (pt *Target) newTarget() *engine.Target {
	name := pt.Name
	if pt.IsStage && name == "" {
		name = "Stage"
	}
	t := engine.NewTarget(pt.ID, name, pt.IsStage, pt.container())
	for _, c := range pt.Costumes {
		costume := engine.Costume{
			Name:    c.Name,
			Width:   c.Width,
			Height:  c.Height,
			CenterX: float64(c.Width) / 2,
			CenterY: float64(c.Height) / 2,
			Color:   cast.ToRGB(c.Color),
		}
		if c.CenterX != nil {
			costume.CenterX = *c.CenterX
		}
		if c.CenterY != nil {
			costume.CenterY = *c.CenterY
		}
		t.Costumes = append(t.Costumes, costume)
	}
	for _, s := range pt.Sounds {
		t.Sounds = append(t.Sounds, engine.Sound{Name: s.Name, DurationMs: s.DurationMs})
	}
	t.CurrentCostume = pt.CurrentCostume
	t.X, t.Y = pt.X, pt.Y
	if pt.Direction != nil {
		t.SetDirection(*pt.Direction)
	}
	if pt.Size != nil {
		t.SetSize(*pt.Size)
	}
	if pt.Visible != nil {
		t.SetVisible(*pt.Visible)
	}

	for id, v := range pt.Variables {
		t.Variables[id] = &engine.Variable{ID: id, Name: v.Name, Type: engine.VarScalar, Value: v.Value}
	}
	for id, l := range pt.Lists {
		items := append([]any{}, l.Value...)
		t.Variables[id] = &engine.Variable{ID: id, Name: l.Name, Type: engine.VarList, Value: items}
	}
	for id, name := range pt.Broadcasts {
		t.Variables[id] = &engine.Variable{ID: id, Name: name, Type: engine.VarBroadcast, Value: name}
	}
	return t
}

// container builds a block container, adding blocks in ID order so that the
// script order is stable across runs.
func (pt *Target) container() *blocks.Container {
	c := blocks.NewContainer()
	ids := make([]string, 0, len(pt.Blocks))
	for id := range pt.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := pt.Blocks[id]
		nb := &blocks.Block{
			ID:       id,
			Opcode:   b.Opcode,
			Next:     b.Next,
			Parent:   b.Parent,
			TopLevel: b.TopLevel,
			Shadow:   b.Shadow,
			Fields:   copyFields(b.Fields),
			Inputs:   make(map[string]blocks.Input, len(b.Inputs)),
			X:        b.X,
			Y:        b.Y,
		}
		for name, in := range b.Inputs {
			nb.Inputs[name] = blocks.Input{Name: name, Block: in.Block, Shadow: in.Shadow}
		}
		if m := b.Mutation; m != nil {
			nb.Mutation = (&blocks.Mutation{
				TagName:          "mutation",
				ProcCode:         m.ProcCode,
				ArgumentIDs:      m.ArgumentIDs,
				ArgumentNames:    m.ArgumentNames,
				ArgumentDefaults: m.ArgumentDefaults,
				Warp:             m.Warp,
			}).Clone()
		}
		c.CreateBlock(nb)
	}
	return c
}

func copyFields(in map[string]Field) map[string]blocks.Field {
	out := make(map[string]blocks.Field, len(in))
	for name, f := range in {
		out[name] = blocks.Field{Name: name, ID: f.ID, Value: f.Value}
	}
	return out
}
