package primitives

import (
	"strconv"
	"testing"

	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
	"blockvm/internal/engine"
	"blockvm/internal/sequencer"
)

// node describes a block for the script builder. Input values are literals
// (compiled to text shadows), *node reporters, []*node substacks or menu
// shadows.
type node struct {
	op       string
	fields   map[string]blocks.Field
	inputs   map[string]any
	mutation *blocks.Mutation
}

type menu struct {
	opcode, field, id string
	value             any
}

func blk(op string) *node {
	return &node{op: op, fields: map[string]blocks.Field{}, inputs: map[string]any{}}
}

func (n *node) in(name string, v any) *node { n.inputs[name] = v; return n }

func (n *node) field(name string, v any) *node {
	n.fields[name] = blocks.Field{Name: name, Value: v}
	return n
}

func (n *node) ref(name, id, value string) *node {
	n.fields[name] = blocks.Field{Name: name, ID: id, Value: value}
	return n
}

func (n *node) mutate(m *blocks.Mutation) *node { n.mutation = m; return n }

type harness struct {
	t      *testing.T
	rt     *engine.Runtime
	clock  *asyncrt.VirtualClock
	seq    *sequencer.Sequencer
	stage  *engine.Target
	sprite *engine.Target
	nextID int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := asyncrt.NewVirtualClock(0)
	rt := engine.NewRuntime(engine.Options{Clock: clock, Async: asyncrt.Config{Deterministic: true}, Seed: 1})
	Register(rt)
	h := &harness{t: t, rt: rt, clock: clock}
	h.stage = engine.NewTarget("stage", "Stage", true, nil)
	h.sprite = engine.NewTarget("s1", "Sprite1", false, nil)
	rt.AddTarget(h.stage)
	rt.AddTarget(h.sprite)
	h.seq = sequencer.New(rt, sequencer.Options{})
	return h
}

func (h *harness) id() string {
	h.nextID++
	return "b" + strconv.Itoa(h.nextID)
}

// script adds a top-level script to the sprite and returns its top ID.
func (h *harness) script(hat *node, body ...*node) string {
	return h.scriptOn(h.sprite, hat, body...)
}

func (h *harness) scriptOn(t *engine.Target, hat *node, body ...*node) string {
	top := h.id()
	b := h.newBlock(top, hat, "")
	b.TopLevel = true
	t.Blocks.CreateBlock(b)
	h.addInputs(t.Blocks, b, hat)
	b.Next = h.chain(t.Blocks, top, body)
	return top
}

func (h *harness) chain(c *blocks.Container, parent string, nodes []*node) string {
	first, prev := "", parent
	for i, n := range nodes {
		id := h.build(c, prev, n)
		if i == 0 {
			first = id
		} else {
			c.GetBlock(prev).Next = id
		}
		prev = id
	}
	return first
}

func (h *harness) newBlock(id string, n *node, parent string) *blocks.Block {
	fields := make(map[string]blocks.Field, len(n.fields))
	for k, v := range n.fields {
		fields[k] = v
	}
	return &blocks.Block{ID: id, Opcode: n.op, Parent: parent, Fields: fields, Mutation: n.mutation}
}

func (h *harness) build(c *blocks.Container, parent string, n *node) string {
	id := h.id()
	b := h.newBlock(id, n, parent)
	c.CreateBlock(b)
	h.addInputs(c, b, n)
	return id
}

func (h *harness) addInputs(c *blocks.Container, b *blocks.Block, n *node) {
	for name, v := range n.inputs {
		switch x := v.(type) {
		case *node:
			child := h.build(c, b.ID, x)
			b.Inputs[name] = blocks.Input{Name: name, Block: child}
		case []*node:
			b.Inputs[name] = blocks.Input{Name: name, Block: h.chain(c, b.ID, x)}
		case menu:
			id := h.id()
			c.CreateBlock(&blocks.Block{ID: id, Opcode: x.opcode, Parent: b.ID, Shadow: true,
				Fields: map[string]blocks.Field{x.field: {Name: x.field, ID: x.id, Value: x.value}}})
			b.Inputs[name] = blocks.Input{Name: name, Block: id, Shadow: id}
		default:
			id := h.id()
			c.CreateBlock(&blocks.Block{ID: id, Opcode: "text", Parent: b.ID, Shadow: true,
				Fields: map[string]blocks.Field{"TEXT": {Name: "TEXT", Value: v}}})
			b.Inputs[name] = blocks.Input{Name: name, Block: id, Shadow: id}
		}
	}
	c.ResetCache()
}

func (h *harness) variable(t *engine.Target, id, name string, typ engine.VariableType, v any) *engine.Variable {
	variable := &engine.Variable{ID: id, Name: name, Type: typ, Value: v}
	t.Variables[id] = variable
	return variable
}

// ticks runs n ticks of 33ms each.
func (h *harness) ticks(n int) {
	for range n {
		h.seq.Tick()
		h.clock.Advance(33)
	}
}

func flag() *node { return blk("event_whenflagclicked") }

func setVar(id string, v any) *node {
	return blk("data_setvariableto").ref("VARIABLE", id, id).in("VALUE", v)
}

func changeVar(id string, v any) *node {
	return blk("data_changevariableby").ref("VARIABLE", id, id).in("VALUE", v)
}
