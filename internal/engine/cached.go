package engine

import (
	"fmt"
	"sort"
	"strings"

	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/prof"
)

// Args is the argument map handed to a block implementation. Field values are
// stored by field name, input values by input name.
type Args map[string]any

// VarRef is the argument value of VARIABLE, LIST and BROADCAST_OPTION fields.
type VarRef struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// ArgMutation is the argument key of a block's mutation.
const ArgMutation = "mutation"

type slotKind uint8

const (
	slotNone slotKind = iota
	slotInput
	slotBroadcast
)

// parentSlot locates where an op reports its value: an input of the parent
// (by name) or the parent's BROADCAST_OPTION reference.
type parentSlot struct {
	kind     slotKind
	parentID string
	name     string
}

// timeDependentOpcodes halt their thread for a duration measured by a stack
// timer or promise.
var timeDependentOpcodes = map[string]bool{
	"control_wait":             true,
	"looks_thinkforsecs":       true,
	"looks_sayforsecs":         true,
	"motion_glidesecstoxy":     true,
	"motion_glideto":           true,
	"sound_playuntildone":      true,
	"text2speech_speakAndWait": true,
}

// IsTimeDependent reports whether opcode halts its thread for a duration.
func IsTimeDependent(opcode string) bool { return timeDependentOpcodes[opcode] }

// BlockCached is the compiled, reusable form of one block: its resolved
// implementation, static arguments and the postorder list of operations that
// evaluate the block and its reporter children.
type BlockCached struct {
	ID     string
	Opcode string

	container *blocks.Container
	fields    map[string]blocks.Field
	inputs    map[string]blocks.Input
	mutation  *blocks.Mutation

	fn          BlockFunc
	isHat       bool
	isShadow    bool
	shadowValue any

	args   Args
	parent parentSlot
	ops    []*BlockCached

	timeDependent bool

	// per-tick scratch, cleared after every execute
	distances    []Distance
	own          Distance
	hasOwn       bool
	executed     bool
	continuation bool

	profiler      *prof.Profiler
	profilerFrame *prof.Frame
}

// getCached returns the compiled entry for id, building and storing it on
// first use. It returns nil when id is not in the container.
func getCached(rt *Runtime, c *blocks.Container, id string) *BlockCached {
	if c == nil || id == "" {
		return nil
	}
	if v, ok := c.Cached(id); ok {
		bc, ok := v.(*BlockCached)
		if !ok {
			panic(fmt.Sprintf("engine: execute cache entry %q has type %T", id, v))
		}
		return bc
	}
	b := c.GetBlock(id)
	if b == nil {
		return nil
	}
	bc := newBlockCached(rt, c, b)
	c.StoreCached(id, bc)
	return bc
}

// Compile returns the compiled form of id in c, or nil.
func (r *Runtime) Compile(c *blocks.Container, id string) *BlockCached {
	return getCached(r, c, id)
}

func newBlockCached(rt *Runtime, c *blocks.Container, b *blocks.Block) *BlockCached {
	bc := &BlockCached{
		ID:            b.ID,
		Opcode:        b.Opcode,
		container:     c,
		fields:        b.Fields,
		inputs:        make(map[string]blocks.Input, len(b.Inputs)),
		mutation:      b.Mutation,
		args:          Args{},
		timeDependent: timeDependentOpcodes[b.Opcode],
	}
	for name, in := range b.Inputs {
		// substacks are entered by the sequencer, not evaluated as arguments
		if strings.HasPrefix(name, blocks.InputSubstack) {
			continue
		}
		bc.inputs[name] = in
	}
	if b.Mutation != nil {
		bc.args[ArgMutation] = b.Mutation
	}

	bc.isHat = rt.GetIsHat(b.Opcode)
	bc.fn, _ = rt.GetOpcodeFunction(b.Opcode)

	bc.isShadow = bc.fn == nil && len(b.Fields) == 1 && len(bc.inputs) == 0
	for name, f := range b.Fields {
		switch name {
		case blocks.FieldVariable, blocks.FieldList, blocks.FieldBroadcastOption:
			bc.args[name] = VarRef{ID: f.ID, Name: cast.ToString(f.Value)}
		default:
			bc.args[name] = f.Value
		}
		if bc.isShadow {
			bc.shadowValue = f.Value
		}
	}

	delete(bc.inputs, blocks.InputCustomBlock)

	if in, ok := bc.inputs[blocks.InputBroadcast]; ok {
		bc.args[blocks.FieldBroadcastOption] = VarRef{}
		if in.Block == in.Shadow {
			if shadow := c.GetBlock(in.Shadow); shadow != nil {
				f := shadow.Fields[blocks.FieldBroadcastOption]
				bc.args[blocks.FieldBroadcastOption] = VarRef{ID: f.ID, Name: cast.ToString(f.Value)}
			}
			delete(bc.inputs, blocks.InputBroadcast)
		}
	}

	names := make([]string, 0, len(bc.inputs))
	for name := range bc.inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		in := bc.inputs[name]
		if in.Block == "" {
			continue
		}
		child := getCached(rt, c, in.Block)
		if child == nil || child.isHat {
			continue
		}
		bc.ops = append(bc.ops, child.ops...)
		if name == blocks.InputBroadcast {
			child.parent = parentSlot{kind: slotBroadcast, parentID: bc.ID}
		} else {
			child.parent = parentSlot{kind: slotInput, parentID: bc.ID, name: name}
		}
		if child.isShadow {
			bc.args[name] = child.shadowValue
		}
	}

	if bc.fn != nil {
		bc.ops = append(bc.ops, bc)
	}
	return bc
}

// parentEntry resolves the parent through the owning container's cache.
func (bc *BlockCached) parentEntry() *BlockCached {
	if bc.parent.kind == slotNone {
		return nil
	}
	v, ok := bc.container.Cached(bc.parent.parentID)
	if !ok {
		return nil
	}
	parent, _ := v.(*BlockCached)
	return parent
}

// reportToParent writes v into the parent's argument slot.
func (bc *BlockCached) reportToParent(v any) {
	parent := bc.parentEntry()
	if parent == nil {
		return
	}
	switch bc.parent.kind {
	case slotBroadcast:
		parent.args[blocks.FieldBroadcastOption] = VarRef{Name: cast.ToString(v)}
	case slotInput:
		parent.args[bc.parent.name] = v
	}
}

// parentValue reads back the value this op last wrote into its parent.
func (bc *BlockCached) parentValue() any {
	parent := bc.parentEntry()
	if parent == nil {
		return nil
	}
	if bc.parent.kind == slotBroadcast {
		if ref, ok := parent.args[blocks.FieldBroadcastOption].(VarRef); ok {
			return ref.Name
		}
		return nil
	}
	return parent.args[bc.parent.name]
}

func (bc *BlockCached) pushParentDistance(d Distance) {
	if parent := bc.parentEntry(); parent != nil {
		parent.distances = append(parent.distances, d)
	}
}

func (bc *BlockCached) resetScratch() {
	bc.distances = bc.distances[:0]
	bc.hasOwn = false
	bc.executed = false
	bc.continuation = false
}

// Ops returns the postorder operation list (shared, do not modify).
func (bc *BlockCached) Ops() []*BlockCached { return bc.ops }

// Container returns the container the block was compiled from.
func (bc *BlockCached) Container() *blocks.Container { return bc.container }

// Fields returns the block's fields.
func (bc *BlockCached) Fields() map[string]blocks.Field { return bc.fields }

// IsHat reports whether the block is an event responder.
func (bc *BlockCached) IsHat() bool { return bc.isHat }

// IsShadow reports whether the block folds to a constant.
func (bc *BlockCached) IsShadow() bool { return bc.isShadow }

// ShadowValue returns the folded constant of a shadow block.
func (bc *BlockCached) ShadowValue() any { return bc.shadowValue }

// IsTimeDependent reports whether the opcode halts its thread for a duration.
func (bc *BlockCached) IsTimeDependent() bool { return bc.timeDependent }

// Executed reports whether the op ran during the current execute call.
func (bc *BlockCached) Executed() bool { return bc.executed }

// IsContinuation reports whether a time-dependent op found its stack timer
// already running, i.e. this is a later tick of the same wait.
func (bc *BlockCached) IsContinuation() bool { return bc.continuation }

// ParentID returns the ID of the block this op reports into, if any.
func (bc *BlockCached) ParentID() string { return bc.parent.parentID }

// ParentSlot returns the argument name this op reports into.
func (bc *BlockCached) ParentSlot() string {
	switch bc.parent.kind {
	case slotBroadcast:
		return blocks.FieldBroadcastOption
	case slotInput:
		return bc.parent.name
	}
	return ""
}

// Arg returns one current argument value.
func (bc *BlockCached) Arg(name string) any { return bc.args[name] }

// ArgValues returns a copy of the argument map without the mutation entry.
func (bc *BlockCached) ArgValues() map[string]any {
	out := make(map[string]any, len(bc.args))
	for k, v := range bc.args {
		if k == ArgMutation {
			continue
		}
		out[k] = v
	}
	return out
}

// Distances returns the pairs collected from children during this tick.
func (bc *BlockCached) Distances() []Distance {
	return append([]Distance(nil), bc.distances...)
}

// TraceDistance is the pair the op produced this tick: its own evaluation if
// one exists, otherwise the first pair collected from its children.
func (bc *BlockCached) TraceDistance() (Distance, bool) {
	if bc.hasOwn {
		return bc.own, true
	}
	if len(bc.distances) > 0 {
		return bc.distances[0], true
	}
	return Distance{}, false
}
