package blocks

import (
	"sort"
	"strconv"
)

// Container indexes the blocks of one target (or of the flyout/monitor pool)
// and owns the execute cache compiled from them. Any edit drops the whole
// cache so stale compiled entries are never observed.
type Container struct {
	blocks  map[string]*Block
	scripts []string
	version uint64
	cache   map[string]any

	// ForceNoGlow suppresses glow requests for blocks run from this container.
	ForceNoGlow bool
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		blocks: make(map[string]*Block),
		cache:  make(map[string]any),
	}
}

// Version increases on every edit.
func (c *Container) Version() uint64 { return c.version }

// Len returns the number of blocks.
func (c *Container) Len() int { return len(c.blocks) }

// GetBlock returns the block with id, or nil.
func (c *Container) GetBlock(id string) *Block {
	if c == nil || id == "" {
		return nil
	}
	return c.blocks[id]
}

// GetNextBlock returns the ID of the block after id, or "".
func (c *Container) GetNextBlock(id string) string {
	b := c.GetBlock(id)
	if b == nil {
		return ""
	}
	return b.Next
}

// GetBranch returns the first block of the n-th substack of id (1-based).
func (c *Container) GetBranch(id string, n int) string {
	b := c.GetBlock(id)
	if b == nil {
		return ""
	}
	name := InputSubstack
	if n > 1 {
		name += strconv.Itoa(n)
	}
	in, ok := b.Inputs[name]
	if !ok {
		return ""
	}
	return in.Block
}

// GetOpcode returns the opcode of id, or "".
func (c *Container) GetOpcode(id string) string {
	if b := c.GetBlock(id); b != nil {
		return b.Opcode
	}
	return ""
}

// Scripts returns the IDs of all top-level blocks in insertion order.
func (c *Container) Scripts() []string {
	return append([]string(nil), c.scripts...)
}

// GetTopLevelScript walks parents up to the script's top block.
func (c *Container) GetTopLevelScript(id string) string {
	b := c.GetBlock(id)
	if b == nil {
		return ""
	}
	for b.Parent != "" {
		parent := c.GetBlock(b.Parent)
		if parent == nil {
			break
		}
		b = parent
	}
	return b.ID
}

// CreateBlock adds b. Adding an ID that already exists is a no-op.
func (c *Container) CreateBlock(b *Block) {
	if b == nil || b.ID == "" {
		return
	}
	if _, ok := c.blocks[b.ID]; ok {
		return
	}
	if b.Fields == nil {
		b.Fields = make(map[string]Field)
	}
	if b.Inputs == nil {
		b.Inputs = make(map[string]Input)
	}
	c.blocks[b.ID] = b
	if b.TopLevel {
		c.scripts = append(c.scripts, b.ID)
	}
	c.ResetCache()
}

// DeleteBlock removes id together with its input children and the rest of
// its stack below it.
func (c *Container) DeleteBlock(id string) {
	b := c.GetBlock(id)
	if b == nil {
		return
	}
	for _, in := range b.Inputs {
		if in.Block != "" && in.Block != id {
			c.DeleteBlock(in.Block)
		}
		if in.Shadow != "" && in.Shadow != in.Block {
			c.DeleteBlock(in.Shadow)
		}
	}
	if b.Next != "" {
		c.DeleteBlock(b.Next)
	}
	if parent := c.GetBlock(b.Parent); parent != nil {
		if parent.Next == id {
			parent.Next = ""
		}
		for name, in := range parent.Inputs {
			if in.Block == id {
				in.Block = in.Shadow
				if in.Shadow == id {
					in.Block, in.Shadow = "", ""
				}
				parent.Inputs[name] = in
			}
		}
	}
	delete(c.blocks, id)
	c.removeScript(id)
	c.ResetCache()
}

// ChangeField sets a field value. Variable-like fields also take an ID.
func (c *Container) ChangeField(id, name string, value any, refID string) bool {
	b := c.GetBlock(id)
	if b == nil {
		return false
	}
	f, ok := b.Fields[name]
	if !ok {
		return false
	}
	f.Value = value
	if refID != "" {
		f.ID = refID
	}
	b.Fields[name] = f
	c.ResetCache()
	return true
}

// SetInput plugs child into parent's input slot, keeping the slot's shadow.
func (c *Container) SetInput(parentID, name, childID string) bool {
	parent := c.GetBlock(parentID)
	if parent == nil {
		return false
	}
	in := parent.Inputs[name]
	in.Name = name
	in.Block = childID
	parent.Inputs[name] = in
	if child := c.GetBlock(childID); child != nil {
		child.Parent = parentID
		if child.TopLevel {
			child.TopLevel = false
			c.removeScript(childID)
		}
	}
	c.ResetCache()
	return true
}

// ResetCache drops every compiled entry.
func (c *Container) ResetCache() {
	c.version++
	if len(c.cache) > 0 {
		c.cache = make(map[string]any)
	}
}

// Cached returns the compiled entry stored for id.
func (c *Container) Cached(id string) (any, bool) {
	v, ok := c.cache[id]
	return v, ok
}

// StoreCached stores a compiled entry for id.
func (c *Container) StoreCached(id string, v any) {
	if c.cache == nil {
		c.cache = make(map[string]any)
	}
	c.cache[id] = v
}

// CachedLen returns the number of compiled entries.
func (c *Container) CachedLen() int { return len(c.cache) }

// ProcedureDefinition returns the ID of the procedures_definition hat whose
// prototype declares proccode.
func (c *Container) ProcedureDefinition(proccode string) string {
	for _, id := range c.scripts {
		def := c.blocks[id]
		if def == nil || def.Opcode != "procedures_definition" {
			continue
		}
		in, ok := def.Inputs[InputCustomBlock]
		if !ok {
			continue
		}
		proto := c.blocks[in.Block]
		if proto != nil && proto.Mutation != nil && proto.Mutation.ProcCode == proccode {
			return id
		}
	}
	return ""
}

// ProcedureParams returns the parameter names, IDs and defaults of proccode.
func (c *Container) ProcedureParams(proccode string) (names, ids []string, defaults []any, ok bool) {
	def := c.GetBlock(c.ProcedureDefinition(proccode))
	if def == nil {
		return nil, nil, nil, false
	}
	proto := c.GetBlock(def.Inputs[InputCustomBlock].Block)
	if proto == nil || proto.Mutation == nil {
		return nil, nil, nil, false
	}
	m := proto.Mutation
	return m.ArgumentNames, m.ArgumentIDs, m.ArgumentDefaults, true
}

// IDs returns every block ID in sorted order.
func (c *Container) IDs() []string {
	ids := make([]string, 0, len(c.blocks))
	for id := range c.blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Duplicate returns a deep copy with an empty cache.
func (c *Container) Duplicate() *Container {
	out := NewContainer()
	out.ForceNoGlow = c.ForceNoGlow
	for _, id := range c.IDs() {
		b := *c.blocks[id]
		b.Fields = make(map[string]Field, len(c.blocks[id].Fields))
		for k, v := range c.blocks[id].Fields {
			b.Fields[k] = v
		}
		b.Inputs = make(map[string]Input, len(c.blocks[id].Inputs))
		for k, v := range c.blocks[id].Inputs {
			b.Inputs[k] = v
		}
		b.Mutation = c.blocks[id].Mutation.Clone()
		out.blocks[id] = &b
	}
	out.scripts = append([]string(nil), c.scripts...)
	return out
}

func (c *Container) removeScript(id string) {
	for i, s := range c.scripts {
		if s == id {
			c.scripts = append(c.scripts[:i], c.scripts[i+1:]...)
			return
		}
	}
}
