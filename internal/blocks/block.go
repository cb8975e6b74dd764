// Package blocks holds the block graph of a target: blocks, their fields and
// inputs, and the container that indexes them.
package blocks

// Block is one node of a script.
type Block struct {
	ID       string
	Opcode   string
	Next     string
	Parent   string
	TopLevel bool
	Shadow   bool
	Fields   map[string]Field
	Inputs   map[string]Input
	Mutation *Mutation
	X, Y     float64
}

// Field is a literal value stored on a block. Variable and broadcast fields
// also carry the referenced ID.
type Field struct {
	Name  string
	ID    string
	Value any
}

// Input connects an argument slot to a child block. Block is the block
// currently plugged in; Shadow is the default value block underneath it. They
// are equal when nothing covers the shadow.
type Input struct {
	Name   string
	Block  string
	Shadow string
}

// Mutation carries procedure prototype data for procedures_* blocks.
type Mutation struct {
	TagName          string
	ProcCode         string
	ArgumentIDs      []string
	ArgumentNames    []string
	ArgumentDefaults []any
	Warp             bool
}

// Clone returns a deep copy of m.
func (m *Mutation) Clone() *Mutation {
	if m == nil {
		return nil
	}
	cp := *m
	cp.ArgumentIDs = append([]string(nil), m.ArgumentIDs...)
	cp.ArgumentNames = append([]string(nil), m.ArgumentNames...)
	cp.ArgumentDefaults = append([]any(nil), m.ArgumentDefaults...)
	return &cp
}

// Field names that reference variables or broadcast messages.
const (
	FieldVariable        = "VARIABLE"
	FieldList            = "LIST"
	FieldBroadcastOption = "BROADCAST_OPTION"
)

// Input names with special handling.
const (
	InputBroadcast   = "BROADCAST_INPUT"
	InputCustomBlock = "custom_block"
	InputSubstack    = "SUBSTACK"
)
