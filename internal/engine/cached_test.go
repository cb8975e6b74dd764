package engine

import (
	"testing"

	"blockvm/internal/blocks"
)

// buildIf creates: if <(a < b) and (c > d)> then ... with number shadows.
func buildIf(f *fixture) {
	f.add(&blocks.Block{ID: "if", Opcode: "control_if", TopLevel: true, Inputs: map[string]blocks.Input{
		"CONDITION": {Name: "CONDITION", Block: "and"},
		"SUBSTACK":  {Name: "SUBSTACK", Block: "body"},
	}})
	f.add(&blocks.Block{ID: "body", Opcode: "control_wait", Parent: "if"})
	f.add(&blocks.Block{ID: "and", Opcode: "operator_and", Parent: "if", Inputs: map[string]blocks.Input{
		"OPERAND1": {Name: "OPERAND1", Block: "lt"},
		"OPERAND2": {Name: "OPERAND2", Block: "gt"},
	}})
	f.add(&blocks.Block{ID: "lt", Opcode: "operator_lt", Parent: "and", Inputs: map[string]blocks.Input{
		"OPERAND1": f.number("n1", "OPERAND1", "5"),
		"OPERAND2": f.number("n2", "OPERAND2", "3"),
	}})
	f.add(&blocks.Block{ID: "gt", Opcode: "operator_gt", Parent: "and", Inputs: map[string]blocks.Input{
		"OPERAND1": f.number("n3", "OPERAND1", "1"),
		"OPERAND2": f.number("n4", "OPERAND2", "2"),
	}})
}

func opIDs(bc *BlockCached) []string {
	var out []string
	for _, op := range bc.Ops() {
		out = append(out, op.ID+"/"+op.Opcode+"<-"+op.ParentID()+"."+op.ParentSlot())
	}
	return out
}

func TestCompileIsCachedAndIdempotent(t *testing.T) {
	f := newFixture(t)
	buildIf(f)
	c := f.sprite.Blocks

	first := f.rt.Compile(c, "if")
	if again := f.rt.Compile(c, "if"); again != first {
		t.Fatalf("second lookup must return the cached entry")
	}
	want := opIDs(first)

	c.ResetCache()
	rebuilt := f.rt.Compile(c, "if")
	if rebuilt == first {
		t.Fatalf("cache reset must rebuild the entry")
	}
	got := opIDs(rebuilt)
	if len(got) != len(want) {
		t.Fatalf("op count changed: %v vs %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d: %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOpsArePostorder(t *testing.T) {
	f := newFixture(t)
	buildIf(f)
	bc := f.rt.Compile(f.sprite.Blocks, "if")

	pos := make(map[string]int)
	for i, op := range bc.Ops() {
		pos[op.ID] = i
	}
	if len(pos) != 4 {
		t.Fatalf("expected lt, gt, and, if; got %v", opIDs(bc))
	}
	for _, op := range bc.Ops() {
		parent := op.ParentID()
		if parent == "" {
			continue
		}
		if pos[op.ID] >= pos[parent] {
			t.Fatalf("%s at %d must precede its consumer %s at %d", op.ID, pos[op.ID], parent, pos[parent])
		}
	}
	if last := bc.Ops()[len(bc.Ops())-1]; last != bc {
		t.Fatalf("block with an implementation must be its own last op")
	}
	if _, ok := pos["body"]; ok {
		t.Fatalf("substack blocks are not operations of their parent")
	}
}

func TestShadowsFoldToArguments(t *testing.T) {
	f := newFixture(t)
	buildIf(f)
	lt := f.rt.Compile(f.sprite.Blocks, "lt")
	if lt.Arg("OPERAND1") != "5" || lt.Arg("OPERAND2") != "3" {
		t.Fatalf("shadow values not folded: %v", lt.ArgValues())
	}
	n := f.rt.Compile(f.sprite.Blocks, "n1")
	if !n.IsShadow() || n.ShadowValue() != "5" || len(n.Ops()) != 0 {
		t.Fatalf("math_number must compile to a constant")
	}
}

func TestBroadcastShadowResolvesAtCompileTime(t *testing.T) {
	f := newFixture(t)
	f.rt.Register("event_broadcast", func(Args, *BlockUtility) any { return nil })
	f.add(&blocks.Block{ID: "b", Opcode: "event_broadcast", TopLevel: true, Inputs: map[string]blocks.Input{
		blocks.InputBroadcast: {Name: blocks.InputBroadcast, Block: "menu", Shadow: "menu"},
	}})
	f.add(&blocks.Block{ID: "menu", Opcode: "event_broadcast_menu", Shadow: true, Parent: "b",
		Fields: map[string]blocks.Field{blocks.FieldBroadcastOption: {Name: blocks.FieldBroadcastOption, ID: "m1", Value: "go"}}})

	bc := f.rt.Compile(f.sprite.Blocks, "b")
	ref, ok := bc.Arg(blocks.FieldBroadcastOption).(VarRef)
	if !ok || ref.ID != "m1" || ref.Name != "go" {
		t.Fatalf("broadcast option: %#v", bc.Arg(blocks.FieldBroadcastOption))
	}
	if len(bc.Ops()) != 1 {
		t.Fatalf("only the broadcast block should be an op: %v", opIDs(bc))
	}
}

func TestVariableFieldsBecomeRefs(t *testing.T) {
	f := newFixture(t)
	f.add(&blocks.Block{ID: "v", Opcode: "data_variable", TopLevel: true,
		Fields: map[string]blocks.Field{blocks.FieldVariable: {Name: blocks.FieldVariable, ID: "var1", Value: "score"}}})
	bc := f.rt.Compile(f.sprite.Blocks, "v")
	if got := bc.Arg(blocks.FieldVariable); got != (VarRef{ID: "var1", Name: "score"}) {
		t.Fatalf("variable field: %#v", got)
	}
}
