package blocks

import "testing"

func sample(t *testing.T) *Container {
	t.Helper()
	c := NewContainer()
	c.CreateBlock(&Block{ID: "hat", Opcode: "event_whenflagclicked", TopLevel: true, Next: "if"})
	c.CreateBlock(&Block{ID: "if", Opcode: "control_if", Parent: "hat", Next: "say",
		Inputs: map[string]Input{
			"CONDITION": {Name: "CONDITION", Block: "lt"},
			"SUBSTACK":  {Name: "SUBSTACK", Block: "move"},
		}})
	c.CreateBlock(&Block{ID: "lt", Opcode: "operator_lt", Parent: "if"})
	c.CreateBlock(&Block{ID: "move", Opcode: "motion_movesteps", Parent: "if"})
	c.CreateBlock(&Block{ID: "say", Opcode: "looks_say", Parent: "if"})
	return c
}

func TestNavigation(t *testing.T) {
	c := sample(t)
	if got := c.GetNextBlock("hat"); got != "if" {
		t.Fatalf("next of hat: %q", got)
	}
	if got := c.GetBranch("if", 1); got != "move" {
		t.Fatalf("branch 1: %q", got)
	}
	if got := c.GetBranch("if", 2); got != "" {
		t.Fatalf("branch 2 should be empty, got %q", got)
	}
	if got := c.GetTopLevelScript("lt"); got != "hat" {
		t.Fatalf("top of lt: %q", got)
	}
	if scripts := c.Scripts(); len(scripts) != 1 || scripts[0] != "hat" {
		t.Fatalf("scripts: %v", scripts)
	}
}

func TestEditsResetCache(t *testing.T) {
	c := sample(t)
	c.StoreCached("if", 1)
	v := c.Version()

	c.ChangeField("lt", "X", 1, "")
	if _, ok := c.Cached("if"); !ok {
		t.Fatalf("unknown field edit must not reset the cache")
	}

	c.CreateBlock(&Block{ID: "n", Opcode: "math_number", Shadow: true,
		Fields: map[string]Field{"NUM": {Name: "NUM", Value: "5"}}})
	if _, ok := c.Cached("if"); ok {
		t.Fatalf("create must reset the cache")
	}
	if c.Version() <= v {
		t.Fatalf("version did not advance")
	}

	c.StoreCached("if", 1)
	c.ChangeField("n", "NUM", "6", "")
	if c.CachedLen() != 0 {
		t.Fatalf("field edit must reset the cache")
	}
}

func TestDeleteBlockRemovesSubtree(t *testing.T) {
	c := sample(t)
	c.DeleteBlock("if")
	for _, id := range []string{"if", "lt", "move", "say"} {
		if c.GetBlock(id) != nil {
			t.Fatalf("%s should be deleted", id)
		}
	}
	if c.GetNextBlock("hat") != "" {
		t.Fatalf("hat should lose its next link")
	}
}

func TestProcedureLookup(t *testing.T) {
	c := NewContainer()
	c.CreateBlock(&Block{ID: "def", Opcode: "procedures_definition", TopLevel: true,
		Inputs: map[string]Input{InputCustomBlock: {Name: InputCustomBlock, Block: "proto", Shadow: "proto"}}})
	c.CreateBlock(&Block{ID: "proto", Opcode: "procedures_prototype", Parent: "def", Shadow: true,
		Mutation: &Mutation{ProcCode: "jump %s", ArgumentIDs: []string{"a1"}, ArgumentNames: []string{"height"}, ArgumentDefaults: []any{""}}})

	if got := c.ProcedureDefinition("jump %s"); got != "def" {
		t.Fatalf("definition: %q", got)
	}
	names, ids, _, ok := c.ProcedureParams("jump %s")
	if !ok || names[0] != "height" || ids[0] != "a1" {
		t.Fatalf("params: %v %v %v", names, ids, ok)
	}
	if _, _, _, ok := c.ProcedureParams("missing"); ok {
		t.Fatalf("missing procedure must report !ok")
	}
}
