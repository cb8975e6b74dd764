package branchtrace

import (
	"bytes"
	"path/filepath"
	"testing"

	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type stubSequencer struct{ rt *engine.Runtime }

func (s *stubSequencer) Runtime() *engine.Runtime               { return s.rt }
func (s *stubSequencer) RetireThread(t *engine.Thread)          { t.Retire() }
func (s *stubSequencer) StepToBranch(*engine.Thread, int, bool) {}
func (s *stubSequencer) StepToProcedure(*engine.Thread, string) {}

type world struct {
	rt     *engine.Runtime
	clock  *asyncrt.VirtualClock
	stage  *engine.Target
	sprite *engine.Target
	tracer *Tracer
	seq    *stubSequencer
}

func newWorld(t *testing.T) *world {
	t.Helper()
	clock := asyncrt.NewVirtualClock(0)
	rt := engine.NewRuntime(engine.Options{Clock: clock})
	rt.Register("operator_lt", func(args engine.Args, _ *engine.BlockUtility) any {
		return cast.Compare(args["OPERAND1"], args["OPERAND2"]) < 0
	})
	rt.Register("data_variable", func(engine.Args, *engine.BlockUtility) any { return 0 })
	rt.Register("looks_show", func(engine.Args, *engine.BlockUtility) any { return nil })
	rt.Register("control_create_clone_of", func(engine.Args, *engine.BlockUtility) any { return nil })
	rt.Register("control_wait", func(args engine.Args, util *engine.BlockUtility) any {
		if util.StackTimerNeedsInit() {
			util.StartStackTimer(cast.ToNumber(args["DURATION"]) * 1000)
			util.Yield()
		} else if !util.StackTimerFinished() {
			util.Yield()
		}
		return nil
	})

	stage := engine.NewTarget("stage", "Stage", true, nil)
	sprite := engine.NewTarget("s1", "Sprite1", false, nil)
	rt.AddTarget(stage)
	rt.AddTarget(sprite)
	tracer := New(rt)
	rt.Tracer = tracer
	return &world{rt: rt, clock: clock, stage: stage, sprite: sprite, tracer: tracer, seq: &stubSequencer{rt: rt}}
}

func (w *world) run(target *engine.Target, top string) *engine.Thread {
	th := engine.NewThread(1, top, target)
	th.PushStack(top)
	engine.Execute(w.seq, th)
	return th
}

// addLess adds a top-level "a < b" reporter with number shadows.
func addLess(c *blocks.Container, id, a, b string) {
	c.CreateBlock(&blocks.Block{ID: id + "a", Opcode: "math_number", Shadow: true,
		Fields: map[string]blocks.Field{"NUM": {Name: "NUM", Value: a}}})
	c.CreateBlock(&blocks.Block{ID: id + "b", Opcode: "math_number", Shadow: true,
		Fields: map[string]blocks.Field{"NUM": {Name: "NUM", Value: b}}})
	c.CreateBlock(&blocks.Block{ID: id, Opcode: "operator_lt", TopLevel: true, Inputs: map[string]blocks.Input{
		"OPERAND1": {Name: "OPERAND1", Block: id + "a", Shadow: id + "a"},
		"OPERAND2": {Name: "OPERAND2", Block: id + "b", Shadow: id + "b"},
	}})
}

func TestGenerateBlockKey(t *testing.T) {
	w := newWorld(t)
	w.sprite.Blocks.CreateBlock(&blocks.Block{ID: "show", Opcode: "looks_show", TopLevel: true})
	w.sprite.Blocks.CreateBlock(&blocks.Block{ID: "clone", Opcode: "control_create_clone_of", TopLevel: true})
	w.stage.Blocks.CreateBlock(&blocks.Block{ID: "shared", Opcode: "looks_show", TopLevel: true})

	clone := w.sprite.MakeClone()
	if clone == nil {
		t.Fatalf("clone not created")
	}
	w.rt.AddClone(clone)

	show := w.rt.Compile(w.sprite.Blocks, "show")
	shared := w.rt.Compile(w.stage.Blocks, "shared")
	cloneOf := w.rt.Compile(w.sprite.Blocks, "clone")

	tests := []struct {
		name   string
		op     *engine.BlockCached
		target *engine.Target
		want   string
	}{
		{"sprite", show, w.sprite, "show-Sprite1"},
		{"clone shares its original's key", show, clone, "show-Sprite1"},
		{"stage code run by a sprite", shared, w.sprite, "shared-Stage"},
		{"stage code on the stage", shared, w.stage, "shared-Stage"},
		{"clone creation keyed by its owner", cloneOf, clone, "clone-Sprite1"},
	}
	for _, tt := range tests {
		if got := GenerateBlockKey(tt.op, tt.target); got != tt.want {
			t.Errorf("%s: key %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDistancesMergeByMinimum(t *testing.T) {
	w := newWorld(t)
	c := w.sprite.Blocks
	addLess(c, "lt", "5", "3")

	w.run(w.sprite, "lt")
	tr, ok := w.tracer.Trace("lt-Sprite1")
	if !ok || tr.Distance != (engine.Distance{True: 3, False: 0}) {
		t.Fatalf("first record: %+v %v", tr.Distance, ok)
	}

	c.ChangeField("lta", "NUM", "3", "")
	w.run(w.sprite, "lt")
	c.ChangeField("lta", "NUM", "9", "")
	w.run(w.sprite, "lt")

	tr, _ = w.tracer.Trace("lt-Sprite1")
	if tr.Distance != (engine.Distance{True: 1, False: 0}) {
		t.Fatalf("merged distance %+v, want [1 0]", tr.Distance)
	}
	if tr.Hits != 3 {
		t.Fatalf("hits %d, want 3", tr.Hits)
	}
	if got := tr.ArgValues["OPERAND1"]; got != "9" {
		t.Fatalf("snapshot should be the latest execution, OPERAND1 = %v", got)
	}
}

func TestFilteredBlocksAreStillCovered(t *testing.T) {
	w := newWorld(t)
	c := w.sprite.Blocks
	c.CreateBlock(&blocks.Block{ID: "var", Opcode: "data_variable", TopLevel: true,
		Fields: map[string]blocks.Field{blocks.FieldVariable: {Name: blocks.FieldVariable, ID: "v", Value: "score"}}})
	c.CreateBlock(&blocks.Block{ID: "show", Opcode: "looks_show", TopLevel: true})

	w.run(w.sprite, "var")
	w.run(w.sprite, "show")

	if got := w.tracer.Coverage(); len(got) != 2 || got[0] != "show-Sprite1" || got[1] != "var-Sprite1" {
		t.Fatalf("coverage: %v", got)
	}
	if n := len(w.tracer.Traces()); n != 0 {
		t.Fatalf("no detailed records expected, got %d", n)
	}
}

func TestWaitContinuationRefreshesRecord(t *testing.T) {
	w := newWorld(t)
	c := w.sprite.Blocks
	c.CreateBlock(&blocks.Block{ID: "d", Opcode: "math_number", Shadow: true,
		Fields: map[string]blocks.Field{"NUM": {Name: "NUM", Value: "1"}}})
	c.CreateBlock(&blocks.Block{ID: "wait", Opcode: "control_wait", TopLevel: true, Inputs: map[string]blocks.Input{
		"DURATION": {Name: "DURATION", Block: "d", Shadow: "d"},
	}})

	th := w.run(w.sprite, "wait")
	for _, step := range []uint64{300, 300, 400} {
		w.sprite.SetXY(float64(step), 0)
		w.clock.Advance(step)
		th.Status = engine.StatusRunning
		engine.Execute(w.seq, th)
	}

	traces := w.tracer.Traces()
	if len(traces) != 1 {
		t.Fatalf("records: %d", len(traces))
	}
	tr := traces[0]
	if tr.Hits != 1 {
		t.Fatalf("continuation ticks must not add hits, got %d", tr.Hits)
	}
	// [0.4 0] while waiting merged with the finished [0 1]
	if tr.Distance != (engine.Distance{}) {
		t.Fatalf("distance %+v, want [0 0]", tr.Distance)
	}
	if x := tr.Targets["s1"].X; x != 400 {
		t.Fatalf("snapshot not refreshed, x = %v", x)
	}
}

func TestCoverageLifecycle(t *testing.T) {
	w := newWorld(t)
	addLess(w.sprite.Blocks, "one", "1", "2")
	addLess(w.sprite.Blocks, "two", "3", "2")

	w.tracer.BeginStep()
	w.run(w.sprite, "one")
	first := w.tracer.CoverageLen()
	w.tracer.BeginStep()
	if n := len(w.tracer.LastStepCoverage()); n != 0 {
		t.Fatalf("BeginStep must clear step coverage, has %d", n)
	}
	w.run(w.sprite, "two")
	w.run(w.sprite, "one")
	if w.tracer.CoverageLen() < first || w.tracer.CoverageLen() != 2 {
		t.Fatalf("coverage shrank or miscounted: %d", w.tracer.CoverageLen())
	}
	if got := w.tracer.LastStepCoverage(); len(got) != 2 {
		t.Fatalf("step coverage: %v", got)
	}

	w.tracer.Reset(w.rt)
	if w.tracer.CoverageLen() != 0 || len(w.tracer.Traces()) != 0 {
		t.Fatalf("reset must clear everything")
	}
	if _, ok := w.tracer.LastTraced(); ok {
		t.Fatalf("reset must clear the last trace")
	}
}

func TestReportMergeAndFile(t *testing.T) {
	w := newWorld(t)
	addLess(w.sprite.Blocks, "lt", "5", "3")
	w.run(w.sprite, "lt")
	first := w.tracer.Report()

	w.tracer.Reset(w.rt)
	w.sprite.Blocks.ChangeField("lta", "NUM", "4", "")
	w.run(w.sprite, "lt")
	second := w.tracer.Report()

	first.Merge(second)
	if first.Runs != 2 || first.Coverage["lt-Sprite1"] != 2 {
		t.Fatalf("merged runs/coverage: %d %v", first.Runs, first.Coverage)
	}
	if len(first.Traces) != 1 || first.Traces[0].Distance != (engine.Distance{True: 2, False: 0}) {
		t.Fatalf("merged traces: %+v", first.Traces)
	}

	for _, f := range []Format{FormatMsgpack, FormatJSON} {
		path := filepath.Join(t.TempDir(), "report."+f.String())
		if err := first.WriteFile(path, f); err != nil {
			t.Fatalf("%s write: %v", f, err)
		}
		got, err := ReadFile(path, f)
		if err != nil {
			t.Fatalf("%s read: %v", f, err)
		}
		if got.Runs != 2 || len(got.Traces) != 1 || got.Traces[0].Distance != first.Traces[0].Distance {
			t.Fatalf("%s round trip: %+v", f, got)
		}
	}

	var buf bytes.Buffer
	if _, err := DecodeReport(&buf, FormatJSON); err == nil {
		t.Fatalf("empty input must fail")
	}
}
