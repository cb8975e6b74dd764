package sequencer

import (
	"context"
	"testing"

	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
	"blockvm/internal/cast"
	"blockvm/internal/engine"
)

type fixture struct {
	rt     *engine.Runtime
	clock  *asyncrt.VirtualClock
	sprite *engine.Target
	seq    *Sequencer
	count  int
	redraw bool
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{clock: asyncrt.NewVirtualClock(0)}
	rt := engine.NewRuntime(engine.Options{Clock: f.clock, Async: asyncrt.Config{Deterministic: true}})
	rt.RegisterHat("event_whenflagclicked", engine.HatInfo{RestartExistingThreads: true})
	rt.Register("control_forever", func(_ engine.Args, util *engine.BlockUtility) any {
		util.StartBranch(1, true)
		return nil
	})
	rt.Register("control_if", func(args engine.Args, util *engine.BlockUtility) any {
		if cast.ToBoolean(args["CONDITION"]) {
			util.StartBranch(1, false)
		}
		return nil
	})
	rt.Register("control_wait", func(args engine.Args, util *engine.BlockUtility) any {
		if util.StackTimerNeedsInit() {
			util.StartStackTimer(cast.ToNumber(args["DURATION"]) * 1000)
			util.Yield()
		} else if !util.StackTimerFinished() {
			util.Yield()
		}
		return nil
	})
	rt.Register("test_count", func(_ engine.Args, util *engine.BlockUtility) any {
		f.count++
		if f.redraw {
			util.Runtime().RequestRedraw()
		}
		return nil
	})
	rt.Register("test_sleep", func(_ engine.Args, util *engine.BlockUtility) any {
		return util.ResolveAfter(50, nil, "sleep")
	})
	rt.Register("procedures_call", func(args engine.Args, util *engine.BlockUtility) any {
		m := args[engine.ArgMutation].(*blocks.Mutation)
		util.StartProcedure(m.ProcCode)
		return nil
	})

	f.sprite = engine.NewTarget("s1", "Sprite1", false, blocks.NewContainer())
	rt.AddTarget(engine.NewTarget("stage", "Stage", true, nil))
	rt.AddTarget(f.sprite)
	f.rt = rt
	f.seq = New(rt, opts)
	return f
}

func (f *fixture) add(b *blocks.Block) { f.sprite.Blocks.CreateBlock(b) }

// script chains opcodes under a green flag hat; IDs are the opcodes'
// positions ("b1", "b2", ...).
func (f *fixture) script(opcodes ...string) {
	f.add(&blocks.Block{ID: "flag", Opcode: "event_whenflagclicked", TopLevel: true, Next: "b1"})
	parent := "flag"
	for i, op := range opcodes {
		id := "b" + string(rune('1'+i))
		next := ""
		if i+1 < len(opcodes) {
			next = "b" + string(rune('2'+i))
		}
		f.add(&blocks.Block{ID: id, Opcode: op, Parent: parent, Next: next})
		parent = id
	}
}

func (f *fixture) forever() {
	f.add(&blocks.Block{ID: "flag", Opcode: "event_whenflagclicked", TopLevel: true, Next: "loop"})
	f.add(&blocks.Block{ID: "loop", Opcode: "control_forever", Parent: "flag", Inputs: map[string]blocks.Input{
		"SUBSTACK": {Name: "SUBSTACK", Block: "body"},
	}})
	f.add(&blocks.Block{ID: "body", Opcode: "test_count", Parent: "loop"})
}

func TestForeverLoopRunsUntilPassBudget(t *testing.T) {
	f := newFixture(t, Options{WorkPasses: 4})
	f.forever()
	f.seq.GreenFlag()
	f.seq.Tick()
	if f.count != 4 {
		t.Fatalf("iterations in one tick: %d, want 4", f.count)
	}
	if len(f.rt.Threads()) != 1 {
		t.Fatalf("forever thread must stay alive")
	}
}

func TestRedrawEndsTick(t *testing.T) {
	f := newFixture(t, Options{WorkPasses: 4})
	f.redraw = true
	f.forever()
	f.seq.GreenFlag()
	for i := 1; i <= 3; i++ {
		f.seq.Tick()
		if f.count != i {
			t.Fatalf("tick %d: %d iterations", i, f.count)
		}
	}
}

func TestWaitSpansTicks(t *testing.T) {
	f := newFixture(t, Options{})
	f.script("control_wait", "test_count")
	f.add(&blocks.Block{ID: "d", Opcode: "math_number", Shadow: true, Parent: "b1",
		Fields: map[string]blocks.Field{"NUM": {Name: "NUM", Value: "0.1"}}})
	f.sprite.Blocks.GetBlock("b1").Inputs["DURATION"] = blocks.Input{Name: "DURATION", Block: "d", Shadow: "d"}
	f.sprite.Blocks.ResetCache()

	f.seq.GreenFlag()
	if err := f.seq.Run(context.Background(), 20); err != nil {
		t.Fatal(err)
	}
	if f.count != 1 {
		t.Fatalf("count after wait: %d", f.count)
	}
	// ticks start at 0, 33, 66, 99 and 132; only the last is past 100ms
	if got := f.seq.Ticks(); got != 5 {
		t.Fatalf("ticks: %d", got)
	}
	if len(f.rt.Threads()) != 0 {
		t.Fatalf("finished threads must be dropped")
	}
}

func TestPromiseResumesThroughTick(t *testing.T) {
	f := newFixture(t, Options{})
	f.script("test_sleep", "test_count")
	f.seq.GreenFlag()

	f.seq.Tick()
	th := f.rt.Threads()[0]
	if th.Status != engine.StatusPromiseWait {
		t.Fatalf("status after first tick: %v", th.Status)
	}
	f.clock.Advance(33)
	f.seq.Tick()
	if f.count != 0 {
		t.Fatalf("next block ran before the promise settled")
	}
	f.clock.Advance(33)
	f.seq.Tick()
	if f.count != 1 {
		t.Fatalf("count after settle: %d", f.count)
	}
	if len(f.rt.Threads()) != 0 {
		t.Fatalf("thread should be done")
	}
}

func TestIfEntersBranchOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(&blocks.Block{ID: "flag", Opcode: "event_whenflagclicked", TopLevel: true, Next: "if"})
	f.add(&blocks.Block{ID: "if", Opcode: "control_if", Parent: "flag", Next: "after", Inputs: map[string]blocks.Input{
		"SUBSTACK": {Name: "SUBSTACK", Block: "inner"},
	}})
	f.add(&blocks.Block{ID: "inner", Opcode: "test_count", Parent: "if"})
	f.add(&blocks.Block{ID: "after", Opcode: "test_count", Parent: "if"})

	// no CONDITION input: the branch is skipped
	f.seq.GreenFlag()
	f.seq.Tick()
	if f.count != 1 {
		t.Fatalf("count with false condition: %d", f.count)
	}
}

func TestProcedureCallReturnsToCaller(t *testing.T) {
	f := newFixture(t, Options{})
	f.add(&blocks.Block{ID: "flag", Opcode: "event_whenflagclicked", TopLevel: true, Next: "call"})
	f.add(&blocks.Block{ID: "call", Opcode: "procedures_call", Parent: "flag", Next: "after",
		Mutation: &blocks.Mutation{ProcCode: "jump"}})
	f.add(&blocks.Block{ID: "after", Opcode: "test_count", Parent: "call"})
	f.add(&blocks.Block{ID: "def", Opcode: "procedures_definition", TopLevel: true, Next: "body",
		Inputs: map[string]blocks.Input{blocks.InputCustomBlock: {Name: blocks.InputCustomBlock, Block: "proto"}}})
	f.add(&blocks.Block{ID: "proto", Opcode: "procedures_prototype", Parent: "def", Shadow: true,
		Mutation: &blocks.Mutation{ProcCode: "jump"}})
	f.add(&blocks.Block{ID: "body", Opcode: "test_count", Parent: "def"})

	f.seq.GreenFlag()
	f.seq.Tick()
	if f.count != 2 {
		t.Fatalf("procedure body and continuation: %d", f.count)
	}
	if len(f.rt.Threads()) != 0 {
		t.Fatalf("thread should be done")
	}
}

func TestWarpProcedureRunsLoopWithoutYielding(t *testing.T) {
	f := newFixture(t, Options{WorkPasses: 1, WarpBudget: 10})
	f.add(&blocks.Block{ID: "flag", Opcode: "event_whenflagclicked", TopLevel: true, Next: "call"})
	f.add(&blocks.Block{ID: "call", Opcode: "procedures_call", Parent: "flag",
		Mutation: &blocks.Mutation{ProcCode: "spin"}})
	f.add(&blocks.Block{ID: "def", Opcode: "procedures_definition", TopLevel: true, Next: "loop",
		Inputs: map[string]blocks.Input{blocks.InputCustomBlock: {Name: blocks.InputCustomBlock, Block: "proto"}}})
	f.add(&blocks.Block{ID: "proto", Opcode: "procedures_prototype", Parent: "def", Shadow: true,
		Mutation: &blocks.Mutation{ProcCode: "spin", Warp: true}})
	f.add(&blocks.Block{ID: "loop", Opcode: "control_forever", Parent: "def", Inputs: map[string]blocks.Input{
		"SUBSTACK": {Name: "SUBSTACK", Block: "body"},
	}})
	f.add(&blocks.Block{ID: "body", Opcode: "test_count", Parent: "loop"})

	f.seq.GreenFlag()
	f.seq.Tick()
	if f.count < 2 {
		t.Fatalf("warp loop should iterate within one pass, got %d", f.count)
	}
	if f.count > 10 {
		t.Fatalf("warp budget exceeded: %d", f.count)
	}
}

func TestRetireThread(t *testing.T) {
	f := newFixture(t, Options{})
	f.forever()
	threads := f.seq.GreenFlag()
	f.seq.RetireThread(threads[0])
	f.seq.Tick()
	if f.count != 0 || len(f.rt.Threads()) != 0 {
		t.Fatalf("retired thread ran: count=%d threads=%d", f.count, len(f.rt.Threads()))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Options{})
	f.forever()
	f.seq.GreenFlag()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.seq.Run(ctx, 10); err == nil {
		t.Fatalf("expected context error")
	}
	if f.seq.Ticks() != 0 {
		t.Fatalf("no tick should run after cancel")
	}
}

func TestMonitorsRefreshUnlessDisabled(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
		want int
	}{
		{"zero options", Options{}, 2},
		{"disabled", Options{NoMonitors: true}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.opts)
			f.rt.Register("test_reporter", func(engine.Args, *engine.BlockUtility) any { return 7.0 })
			f.rt.MonitorBlocks.CreateBlock(&blocks.Block{ID: "mon", Opcode: "test_reporter", TopLevel: true})
			f.rt.SetMonitorTarget("mon", "s1")

			updates := 0
			for range 2 {
				f.seq.Tick()
				for _, u := range f.rt.DrainMonitorUpdates() {
					if u.ID != "mon" || u.Value != 7.0 {
						t.Fatalf("update = %+v", u)
					}
					updates++
				}
			}
			if updates != tc.want {
				t.Fatalf("%d monitor updates, want %d", updates, tc.want)
			}
		})
	}
}
