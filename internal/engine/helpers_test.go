package engine

import (
	"testing"

	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
	"blockvm/internal/cast"
)

// stubSequencer retires threads and records branch requests.
type stubSequencer struct {
	rt       *Runtime
	branches []int
}

func (s *stubSequencer) Runtime() *Runtime      { return s.rt }
func (s *stubSequencer) RetireThread(t *Thread) { t.Retire() }
func (s *stubSequencer) StepToBranch(t *Thread, branch int, isLoop bool) {
	s.branches = append(s.branches, branch)
}
func (s *stubSequencer) StepToProcedure(t *Thread, proccode string) {}

// recordingTracer keeps the distances of every executed op, keyed by ID.
type recordingTracer struct {
	calls     int
	distances map[string]Distance
	cont      map[string]bool
}

func newRecordingTracer() *recordingTracer {
	return &recordingTracer{distances: make(map[string]Distance), cont: make(map[string]bool)}
}

func (r *recordingTracer) TraceExecutedBlock(bc *BlockCached, _ *Target) {
	r.calls++
	if d, ok := bc.TraceDistance(); ok {
		r.distances[bc.ID] = d
	}
	for _, op := range bc.Ops() {
		if !op.Executed() {
			continue
		}
		if d, ok := op.TraceDistance(); ok {
			r.distances[op.ID] = d
		}
		r.cont[op.ID] = op.IsContinuation()
	}
}

type fixture struct {
	rt     *Runtime
	clock  *asyncrt.VirtualClock
	seq    *stubSequencer
	sprite *Target
	tracer *recordingTracer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := asyncrt.NewVirtualClock(0)
	rt := NewRuntime(Options{Clock: clock, Async: asyncrt.Config{Deterministic: true}})
	tracer := newRecordingTracer()
	rt.Tracer = tracer

	rt.RegisterHat("event_whenflagclicked", HatInfo{})
	rt.RegisterHat("event_whengreaterthan", HatInfo{EdgeActivated: true})
	rt.Register("control_if", func(args Args, util *BlockUtility) any {
		if cast.ToBoolean(args["CONDITION"]) {
			util.StartBranch(1, false)
		}
		return nil
	})
	rt.Register("operator_lt", func(args Args, util *BlockUtility) any {
		return cast.Compare(args["OPERAND1"], args["OPERAND2"]) < 0
	})
	rt.Register("operator_gt", func(args Args, util *BlockUtility) any {
		return cast.Compare(args["OPERAND1"], args["OPERAND2"]) > 0
	})
	rt.Register("operator_and", func(args Args, util *BlockUtility) any {
		return cast.ToBoolean(args["OPERAND1"]) && cast.ToBoolean(args["OPERAND2"])
	})
	rt.Register("control_wait", func(args Args, util *BlockUtility) any {
		if util.StackTimerNeedsInit() {
			util.StartStackTimer(cast.ToNumber(args["DURATION"]) * 1000)
			util.Yield()
		} else if !util.StackTimerFinished() {
			util.Yield()
		}
		return nil
	})

	sprite := NewTarget("s1", "Sprite1", false, blocks.NewContainer())
	rt.AddTarget(NewTarget("stage", "Stage", true, nil))
	rt.AddTarget(sprite)
	return &fixture{rt: rt, clock: clock, seq: &stubSequencer{rt: rt}, sprite: sprite, tracer: tracer}
}

func (f *fixture) add(b *blocks.Block) { f.sprite.Blocks.CreateBlock(b) }

// number adds a math_number shadow and returns the input that references it.
func (f *fixture) number(id, name string, v string) blocks.Input {
	f.add(&blocks.Block{ID: id, Opcode: "math_number", Shadow: true,
		Fields: map[string]blocks.Field{"NUM": {Name: "NUM", Value: v}}})
	return blocks.Input{Name: name, Block: id, Shadow: id}
}

func (f *fixture) thread(top string) *Thread {
	th := NewThread(1, top, f.sprite)
	th.PushStack(top)
	return th
}
