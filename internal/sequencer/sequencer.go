// Package sequencer steps the threads of a runtime once per frame tick.
package sequencer

import (
	"context"
	"strconv"

	"blockvm/internal/blocks"
	"blockvm/internal/engine"
	"blockvm/internal/trace"
)

// Options tunes how much work one tick may do.
type Options struct {
	// TickMs is the frame length the clock advances per tick.
	TickMs uint64
	// WorkPasses bounds how often all threads are stepped within one tick
	// while nothing requested a redraw.
	WorkPasses int
	// WarpBudget bounds the blocks a warp-mode (run without screen refresh)
	// thread executes in one step before it must yield.
	WarpBudget int
	// NoMonitors skips the per-tick threads that refresh monitored
	// reporters.
	NoMonitors bool
}

// DefaultOptions matches a 30 fps stage.
func DefaultOptions() Options {
	return Options{TickMs: 33, WorkPasses: 8, WarpBudget: 5000}
}

// stepper is implemented by block tracers that track per-tick coverage.
type stepper interface {
	BeginStep()
}

// Sequencer drives a runtime. It implements engine.Sequencer.
type Sequencer struct {
	rt   *engine.Runtime
	opts Options

	ticks  uint64
	warpOp int
}

// New returns a sequencer for rt.
func New(rt *engine.Runtime, opts Options) *Sequencer {
	def := DefaultOptions()
	if opts.TickMs == 0 {
		opts.TickMs = def.TickMs
	}
	if opts.WorkPasses <= 0 {
		opts.WorkPasses = def.WorkPasses
	}
	if opts.WarpBudget <= 0 {
		opts.WarpBudget = def.WarpBudget
	}
	return &Sequencer{rt: rt, opts: opts}
}

// Runtime returns the runtime being stepped.
func (s *Sequencer) Runtime() *engine.Runtime { return s.rt }

// Ticks returns the number of completed ticks.
func (s *Sequencer) Ticks() uint64 { return s.ticks }

// GreenFlag starts the program.
func (s *Sequencer) GreenFlag() []*engine.Thread {
	threads := s.rt.GreenFlag()
	trace.Point(s.rt.Events, trace.ScopeRun, "green-flag", strconv.Itoa(len(threads))+" threads")
	return threads
}

// Run executes n ticks, advancing the runtime clock by TickMs after each.
// It stops early when ctx is cancelled or no thread is left.
func (s *Sequencer) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := s.rt.Clock.NowMs()
		s.Tick()
		s.rt.Clock.SleepUntilMs(start + s.opts.TickMs)
		if len(s.rt.Threads()) == 0 && !s.rt.Async.HasWork() && len(s.rt.EdgeActivatedHats()) == 0 {
			break
		}
	}
	return nil
}

// Tick runs one frame: due timers fire, settled promises resume their
// threads, edge-activated hats are polled and every thread is stepped.
func (s *Sequencer) Tick() {
	rt := s.rt
	span := trace.Begin(rt.Events, trace.ScopeTick, "tick", 0).WithExtra("tick", strconv.FormatUint(s.ticks, 10))

	rt.Async.AdvanceTo(rt.Clock.NowMs())
	resumed := rt.Async.RunReady()

	if st, ok := rt.Tracer.(stepper); ok {
		st.BeginStep()
	}
	for _, opcode := range rt.EdgeActivatedHats() {
		rt.StartHats(opcode, nil, nil)
	}
	if !s.opts.NoMonitors {
		s.startMonitorThreads()
	}

	done := s.StepThreads()
	s.ticks++
	span.End("resumed=" + strconv.Itoa(resumed) + " done=" + strconv.Itoa(done))
}

// startMonitorThreads queues one evaluation of every monitored reporter.
func (s *Sequencer) startMonitorThreads() {
	rt := s.rt
	for _, id := range rt.MonitorBlocks.Scripts() {
		if s.hasLiveThread(rt.MonitorBlocks, id) {
			continue
		}
		target := rt.TargetByID(rt.MonitorTarget(id))
		if target == nil {
			target = rt.Stage()
		}
		if target == nil {
			continue
		}
		th := rt.PushThread(id, target)
		th.BlockContainer = rt.MonitorBlocks
		th.UpdateMonitor = true
	}
}

func (s *Sequencer) hasLiveThread(c *blocks.Container, top string) bool {
	for _, th := range s.rt.Threads() {
		if th.BlockContainer == c && th.TopBlock == top && th.Status != engine.StatusDone {
			return true
		}
	}
	return false
}

// StepThreads steps every thread at least once and keeps stepping while
// threads are active, nothing requested a redraw and the pass budget lasts.
// Finished threads are dropped. It returns the number dropped.
func (s *Sequencer) StepThreads() int {
	rt := s.rt
	rt.TakeRedraw()

	active := -1
	for pass := 0; active != 0 && pass < s.opts.WorkPasses; pass++ {
		if pass > 0 && rt.TakeRedraw() {
			break
		}
		active = 0
		// threads started during the pass run from the next pass on
		for _, th := range rt.Threads() {
			if th.StackDepth() == 0 || th.Status == engine.StatusDone {
				continue
			}
			if th.Status == engine.StatusYieldTick && pass == 0 {
				th.Status = engine.StatusRunning
			}
			if th.Status == engine.StatusRunning || th.Status == engine.StatusYield {
				s.StepThread(th)
			}
			if th.Status == engine.StatusRunning {
				active++
			}
		}
	}

	live := rt.Threads()[:0]
	dropped := 0
	for _, th := range rt.Threads() {
		if th.StackDepth() == 0 || th.Status == engine.StatusDone {
			dropped++
			trace.Point(rt.Events, trace.ScopeThread, "thread:done", th.TopBlock)
			continue
		}
		live = append(live, th)
	}
	rt.SetThreads(live)
	return dropped
}

// StepThread runs th until it yields, waits on a promise or finishes.
func (s *Sequencer) StepThread(th *engine.Thread) {
	current := th.PeekStack()
	if current == "" {
		th.PopStack()
		if th.StackDepth() == 0 {
			th.Status = engine.StatusDone
			return
		}
	}
	s.warpOp = 0
	for current = th.PeekStack(); current != ""; current = th.PeekStack() {
		frame := th.PeekStackFrame()
		warp := frame != nil && frame.WarpMode

		engine.Execute(s, th)
		th.BlockGlowInFrame = current
		if warp {
			s.warpOp++
		}

		switch th.Status {
		case engine.StatusYield:
			th.Status = engine.StatusRunning
			if warp && s.warpOp < s.opts.WarpBudget {
				continue
			}
			return
		case engine.StatusPromiseWait, engine.StatusYieldTick, engine.StatusDone:
			return
		}

		if th.PeekStack() == current {
			th.GoToNextBlock()
		}
		for th.PeekStack() == "" {
			th.PopStack()
			if th.StackDepth() == 0 {
				th.Status = engine.StatusDone
				return
			}
			frame := th.PeekStackFrame()
			if frame.IsLoop {
				// loops yield after each iteration unless warped
				if !frame.WarpMode || s.warpOp >= s.opts.WarpBudget {
					return
				}
				break
			}
			th.GoToNextBlock()
		}
	}
}

// StepToBranch enters branch n of the block on top of th's stack.
func (s *Sequencer) StepToBranch(th *engine.Thread, n int, isLoop bool) {
	branch := th.BlockContainer.GetBranch(th.PeekStack(), n)
	if frame := th.PeekStackFrame(); frame != nil {
		frame.IsLoop = isLoop
	}
	th.PushStack(branch)
}

// StepToProcedure enters the definition of proccode.
func (s *Sequencer) StepToProcedure(th *engine.Thread, proccode string) {
	def := th.BlockContainer.ProcedureDefinition(proccode)
	if def == "" {
		return
	}
	recursive := th.IsRecursiveCall(proccode)
	th.PushStack(def)
	frame := th.PeekStackFrame()
	if frame.WarpMode && s.warpOp >= s.opts.WarpBudget {
		th.Status = engine.StatusYield
		return
	}
	defBlock := th.BlockContainer.GetBlock(def)
	proto := th.BlockContainer.GetBlock(defBlock.Inputs[blocks.InputCustomBlock].Block)
	switch {
	case proto != nil && proto.Mutation != nil && proto.Mutation.Warp:
		frame.WarpMode = true
	case recursive:
		th.Status = engine.StatusYield
	}
}

// RetireThread stops th immediately.
func (s *Sequencer) RetireThread(th *engine.Thread) {
	th.Retire()
	trace.Point(s.rt.Events, trace.ScopeThread, "thread:retire", th.TopBlock)
}
