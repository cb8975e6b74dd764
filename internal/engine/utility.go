package engine

import (
	"math"

	"blockvm/internal/asyncrt"
	"fortio.org/safecast"
)

// BlockUtility is the handle block implementations use to reach the thread,
// target and runtime they run on. One instance is shared per runtime and
// re-pointed at the current thread on every Execute call; implementations
// must not retain it.
type BlockUtility struct {
	sequencer Sequencer
	thread    *Thread
}

// Sequencer returns the sequencer stepping the current thread.
func (u *BlockUtility) Sequencer() Sequencer { return u.sequencer }

// Thread returns the thread being executed.
func (u *BlockUtility) Thread() *Thread { return u.thread }

// Target returns the target the current thread runs on.
func (u *BlockUtility) Target() *Target {
	if u.thread == nil {
		return nil
	}
	return u.thread.Target
}

// Runtime returns the runtime the block runs in.
func (u *BlockUtility) Runtime() *Runtime {
	if u.sequencer == nil {
		return nil
	}
	return u.sequencer.Runtime()
}

// NowMs returns the runtime clock.
func (u *BlockUtility) NowMs() uint64 { return u.Runtime().Clock.NowMs() }

// StackFrame returns the execution context of the top frame, creating it on
// first use. Loops and timed blocks keep their state here.
func (u *BlockUtility) StackFrame() *ExecutionContext {
	f := u.thread.PeekStackFrame()
	if f == nil {
		return &ExecutionContext{}
	}
	if f.Context == nil {
		f.Context = &ExecutionContext{}
	}
	return f.Context
}

// StackTimerNeedsInit reports whether no stack timer runs for this frame.
func (u *BlockUtility) StackTimerNeedsInit() bool {
	f := u.thread.PeekStackFrame()
	return f == nil || f.Context == nil || f.Context.Timer == nil
}

// StartStackTimer starts a timer for durationMs on the top frame.
func (u *BlockUtility) StartStackTimer(durationMs float64) {
	u.StackFrame().Timer = &StackTimer{StartMs: u.NowMs(), DurationMs: math.Max(0, durationMs)}
}

// StackTimerFinished reports whether the frame's timer ran out.
func (u *BlockUtility) StackTimerFinished() bool {
	ctx := u.StackFrame()
	if ctx.Timer == nil {
		return true
	}
	return float64(u.NowMs()-ctx.Timer.StartMs) >= ctx.Timer.DurationMs
}

// ScaledRemainingHaltingTime returns the unexpired share of the frame's
// timer in [0, 1]. ok is false when no timer is running.
func (u *BlockUtility) ScaledRemainingHaltingTime() (float64, bool) {
	f := u.thread.PeekStackFrame()
	if f == nil || f.Context == nil || f.Context.Timer == nil {
		return 0, false
	}
	timer := f.Context.Timer
	if timer.DurationMs <= 0 {
		return 0, true
	}
	elapsed := float64(u.NowMs() - timer.StartMs)
	return math.Max(0, (timer.DurationMs-elapsed)/timer.DurationMs), true
}

// Yield ends the thread's step; the same block runs again next step.
func (u *BlockUtility) Yield() { u.thread.Status = StatusYield }

// YieldTick ends the thread's step and waits for the next tick.
func (u *BlockUtility) YieldTick() { u.thread.Status = StatusYieldTick }

// StartBranch enters branch n (1-based) of the current block.
func (u *BlockUtility) StartBranch(n int, isLoop bool) {
	u.sequencer.StepToBranch(u.thread, n, isLoop)
}

// StartProcedure calls the procedure with proccode on this thread.
func (u *BlockUtility) StartProcedure(proccode string) {
	u.sequencer.StepToProcedure(u.thread, proccode)
}

// ProcedureParams returns the parameter names, IDs and defaults of proccode.
func (u *BlockUtility) ProcedureParams(proccode string) (names, ids []string, defaults []any, ok bool) {
	return u.thread.BlockContainer.ProcedureParams(proccode)
}

// InitParams prepares the frame for procedure arguments.
func (u *BlockUtility) InitParams() { u.thread.InitParams() }

// PushParam stores one procedure argument.
func (u *BlockUtility) PushParam(name string, v any) { u.thread.PushParam(name, v) }

// GetParam returns a procedure argument.
func (u *BlockUtility) GetParam(name string) (any, bool) { return u.thread.GetParam(name) }

// StopAll stops every script.
func (u *BlockUtility) StopAll() { u.Runtime().StopAll() }

// StopOtherTargetThreads stops the target's other scripts.
func (u *BlockUtility) StopOtherTargetThreads() {
	u.Runtime().StopForTarget(u.thread.Target, u.thread)
}

// StopThisScript ends the current script or procedure.
func (u *BlockUtility) StopThisScript() { u.thread.StopThisScript() }

// StartHats starts scripts under hats with opcode.
func (u *BlockUtility) StartHats(opcode string, match map[string]string, target *Target) []*Thread {
	return u.Runtime().StartHats(opcode, match, target)
}

// NewPromise creates a pending promise on the runtime executor.
func (u *BlockUtility) NewPromise(label string) *asyncrt.Promise {
	return u.Runtime().Async.NewPromise(label)
}

// ResolveAfter returns a promise that resolves with v after ms of clock time.
func (u *BlockUtility) ResolveAfter(ms float64, v any, label string) *asyncrt.Promise {
	delay, err := safecast.Round[uint64](math.Max(0, ms))
	if err != nil {
		delay = math.MaxUint32
	}
	return u.Runtime().Async.ResolveAfter(delay, v, label)
}

// execContext is the per-runtime execution state shared by Execute and the
// distance evaluator.
type execContext struct {
	utility BlockUtility
	sensing *Sensing
	// frame belongs to the block being executed. Implementations that start
	// a branch push a new frame, so distances must not peek the thread.
	frame *StackFrame
}

// blockFrame returns the frame of the executing block.
func (c *execContext) blockFrame(util *BlockUtility) *StackFrame {
	if c.frame != nil {
		return c.frame
	}
	return util.thread.PeekStackFrame()
}

func newExecContext() *execContext { return &execContext{} }

// sensingFor returns the shared sensing helper, rebuilding it when the
// runtime changes.
func (c *execContext) sensingFor(rt *Runtime) *Sensing {
	if c.sensing == nil || c.sensing.rt != rt {
		c.sensing = &Sensing{rt: rt}
	}
	return c.sensing
}
