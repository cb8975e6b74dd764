package engine

import (
	"blockvm/internal/asyncrt"
	"blockvm/internal/blocks"
)

// ThreadStatus is the scheduling state of a thread.
type ThreadStatus uint8

const (
	StatusRunning ThreadStatus = iota
	// StatusPromiseWait: an implementation returned a promise that has not
	// settled yet.
	StatusPromiseWait
	// StatusYield: give up the rest of this step, resume on the next one.
	StatusYield
	// StatusYieldTick: like StatusYield but always waits a full tick.
	StatusYieldTick
	StatusDone
)

func (s ThreadStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPromiseWait:
		return "promise-wait"
	case StatusYield:
		return "yield"
	case StatusYieldTick:
		return "yield-tick"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// ReportedValue is one completed sibling value captured before a suspension.
type ReportedValue struct {
	OpID  string
	Value any
}

// ResumeRecord is what a frame needs to resume an op list after a promise:
// the op awaiting its value and the values of ops that already completed.
type ResumeRecord struct {
	Reporting string
	Reported  []ReportedValue
}

// StackTimer measures how long a time-dependent block has been waiting.
type StackTimer struct {
	StartMs    uint64
	DurationMs float64
}

// ExecutionContext is per-frame scratch space owned by block implementations.
type ExecutionContext struct {
	LoopCounter    int
	HasLoopCounter bool
	Timer          *StackTimer
	Values         map[string]any
}

// Value returns a scratch value.
func (c *ExecutionContext) Value(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// SetValue stores a scratch value.
func (c *ExecutionContext) SetValue(key string, v any) {
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	c.Values[key] = v
}

// StackFrame parallels one entry of the thread's block stack.
type StackFrame struct {
	IsLoop   bool
	WarpMode bool
	Resume   *ResumeRecord
	Params   map[string]any
	Context  *ExecutionContext
}

func (f *StackFrame) reuse(warp bool) {
	f.IsLoop = false
	f.WarpMode = warp
	f.Resume = nil
	f.Params = nil
	f.Context = nil
}

// Thread is one running script: a stack of block IDs with parallel frames.
type Thread struct {
	ID             uint64
	TopBlock       string
	Target         *Target
	BlockContainer *blocks.Container
	Status         ThreadStatus

	// JustReported holds the value a settled promise delivered; nil when none.
	JustReported any

	StackClick               bool
	UpdateMonitor            bool
	RequestScriptGlowInFrame bool
	BlockGlowInFrame         string

	stack   []string
	frames  []*StackFrame
	pending *asyncrt.Promise
}

// NewThread returns a thread whose script starts at topBlock.
func NewThread(id uint64, topBlock string, target *Target) *Thread {
	t := &Thread{ID: id, TopBlock: topBlock, Target: target}
	if target != nil {
		t.BlockContainer = target.Blocks
	}
	return t
}

// PushStack pushes a block. An empty id marks the end of a branch.
func (t *Thread) PushStack(id string) {
	t.stack = append(t.stack, id)
	if len(t.stack) > len(t.frames) {
		warp := false
		if n := len(t.frames); n > 0 {
			warp = t.frames[n-1].WarpMode
		}
		t.frames = append(t.frames, &StackFrame{WarpMode: warp})
	}
}

// ReuseStackForNextBlock replaces the top block and resets its frame.
func (t *Thread) ReuseStackForNextBlock(id string) {
	if len(t.stack) == 0 {
		t.PushStack(id)
		return
	}
	t.stack[len(t.stack)-1] = id
	top := t.frames[len(t.frames)-1]
	top.reuse(top.WarpMode)
}

// PopStack removes and returns the top block ID, or "" on an empty stack.
func (t *Thread) PopStack() string {
	if len(t.stack) == 0 {
		return ""
	}
	id := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	if len(t.frames) > 0 {
		t.frames = t.frames[:len(t.frames)-1]
	}
	return id
}

// PeekStack returns the top block ID, or "".
func (t *Thread) PeekStack() string {
	if len(t.stack) == 0 {
		return ""
	}
	return t.stack[len(t.stack)-1]
}

// PeekStackFrame returns the top frame, or nil.
func (t *Thread) PeekStackFrame() *StackFrame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// PeekParentStackFrame returns the frame below the top, or nil.
func (t *Thread) PeekParentStackFrame() *StackFrame {
	if len(t.frames) < 2 {
		return nil
	}
	return t.frames[len(t.frames)-2]
}

// StackDepth returns the number of stack entries.
func (t *Thread) StackDepth() int { return len(t.stack) }

// Stack returns a copy of the block stack, bottom first.
func (t *Thread) Stack() []string { return append([]string(nil), t.stack...) }

// PushReportedValue stores a settled promise value for the resume path.
func (t *Thread) PushReportedValue(v any) { t.JustReported = v }

// AtStackTop reports whether the top of the stack is the script's top block.
func (t *Thread) AtStackTop() bool { return t.PeekStack() == t.TopBlock }

// GoToNextBlock moves the top of the stack to the next block in sequence.
func (t *Thread) GoToNextBlock() {
	t.ReuseStackForNextBlock(t.BlockContainer.GetNextBlock(t.PeekStack()))
}

// StopThisScript unwinds to the nearest procedure call, or finishes the
// thread when there is none.
func (t *Thread) StopThisScript() {
	for id := t.PeekStack(); len(t.stack) > 0; id = t.PeekStack() {
		if b := t.BlockContainer.GetBlock(id); b != nil && b.Opcode == "procedures_call" {
			break
		}
		t.PopStack()
	}
	if len(t.stack) == 0 {
		t.RequestScriptGlowInFrame = false
		t.Status = StatusDone
	}
}

// InitParams prepares the top frame to receive procedure arguments.
func (t *Thread) InitParams() {
	if f := t.PeekStackFrame(); f != nil && f.Params == nil {
		f.Params = make(map[string]any)
	}
}

// PushParam sets a procedure argument on the top frame.
func (t *Thread) PushParam(name string, v any) {
	t.InitParams()
	t.PeekStackFrame().Params[name] = v
}

// GetParam looks up a procedure argument in the innermost frame that has
// parameters.
func (t *Thread) GetParam(name string) (any, bool) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		if f.Params == nil {
			continue
		}
		v, ok := f.Params[name]
		return v, ok
	}
	return nil, false
}

// IsRecursiveCall reports whether proccode is already being called within
// the last few frames.
func (t *Thread) IsRecursiveCall(proccode string) bool {
	budget := 5
	for i := len(t.stack) - 2; i >= 0; i-- {
		b := t.BlockContainer.GetBlock(t.stack[i])
		if b != nil && b.Opcode == "procedures_call" && b.Mutation != nil && b.Mutation.ProcCode == proccode {
			return true
		}
		budget--
		if budget < 0 {
			return false
		}
	}
	return false
}

// Pending returns the promise the thread is waiting on, if any.
func (t *Thread) Pending() *asyncrt.Promise { return t.pending }

// Retire clears the stack and cancels an outstanding promise so its late
// settlement cannot touch the thread.
func (t *Thread) Retire() {
	if t.pending != nil {
		t.pending.Cancel()
		t.pending = nil
	}
	t.stack = t.stack[:0]
	t.frames = t.frames[:0]
	t.RequestScriptGlowInFrame = false
	t.Status = StatusDone
}
