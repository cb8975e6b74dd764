package engine

import (
	"strings"

	"blockvm/internal/asyncrt"
)

const blockFunctionFrame = "blockFunction"

// hasTrivialDistance reports whether a block without ops of its own counts
// as taken: script entry points and procedure boundaries.
func hasTrivialDistance(bc *BlockCached) bool {
	switch bc.Opcode {
	case "procedures_definition", "procedures_call":
		return true
	case "control_start_as_clone":
		return len(bc.ops) == 0
	}
	return len(bc.ops) == 0 && strings.HasPrefix(bc.Opcode, "event_")
}

// Execute runs the block on top of thread's stack for one step. It resumes
// an op list suspended by a promise, evaluates the remaining ops in
// postorder, records branch distances and hands the block to the runtime's
// tracer.
func Execute(seq Sequencer, thread *Thread) {
	rt := seq.Runtime()
	c := rt.exec
	util := &c.utility
	util.sequencer = seq
	util.thread = thread

	currentID := thread.PeekStack()
	frame := thread.PeekStackFrame()

	container := thread.BlockContainer
	bc := getCached(rt, container, currentID)
	if bc == nil {
		container = rt.FlyoutBlocks
		bc = getCached(rt, container, currentID)
		if bc == nil {
			seq.RetireThread(thread)
			return
		}
	}

	ops := bc.ops
	i := 0
	if frame != nil && frame.Resume != nil {
		i = resume(thread, frame.Resume, ops)
		frame.Resume = nil
	}

	if hasTrivialDistance(bc) {
		bc.distances = append(bc.distances, distTaken)
	}

	start := i
	for ; i < len(ops); i++ {
		last := i == len(ops)-1
		op := ops[i]

		if !container.ForceNoGlow {
			thread.RequestScriptGlowInFrame = true
		}

		op.executed = true
		op.continuation = op.timeDependent && !util.StackTimerNeedsInit()

		value := op.fn(op.args, util)
		c.frame = frame
		if d, ok := c.branchDistance(op, value, util); ok {
			op.own, op.hasOwn = d, true
		}

		if p, ok := value.(*asyncrt.Promise); ok {
			handlePromise(p, seq, thread, op, last)
			thread.JustReported = nil
			if frame != nil {
				frame.Resume = snapshot(op, ops[:i])
			}
			break
		}
		if thread.Status != StatusRunning {
			continue
		}
		if last {
			handleReport(value, seq, thread, op, last)
			continue
		}
		if op.hasOwn {
			op.pushParentDistance(op.own)
		}
		op.reportToParent(value)
	}

	c.frame = nil

	if rt.Tracer != nil {
		rt.Tracer.TraceExecutedBlock(bc, thread.Target)
	}
	bc.resetScratch()
	for _, op := range ops {
		op.resetScratch()
	}

	if rt.Profiler != nil {
		profile(rt, bc, start, min(i+1, len(ops)))
	}
}

// resume restores the values of ops that completed before a promise
// suspension and returns the index of the first op still to run.
func resume(thread *Thread, rec *ResumeRecord, ops []*BlockCached) int {
	index := make(map[string]int, len(ops))
	for j, op := range ops {
		index[op.ID] = j
	}
	i := 0
	for _, r := range rec.Reported {
		if j, ok := index[r.OpID]; ok {
			ops[j].reportToParent(r.Value)
		}
	}
	// continue after the last reported op that still exists
	for k := len(rec.Reported) - 1; k >= 0; k-- {
		if j, ok := index[rec.Reported[k].OpID]; ok {
			i = j + 1
			break
		}
	}
	if thread.JustReported != nil && i < len(ops) && ops[i].ID == rec.Reporting {
		ops[i].reportToParent(thread.JustReported)
		thread.JustReported = nil
		i++
	}
	return i
}

// snapshot captures the values the ops before a suspended op reported.
func snapshot(waiting *BlockCached, done []*BlockCached) *ResumeRecord {
	rec := &ResumeRecord{Reporting: waiting.ID, Reported: make([]ReportedValue, 0, len(done))}
	for _, op := range done {
		rec.Reported = append(rec.Reported, ReportedValue{OpID: op.ID, Value: op.parentValue()})
	}
	return rec
}

// handleReport processes a value an op reported at the end of its list or
// when its promise resolved.
func handleReport(value any, seq Sequencer, thread *Thread, op *BlockCached, last bool) {
	rt := seq.Runtime()
	thread.PushReportedValue(value)
	if op.isHat {
		predicate := value == true
		if rt.GetIsEdgeActivatedHat(op.Opcode) {
			if thread.StackClick {
				return
			}
			target := thread.Target
			hadOld := target.HasEdgeActivatedValue(op.ID)
			old := target.UpdateEdgeActivatedValue(op.ID, predicate)
			activated := predicate
			if hadOld {
				activated = !old && predicate
			}
			if !activated {
				seq.RetireThread(thread)
			}
		} else if !predicate {
			seq.RetireThread(thread)
		}
		return
	}

	if last && value != nil && thread.AtStackTop() {
		if thread.StackClick {
			rt.VisualReport(op.ID, value)
		}
		if thread.UpdateMonitor {
			name := ""
			if targetID := rt.monitorTargets[op.ID]; targetID != "" {
				t := rt.TargetByID(targetID)
				if t == nil {
					return
				}
				name = t.Name
			}
			rt.RequestUpdateMonitor(MonitorUpdate{ID: op.ID, TargetName: name, Value: value})
		}
	}
	thread.Status = StatusRunning
}

// handlePromise parks the thread until p settles.
func handlePromise(p *asyncrt.Promise, seq Sequencer, thread *Thread, op *BlockCached, last bool) {
	if thread.Status == StatusRunning {
		thread.Status = StatusPromiseWait
	}
	thread.pending = p
	p.Then(func(v any) {
		thread.pending = nil
		handleReport(v, seq, thread, op, last)
		if last {
			advancePastBlock(thread)
		}
	}, func(err error) {
		thread.pending = nil
		seq.Runtime().Warn("promise-rejected", err.Error(), map[string]string{
			"block":  op.ID,
			"opcode": op.Opcode,
		})
		thread.Status = StatusRunning
		thread.PopStack()
	})
}

// advancePastBlock pops finished blocks until one with a next block is found
// or a loop frame is reached.
func advancePastBlock(thread *Thread) {
	next := ""
	for {
		if thread.StackDepth() == 0 {
			return
		}
		popped := thread.PopStack()
		next = thread.BlockContainer.GetNextBlock(popped)
		if next != "" {
			break
		}
		f := thread.PeekStackFrame()
		if f == nil || f.IsLoop {
			break
		}
	}
	thread.PushStack(next)
}

func profile(rt *Runtime, bc *BlockCached, start, end int) {
	if bc.profiler != rt.Profiler {
		bc.profiler = rt.Profiler
		id := rt.Profiler.IDByName(blockFunctionFrame)
		for _, op := range bc.ops {
			op.profilerFrame = rt.Profiler.Frame(id, op.Opcode)
		}
	}
	for p := start; p < end; p++ {
		if f := bc.ops[p].profilerFrame; f != nil {
			f.Count++
		}
	}
}
