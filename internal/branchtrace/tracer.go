package branchtrace

import (
	"sort"

	"blockvm/internal/engine"
)

// continuationOpcodes refresh their record on later ticks of one wait instead
// of recording again.
var continuationOpcodes = map[string]bool{
	"motion_glideto":       true,
	"motion_glidesecstoxy": true,
	"control_wait":         true,
}

// noisyOpcodes are reporters redrawn by monitors every frame.
var noisyOpcodes = map[string]bool{
	"data_variable":     true,
	"data_listcontents": true,
}

// Tracer collects traces and coverage for one run. It is not safe for
// concurrent use; each run owns its tracer.
type Tracer struct {
	targets TargetLister

	traces           map[string]*Trace
	coverage         map[string]struct{}
	lastStepCoverage map[string]struct{}
	lastTraced       *Trace
}

// New returns an empty tracer snapshotting targets.
func New(targets TargetLister) *Tracer {
	t := &Tracer{}
	t.Reset(targets)
	return t
}

// Reset clears every trace and both coverage sets. Call it before each
// independent run.
func (t *Tracer) Reset(targets TargetLister) {
	t.targets = targets
	t.traces = make(map[string]*Trace)
	t.coverage = make(map[string]struct{})
	t.lastStepCoverage = make(map[string]struct{})
	t.lastTraced = nil
}

// BeginStep starts a scheduler tick: the per-tick coverage set is emptied.
func (t *Tracer) BeginStep() {
	clear(t.lastStepCoverage)
}

// GenerateBlockKey returns the record key of op executed on target.
func GenerateBlockKey(op *engine.BlockCached, target *engine.Target) string {
	return op.ID + "-" + ownerName(op, target)
}

func ownerName(op *engine.BlockCached, target *engine.Target) string {
	if target == nil {
		return ""
	}
	rt := target.Runtime()
	if rt == nil {
		return target.Name
	}
	if op.Opcode == "control_create_clone_of" {
		if owner := rt.OwnerOf(op.Container()); owner != nil {
			return owner.Name
		}
	}
	if stage := rt.Stage(); stage != nil && !target.IsStage && op.Container() == stage.Blocks {
		return stage.Name
	}
	return target.Original().Name
}

// TraceExecutedBlock covers bc and every op of it that ran this tick, and
// records those carrying fitness relevant information.
func (t *Tracer) TraceExecutedBlock(bc *engine.BlockCached, target *engine.Target) {
	t.traceOp(bc, target)
	for _, op := range bc.Ops() {
		if op != bc && op.Executed() {
			t.traceOp(op, target)
		}
	}
}

func (t *Tracer) traceOp(op *engine.BlockCached, target *engine.Target) {
	key := GenerateBlockKey(op, target)
	t.coverage[key] = struct{}{}
	t.lastStepCoverage[key] = struct{}{}

	if !t.keep(op) {
		return
	}
	existing := t.traces[key]
	if existing != nil && op.IsContinuation() && continuationOpcodes[op.Opcode] {
		existing.Targets = snapshot(t.targets)
		if d, ok := op.TraceDistance(); ok {
			existing.Distance = existing.Distance.Min(d)
		}
		t.lastTraced = existing
		return
	}

	tr := newTrace(key, op, target, t.targets)
	if existing != nil {
		tr.Hits = existing.Hits + 1
		switch {
		case existing.HasDistance && tr.HasDistance:
			tr.Distance = existing.Distance.Min(tr.Distance)
		case existing.HasDistance:
			tr.Distance, tr.HasDistance = existing.Distance, true
		}
	}
	t.traces[key] = tr
	t.lastTraced = tr
}

// keep decides whether op gets a detailed record.
func (t *Tracer) keep(op *engine.BlockCached) bool {
	if noisyOpcodes[op.Opcode] {
		return false
	}
	if op.IsTimeDependent() {
		return true
	}
	d, ok := op.TraceDistance()
	return ok && !d.IsZero()
}

// Trace returns the record for key.
func (t *Tracer) Trace(key string) (Trace, bool) {
	tr, ok := t.traces[key]
	if !ok {
		return Trace{}, false
	}
	return *tr, true
}

// Traces returns every record sorted by key.
func (t *Tracer) Traces() []Trace {
	out := make([]Trace, 0, len(t.traces))
	for _, tr := range t.traces {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Coverage returns the keys covered during the run, sorted.
func (t *Tracer) Coverage() []string { return sortedKeys(t.coverage) }

// CoverageLen returns the number of covered keys.
func (t *Tracer) CoverageLen() int { return len(t.coverage) }

// LastStepCoverage returns the keys covered since the last BeginStep.
func (t *Tracer) LastStepCoverage() []string { return sortedKeys(t.lastStepCoverage) }

// LastTraced returns the most recently written record.
func (t *Tracer) LastTraced() (Trace, bool) {
	if t.lastTraced == nil {
		return Trace{}, false
	}
	return *t.lastTraced, true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
