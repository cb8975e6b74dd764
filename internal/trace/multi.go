package trace

import "errors"

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	tracers []Tracer
	level   Level
}

func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{tracers: tracers, level: level}
}

// Emit hands every tracer its own copy, since tracers stamp Seq.
func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *MultiTracer) Flush() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Close() error {
	var errs []error
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }

// runTracer stamps the events of one campaign run.
type runTracer struct {
	Tracer
	run    int
	parent uint64
}

// ForRun wraps t so that every event carries run (1-based) and root spans
// hang under parent. Flush and Close are left to the owner of t.
func ForRun(t Tracer, run int, parent uint64) Tracer {
	if t == nil || !t.Enabled() {
		return Nop
	}
	return runTracer{Tracer: t, run: run, parent: parent}
}

func (t runTracer) Emit(ev *Event) {
	ev.Run = t.run
	if ev.ParentID == 0 && ev.SpanID != t.parent {
		ev.ParentID = t.parent
	}
	t.Tracer.Emit(ev)
}

func (runTracer) Flush() error { return nil }
func (runTracer) Close() error { return nil }
