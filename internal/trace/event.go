package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	// KindHeartbeat is the periodic liveness signal of a Heartbeat.
	KindHeartbeat
	// KindWarning is a runtime warning. Kept at every level except off.
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event; lower is coarser.
type Scope uint8

const (
	// ScopeRun covers a campaign and its runs.
	ScopeRun Scope = iota + 1
	// ScopeTick is one scheduler frame.
	ScopeTick
	// ScopeThread is thread start and retirement.
	ScopeThread
	ScopeBlock
)

func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopeTick:
		return "tick"
	case ScopeThread:
		return "thread"
	case ScopeBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Event is one trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // assigned by the storing tracer
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for a root span
	// Run is the 1-based campaign run that emitted the event; 0 outside runs.
	Run    int
	Name   string
	Detail string
	Extra  map[string]string
}

// Point emits an instant event if t keeps scope.
func Point(t Tracer, scope Scope, name, detail string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: scope, Name: name, Detail: detail})
}

// Warn emits a warning. Warnings ignore scope filtering.
func Warn(t Tracer, name, detail string, extra map[string]string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindWarning,
		Scope:  ScopeRun,
		Name:   name,
		Detail: detail,
		Extra:  extra,
	})
}
