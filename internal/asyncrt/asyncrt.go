package asyncrt

import (
	"errors"
	"math"
	"math/rand"

	"fortio.org/safecast"
)

// ErrCancelled is reported for tasks settled by Cancel.
var ErrCancelled = errors.New("asyncrt: task cancelled")

// Executor owns promise tasks and runs their continuations on the caller's
// goroutine. Continuations only run inside RunReady, in FIFO order by default;
// fuzz scheduling permutes the order reproducibly from a seed.
type Executor struct {
	cfg         Config
	nextID      TaskID
	nextTimerID TimerID
	nowMs       uint64
	ready       []TaskID
	readySet    map[TaskID]struct{}
	tasks       map[TaskID]*Task
	timers      timerQueue
	timerByID   map[TimerID]*timer
	rng         *rand.Rand
}

// TaskID identifies a promise task.
type TaskID uint64

// TaskStatus describes task scheduling state.
type TaskStatus uint8

const (
	TaskPending TaskStatus = iota
	TaskSettled
	TaskDone
)

// TaskResultKind describes how a task completed.
type TaskResultKind uint8

const (
	TaskResultNone TaskResultKind = iota
	TaskResultSuccess
	TaskResultFailure
	TaskResultCancelled
)

func (k TaskResultKind) String() string {
	switch k {
	case TaskResultSuccess:
		return "resolved"
	case TaskResultFailure:
		return "rejected"
	case TaskResultCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Task stores executor-visible task state.
type Task struct {
	ID          TaskID
	Label       string
	Status      TaskStatus
	ResultKind  TaskResultKind
	ResultValue any
	Err         error
	Cancelled   bool
	timer       TimerID
	handlers    []handler
}

type handler struct {
	onResolved func(any)
	onRejected func(error)
}

// Config configures executor scheduling behavior.
type Config struct {
	Deterministic bool
	Fuzz          bool
	Seed          uint64
}

// NewExecutor constructs an executor with the provided configuration.
func NewExecutor(cfg Config) *Executor {
	exec := &Executor{
		cfg:       cfg,
		nextID:    1,
		readySet:  make(map[TaskID]struct{}),
		tasks:     make(map[TaskID]*Task),
		timerByID: make(map[TimerID]*timer),
	}
	if cfg.Fuzz {
		exec.rng = scheduleRand(cfg.Seed)
	}
	return exec
}

// Task returns a task by ID.
func (e *Executor) Task(id TaskID) *Task {
	if e == nil {
		return nil
	}
	return e.tasks[id]
}

// NowMs returns the executor's current virtual time.
func (e *Executor) NowMs() uint64 {
	if e == nil {
		return 0
	}
	return e.nowMs
}

// Pending counts tasks that were neither settled nor cancelled.
func (e *Executor) Pending() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, task := range e.tasks {
		if task.Status == TaskPending {
			n++
		}
	}
	return n
}

// HasWork reports whether a timer is armed or a continuation is queued.
func (e *Executor) HasWork() bool {
	if e == nil {
		return false
	}
	return len(e.ready) > 0 || len(e.timerByID) > 0
}

// NewPromise registers a pending task and returns its handle.
func (e *Executor) NewPromise(label string) *Promise {
	if e.nextID == 0 {
		e.nextID = 1
	}
	id := e.nextID
	e.nextID++
	e.tasks[id] = &Task{ID: id, Label: label, Status: TaskPending}
	return &Promise{ex: e, id: id}
}

// RunReady invokes queued continuations until the ready queue is empty and
// returns how many ran. Continuations may settle further promises; those run
// in the same call.
func (e *Executor) RunReady() int {
	if e == nil {
		return 0
	}
	ran := 0
	for {
		id, ok := e.nextReady()
		if !ok {
			return ran
		}
		task := e.tasks[id]
		handlers := task.handlers
		task.handlers = nil
		for _, h := range handlers {
			switch task.ResultKind {
			case TaskResultSuccess:
				if h.onResolved != nil {
					h.onResolved(task.ResultValue)
				}
			case TaskResultFailure:
				if h.onRejected != nil {
					h.onRejected(task.Err)
				}
			}
			ran++
		}
	}
}

func (e *Executor) nextReady() (TaskID, bool) {
	for len(e.ready) > 0 {
		idx := 0
		if e.cfg.Fuzz {
			if e.rng == nil {
				e.rng = scheduleRand(e.cfg.Seed)
			}
			idx = e.rng.Intn(len(e.ready))
		}
		id := e.ready[idx]
		copy(e.ready[idx:], e.ready[idx+1:])
		e.ready = e.ready[:len(e.ready)-1]
		delete(e.readySet, id)
		task := e.tasks[id]
		if task == nil || task.Cancelled || task.Status != TaskSettled {
			continue
		}
		return id, true
	}
	return 0, false
}

func (e *Executor) settle(id TaskID, kind TaskResultKind, value any, err error) bool {
	task := e.tasks[id]
	if task == nil || task.Status != TaskPending || task.Cancelled {
		return false
	}
	task.Status = TaskSettled
	task.ResultKind = kind
	task.ResultValue = value
	task.Err = err
	if task.timer != 0 {
		e.disarmTimer(task.timer)
		task.timer = 0
	}
	if len(task.handlers) > 0 {
		e.enqueue(id)
	}
	return true
}

// Cancel drops the task's continuations and marks it done. Later settlement
// attempts are ignored.
func (e *Executor) Cancel(id TaskID) {
	if e == nil {
		return
	}
	task := e.tasks[id]
	if task == nil || task.Cancelled {
		return
	}
	task.Cancelled = true
	task.handlers = nil
	if task.Status == TaskPending {
		task.ResultKind = TaskResultCancelled
		task.Err = ErrCancelled
	}
	task.Status = TaskDone
	if task.timer != 0 {
		e.disarmTimer(task.timer)
		task.timer = 0
	}
}

func (e *Executor) enqueue(id TaskID) {
	if _, ok := e.readySet[id]; ok {
		return
	}
	e.ready = append(e.ready, id)
	e.readySet[id] = struct{}{}
}

// scheduleRand seeds the fuzz scheduler. Seed 0 behaves as 1 and the top bit
// is dropped, so every seed maps onto a valid rand source.
func scheduleRand(seed uint64) *rand.Rand {
	seed = max(seed, 1)
	return rand.New(rand.NewSource(safecast.MustConv[int64](seed & math.MaxInt64))) //nolint:gosec // reproducible order, not crypto
}
