package asyncrt

import "container/heap"

// TimerID identifies an armed timer.
type TimerID uint64

// timer settles its task with value at deadlineMs. Timers with equal
// deadlines fire in arming order.
type timer struct {
	id         TimerID
	deadlineMs uint64
	task       TaskID
	value      any
	slot       int // position in the heap, kept by Swap
}

type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.deadlineMs != b.deadlineMs {
		return a.deadlineMs < b.deadlineMs
	}
	return a.id < b.id
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].slot = i
	q[j].slot = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.slot = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	t.slot = -1
	return t
}

// armTimer schedules task to resolve with value delayMs after the executor's
// current time.
func (e *Executor) armTimer(task TaskID, delayMs uint64, value any) TimerID {
	e.nextTimerID++
	t := &timer{
		id:         e.nextTimerID,
		deadlineMs: e.nowMs + delayMs,
		task:       task,
		value:      value,
	}
	e.timerByID[t.id] = t
	heap.Push(&e.timers, t)
	return t.id
}

// disarmTimer drops a pending timer; unknown ids are ignored.
func (e *Executor) disarmTimer(id TimerID) {
	t, ok := e.timerByID[id]
	if !ok {
		return
	}
	delete(e.timerByID, id)
	if t.slot >= 0 {
		heap.Remove(&e.timers, t.slot)
	}
}

// AdvanceTo moves executor time forward to nowMs and fires every timer that
// falls due on the way, in deadline order. It returns how many fired. Time
// never moves backwards.
func (e *Executor) AdvanceTo(nowMs uint64) int {
	if e == nil {
		return 0
	}
	fired := 0
	for len(e.timers) > 0 && e.timers[0].deadlineMs <= nowMs {
		t := heap.Pop(&e.timers).(*timer)
		delete(e.timerByID, t.id)
		e.nowMs = max(e.nowMs, t.deadlineMs)
		if task := e.tasks[t.task]; task != nil {
			task.timer = 0
		}
		e.settle(t.task, TaskResultSuccess, t.value, nil)
		fired++
	}
	e.nowMs = max(e.nowMs, nowMs)
	return fired
}
