package asyncrt

// Promise is a handle to a task that settles at most once. Its continuations
// run from Executor.RunReady, never synchronously from Resolve or Reject.
type Promise struct {
	ex *Executor
	id TaskID
}

// ID returns the backing task ID.
func (p *Promise) ID() TaskID {
	if p == nil {
		return 0
	}
	return p.id
}

// Resolve settles the promise with v. It reports false if the promise was
// already settled or cancelled.
func (p *Promise) Resolve(v any) bool {
	if p == nil || p.ex == nil {
		return false
	}
	return p.ex.settle(p.id, TaskResultSuccess, v, nil)
}

// Reject settles the promise with err.
func (p *Promise) Reject(err error) bool {
	if p == nil || p.ex == nil {
		return false
	}
	return p.ex.settle(p.id, TaskResultFailure, nil, err)
}

// Cancel is the promise's cancellation token: continuations registered so far
// are dropped and the promise ignores later settlement.
func (p *Promise) Cancel() {
	if p == nil || p.ex == nil {
		return
	}
	p.ex.Cancel(p.id)
}

// Then registers continuations. Either callback may be nil.
func (p *Promise) Then(onResolved func(any), onRejected func(error)) {
	if p == nil || p.ex == nil {
		return
	}
	task := p.ex.tasks[p.id]
	if task == nil || task.Cancelled {
		return
	}
	task.handlers = append(task.handlers, handler{onResolved: onResolved, onRejected: onRejected})
	if task.Status == TaskSettled {
		p.ex.enqueue(p.id)
	}
}

// Settled reports whether the promise was resolved or rejected.
func (p *Promise) Settled() bool {
	if p == nil || p.ex == nil {
		return false
	}
	task := p.ex.tasks[p.id]
	return task != nil && task.Status == TaskSettled
}

// Cancelled reports whether Cancel was called before settlement.
func (p *Promise) Cancelled() bool {
	if p == nil || p.ex == nil {
		return false
	}
	task := p.ex.tasks[p.id]
	return task != nil && task.Cancelled
}

// Result returns the settled value and error.
func (p *Promise) Result() (any, TaskResultKind, error) {
	if p == nil || p.ex == nil {
		return nil, TaskResultNone, nil
	}
	task := p.ex.tasks[p.id]
	if task == nil {
		return nil, TaskResultNone, nil
	}
	return task.ResultValue, task.ResultKind, task.Err
}

// ResolveAfter returns a promise resolved with v once the executor clock
// reaches now+delayMs.
func (e *Executor) ResolveAfter(delayMs uint64, v any, label string) *Promise {
	p := e.NewPromise(label)
	e.tasks[p.id].timer = e.armTimer(p.id, delayMs, v)
	return p
}
