// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package pool

import (
	"sync"
	"sync/atomic"
)

// Handle identifies a Task submitted to a Pool. It is only meaningful to
// the Pool that issued it.
type Handle int64

type entry struct {
	handle Handle
	task   Task

	cancelled atomic.Bool

	status atomic.Int32 // Status, valid once statusReady is closed

	statusReady chan struct{} // closed once the final Status is published (step 3)
	joined      chan struct{} // closed once CleanUp has returned (step 4/5)
}

func newEntry(h Handle, t Task) *entry {
	return &entry{
		handle:      h,
		task:        t,
		statusReady: make(chan struct{}),
		joined:      make(chan struct{}),
	}
}

func (e *entry) publishStatus(s Status) {
	e.status.Store(int32(s))
	close(e.statusReady)
}

// Pool is a task-oriented thread pool bounded to at most maxThreads
// concurrently running tasks (0 means unbounded). It owns two dedicated
// service goroutines — a dispatcher that spawns workers as slots free up,
// and a joiner that reclaims finished workers — mirroring the two
// always-on service threads the spec requires.
type Pool struct {
	maxThreads int

	mu      sync.Mutex
	cond    *sync.Cond // guards pending/active/closed, broadcasts on any change
	pending []*entry
	active  int32
	closed  bool

	bookkeepingMu sync.Mutex
	bookkeeping   map[Handle]*entry

	nextHandle atomic.Int64

	completed      chan *entry // workers push here; the joiner drains it
	completions    atomic.Int64
	completionMu   sync.Mutex
	completionCond *sync.Cond

	workers sync.WaitGroup // only the per-task runTask goroutines
	service sync.WaitGroup // the dispatcher and joiner goroutines
}

// New creates a Pool. maxThreads <= 0 means unlimited concurrent tasks.
func New(maxThreads int) *Pool {
	p := &Pool{
		maxThreads:  maxThreads,
		bookkeeping: make(map[Handle]*entry),
		completed:   make(chan *entry, 64),
	}
	p.cond = sync.NewCond(&p.mu)
	p.completionCond = sync.NewCond(&p.completionMu)

	p.service.Add(2)
	go p.dispatchLoop()
	go p.joinLoop()
	return p
}

// AddTask submits task to the pool and returns a Handle for querying its
// status or cancelling it.
func (p *Pool) AddTask(task Task) Handle {
	h := Handle(p.nextHandle.Add(1))
	e := newEntry(h, task)

	p.bookkeepingMu.Lock()
	p.bookkeeping[h] = e
	p.bookkeepingMu.Unlock()

	p.mu.Lock()
	p.pending = append(p.pending, e)
	p.mu.Unlock()
	p.cond.Broadcast()

	return h
}

// CancelTask requests cancellation of the task identified by h. If the
// task has not yet been dispatched to a worker, it is flagged as cancelled
// immediately, and the worker later started for it publishes Cancelled
// without ever running SetUp/RunAtomic (CleanUp still runs); until then
// GetStatus reports Running. If it is running, the cancelled flag is
// observed at the next RunAtomic iteration boundary.
func (p *Pool) CancelTask(h Handle) {
	e := p.lookup(h)
	if e == nil {
		return
	}
	e.cancelled.Store(true)
	p.cond.Broadcast()
}

// GetStatus returns the task's current status. Before a final status is
// published it reports Running.
func (p *Pool) GetStatus(h Handle) Status {
	e := p.lookup(h)
	if e == nil {
		return Failed
	}
	select {
	case <-e.statusReady:
		return Status(e.status.Load())
	default:
		return Running
	}
}

// WaitForCompletion blocks until the task identified by handle reaches a
// terminal status and has finished CleanUp. If handle is nil, it instead
// blocks until at least one task anywhere in the pool has reached a
// terminal state since the call began, returning immediately if the pool
// currently has no pending or active tasks at all.
func (p *Pool) WaitForCompletion(handle *Handle) {
	if handle != nil {
		e := p.lookup(*handle)
		if e == nil {
			return
		}
		<-e.joined
		return
	}

	p.completionMu.Lock()
	defer p.completionMu.Unlock()
	start := p.completions.Load()
	for p.completions.Load() == start {
		if p.Idle() {
			return
		}
		p.completionCond.Wait()
	}
}

// Idle reports whether the pool has no pending or active tasks.
func (p *Pool) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending) == 0 && p.active == 0
}

// NumThreads reports the number of worker goroutines currently executing a
// task's lifecycle.
func (p *Pool) NumThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.active)
}

func (p *Pool) lookup(h Handle) *entry {
	p.bookkeepingMu.Lock()
	defer p.bookkeepingMu.Unlock()
	return p.bookkeeping[h]
}

// dispatchLoop waits for a pending task and a free worker slot, then spawns
// a worker. It never spawns a worker for an already-cancelled,
// not-yet-dispatched task's lifecycle methods — it still runs the worker,
// but the worker short-circuits straight to CleanUp (see runTask).
func (p *Pool) dispatchLoop() {
	defer p.service.Done()
	for {
		p.mu.Lock()
		for len(p.pending) == 0 || (p.maxThreads > 0 && p.active >= int32(p.maxThreads)) {
			if p.closed {
				p.mu.Unlock()
				return
			}
			p.cond.Wait()
			if p.closed {
				p.mu.Unlock()
				return
			}
		}
		e := p.pending[0]
		p.pending = p.pending[1:]
		p.active++
		p.mu.Unlock()

		p.workers.Add(1)
		go p.runTask(e)
	}
}

// runTask executes one task's entire lifecycle on its own goroutine.
func (p *Pool) runTask(e *entry) {
	defer p.workers.Done()

	final := Cancelled
	if !e.cancelled.Load() {
		setupStatus := e.task.SetUp()
		if setupStatus == Failed {
			final = Failed
		} else {
			final = p.runLoop(e)
		}
	}

	e.publishStatus(final)
	e.task.CleanUp()

	p.completed <- e
}

func (p *Pool) runLoop(e *entry) Status {
	for {
		if e.cancelled.Load() {
			return Cancelled
		}
		status := e.task.RunAtomic()
		if status == Done || status == Failed {
			return status
		}
		if e.cancelled.Load() {
			return Cancelled
		}
	}
}

// joinLoop reclaims finished workers: it decrements the active count,
// frees the dispatcher to start another task, and wakes
// WaitForCompletion(handle) waiters.
func (p *Pool) joinLoop() {
	defer p.service.Done()
	for e := range p.completed {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		p.cond.Broadcast()

		close(e.joined)

		p.completionMu.Lock()
		p.completions.Add(1)
		p.completionCond.Broadcast()
		p.completionMu.Unlock()
	}
}

// Close cancels every known task, wakes the dispatcher and joiner, and
// blocks until every worker (and the two service goroutines) has exited.
// No task's CleanUp is skipped: Close waits for in-flight lifecycles to
// finish their CleanUp before returning.
func (p *Pool) Close() {
	p.bookkeepingMu.Lock()
	for _, e := range p.bookkeeping {
		e.cancelled.Store(true)
	}
	p.bookkeepingMu.Unlock()

	p.mu.Lock()
	p.closed = true
	// Tasks still sitting in pending never get to run at all; dispatch them
	// anyway so their CleanUp still executes, per the lifecycle contract.
	toDrain := p.pending
	p.pending = nil
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, e := range toDrain {
		p.workers.Add(1)
		go p.runTask(e)
	}

	p.workers.Wait()
	close(p.completed)
	p.service.Wait()
}
