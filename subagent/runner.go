package subagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Sentinel errors for the subagent package.
var (
	ErrRunCancelled = errors.New("subagent: run cancelled")
	ErrAtCapacity   = errors.New("subagent: worker at capacity")
)

// DispatchFunc performs the work of one admitted task.
type DispatchFunc func(ctx context.Context) (*Result, error)

// CompleteFunc turns a dispatch outcome into the task's response. It runs
// after the task has left the running store.
type CompleteFunc func(h *Handle, res *Result, err error) *Response

// Handle tracks one admitted task.
type Handle struct {
	id        string
	workerID  string
	cancel    context.CancelFunc
	done      chan *Response
	cancelled atomic.Bool
	meta      ExecutionMetadata // guarded by Runner.mu
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// WorkerID returns the worker the task was admitted for.
func (h *Handle) WorkerID() string { return h.workerID }

// Cancelled reports whether the task was cancelled before it completed.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Done returns a channel that receives the task's response exactly once.
func (h *Handle) Done() <-chan *Response { return h.done }

// Wait blocks until the task produces its response or ctx is done.
// The task keeps running when ctx ends first.
func (h *Handle) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrRunCancelled, ctx.Err())
	case resp := <-h.done:
		return resp, nil
	}
}

// Runner is the running-task store. It admits tasks against a per-worker
// concurrency limit, dispatches them on their own goroutine and forgets them
// once they complete or are cancelled. It is safe for concurrent use.
type Runner struct {
	mu     sync.RWMutex
	active map[string]*Handle
	order  []string
	load   map[string]int
	now    func() time.Time
	newID  func() string
}

// NewRunner creates an empty Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	o := resolveRunnerOptions(opts)
	return &Runner{
		active: make(map[string]*Handle),
		load:   make(map[string]int),
		now:    o.now,
		newID:  o.newID,
	}
}

// Admit reserves one of the worker's concurrency slots and inserts
// placeholder metadata for a fresh task. It returns ErrAtCapacity when the
// worker already runs limit tasks; limit <= 0 disables the check.
func (r *Runner) Admit(workerID string, role Role, limit int, collaborate bool) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > 0 && r.load[workerID] >= limit {
		return nil, fmt.Errorf("%w: %s (%d/%d)", ErrAtCapacity, workerID, r.load[workerID], limit)
	}

	id := r.newID()
	h := &Handle{
		id:       id,
		workerID: workerID,
		done:     make(chan *Response, 1),
		meta: ExecutionMetadata{
			TaskID:       id,
			WorkerID:     workerID,
			Role:         role,
			Phase:        PhaseAdmitted,
			StartTime:    r.now(),
			ToolsUsed:    []string{},
			Collaborated: collaborate,
			Confidence:   100,
		},
	}
	r.active[id] = h
	r.order = append(r.order, id)
	r.load[workerID]++
	return h, nil
}

// Dispatch runs fn for an admitted task on a new goroutine. The context
// passed to fn is cancelled by Cancel or when timeout elapses (timeout <= 0
// means no deadline). When fn returns, or panics, the task leaves the store
// and complete builds the response delivered through the handle.
func (r *Runner) Dispatch(ctx context.Context, h *Handle, timeout time.Duration, fn DispatchFunc, complete CompleteFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	r.mu.Lock()
	h.cancel = cancel
	h.meta.Phase = PhaseDispatched
	r.mu.Unlock()
	if h.Cancelled() {
		cancel()
	}

	go func() {
		defer cancel()
		res, err := safeDispatch(runCtx, fn)
		r.remove(h)
		h.done <- complete(h, res, err)
	}()
}

// safeDispatch converts a panic inside fn into an error.
func safeDispatch(ctx context.Context, fn DispatchFunc) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("panic during dispatch: %v", p)
		}
	}()
	return fn(ctx)
}

// Cancel removes a running task from the store and cancels its context.
// It returns false for unknown or already finished tasks. Cancellation is
// cooperative: work that ignores its context keeps running.
func (r *Runner) Cancel(taskID string) bool {
	r.mu.Lock()
	h, ok := r.active[taskID]
	var cancel context.CancelFunc
	if ok {
		r.deleteLocked(h)
		h.cancelled.Store(true)
		cancel = h.cancel
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	return true
}

// Status returns a copy of the task's current metadata.
func (r *Runner) Status(taskID string) (ExecutionMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.active[taskID]
	if !ok {
		return ExecutionMetadata{}, false
	}
	return h.meta.Clone(), true
}

// Running returns the number of tasks currently held for a worker.
func (r *Runner) Running(workerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load[workerID]
}

// Active returns the number of tasks in the store.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Queued returns the number of admitted tasks not yet dispatched.
func (r *Runner) Queued() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, h := range r.active {
		if h.meta.Phase == PhaseAdmitted {
			n++
		}
	}
	return n
}

// Tasks returns the metadata of every task in the store in admission order.
func (r *Runner) Tasks() []ExecutionMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ExecutionMetadata, 0, len(r.active))
	for _, id := range r.order {
		if h, ok := r.active[id]; ok {
			out = append(out, h.meta.Clone())
		}
	}
	return out
}

// Release drops an admitted task that will never be dispatched.
func (r *Runner) Release(h *Handle) {
	r.remove(h)
}

// remove deletes h from the store unless Cancel already did.
func (r *Runner) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.active[h.id]; ok && cur == h {
		r.deleteLocked(h)
	}
}

func (r *Runner) deleteLocked(h *Handle) {
	delete(r.active, h.id)
	for i, id := range r.order {
		if id == h.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.load[h.workerID] > 1 {
		r.load[h.workerID]--
	} else {
		delete(r.load, h.workerID)
	}
}
