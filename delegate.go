package delegation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-delegation-go/hook"
	"github.com/armatrix/agent-delegation-go/registry"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Task is a delegation in flight. Its response becomes available once the
// executor returns, the task is cancelled, or admission refuses it.
type Task struct {
	id   string
	done chan struct{}
	resp *subagent.Response
}

func settledTask(resp *subagent.Response) *Task {
	t := &Task{id: resp.TaskID, done: make(chan struct{}), resp: resp}
	close(t.done)
	return t
}

func watchTask(h *subagent.Handle) *Task {
	t := &Task{id: h.ID(), done: make(chan struct{})}
	go func() {
		t.resp = <-h.Done()
		close(t.done)
	}()
	return t
}

// ID returns the task identifier. It is empty when the request was refused
// before admission.
func (t *Task) ID() string { return t.id }

// Done is closed once the response is ready.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the response is ready or ctx is done. A settled task
// returns its response even when ctx is already done. When ctx ends first
// the task keeps running.
func (t *Task) Wait(ctx context.Context) (*subagent.Response, error) {
	select {
	case <-t.done:
		return t.resp, nil
	default:
	}
	select {
	case <-t.done:
		return t.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delegate routes req to its target, or to the best worker when req names
// none, and waits for the outcome. It never returns a Go error: refusals,
// failures and cancellations are reported in the response.
func (e *Engine) Delegate(ctx context.Context, req subagent.Request) *subagent.Response {
	t := e.Spawn(ctx, req)
	resp, err := t.Wait(ctx)
	if err == nil {
		return resp
	}

	meta, _ := e.runner.Status(t.ID())
	e.CancelTask(t.ID())
	meta.TaskID = t.ID()
	meta.Phase = subagent.PhaseFailed
	meta.Confidence = 0
	return &subagent.Response{
		TaskID:   t.ID(),
		Metadata: meta,
		Errors:   []string{fmt.Sprintf("task cancelled: %v", err)},
	}
}

// Spawn admits req and dispatches it without waiting. Cancelling ctx
// cancels the dispatched work; pass context.WithoutCancel for tasks that
// should outlive the caller.
func (e *Engine) Spawn(ctx context.Context, req subagent.Request) *Task {
	r, err := e.resolveTarget(ctx, req)
	if err != nil {
		return e.reject(r, "", err)
	}
	if err := e.validate(r, req); err != nil {
		return e.reject(r, "", err)
	}

	def := r.Definition.Clone()
	h, err := e.runner.Admit(def.ID, def.Role, def.ConcurrencyLimit(), req.Collaborate)
	if err != nil {
		if errors.Is(err, subagent.ErrAtCapacity) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return e.reject(r, "", err)
	}
	meta, _ := e.runner.Status(h.ID())
	e.refreshLoad(ctx, def.ID)

	started := e.fire(ctx, &hook.Input{
		Event:    hook.TaskStarted,
		WorkerID: def.ID,
		Role:     def.Role,
		TaskID:   h.ID(),
		Request:  &req,
	})
	if started != nil && started.Block {
		e.runner.Release(h)
		e.refreshLoad(ctx, def.ID)
		return e.reject(r, h.ID(), fmt.Errorf("blocked by hook: %s", started.Reason))
	}

	timeout := e.timeout(req)
	e.logger.Info("task dispatched", "task", h.ID(), "worker", def.ID, "timeout", timeout)
	e.runner.Dispatch(ctx, h, timeout,
		func(ctx context.Context) (*subagent.Result, error) {
			return e.exec(ctx, def, req)
		},
		func(h *subagent.Handle, res *subagent.Result, err error) *subagent.Response {
			return e.finish(context.WithoutCancel(ctx), h, r, req, meta.StartTime, timeout, res, err)
		},
	)
	return watchTask(h)
}

// resolveTarget returns the named worker, or the best candidate.
func (e *Engine) resolveTarget(ctx context.Context, req subagent.Request) (*subagent.Registration, error) {
	if req.Target == "" {
		return e.FindBestWorker(ctx, req.Task, req.RequiredTools, req.Tags...)
	}
	return e.GetWorker(ctx, req.Target)
}

// reject builds the response for a task that never dispatched.
func (e *Engine) reject(r *subagent.Registration, taskID string, err error) *Task {
	now := e.opts.now()
	meta := subagent.ExecutionMetadata{
		TaskID:    taskID,
		Phase:     subagent.PhaseFailed,
		StartTime: now,
		EndTime:   now,
		ToolsUsed: []string{},
	}
	if r != nil {
		meta.WorkerID = r.ID()
		meta.Role = r.Definition.Role
	}
	e.logger.Warn("delegation rejected", "worker", meta.WorkerID, "error", err)
	return settledTask(&subagent.Response{
		TaskID:   taskID,
		Metadata: meta,
		Errors:   []string{err.Error()},
	})
}

// finish turns a dispatch outcome into the final response and feeds it back
// into the registry. The task has already left the running store.
func (e *Engine) finish(ctx context.Context, h *subagent.Handle, r *subagent.Registration, req subagent.Request,
	start time.Time, timeout time.Duration, res *subagent.Result, err error) *subagent.Response {

	end := e.opts.now()
	elapsed := end.Sub(start)
	id := r.ID()
	resp := &subagent.Response{
		TaskID: h.ID(),
		Metadata: subagent.ExecutionMetadata{
			TaskID:       h.ID(),
			WorkerID:     id,
			Role:         r.Definition.Role,
			Phase:        subagent.PhaseFailed,
			StartTime:    start,
			EndTime:      end,
			Duration:     elapsed,
			OnTime:       elapsed <= timeout,
			ToolsUsed:    []string{},
			Collaborated: req.Collaborate,
			Cost:         decimal.Zero,
		},
	}

	switch {
	case h.Cancelled():
		resp.Errors = []string{"task cancelled"}
		e.refreshLoad(ctx, id)
		e.logger.Info("task cancelled", "task", h.ID(), "worker", id, "duration", elapsed)
		e.fire(ctx, &hook.Input{Event: hook.TaskCancelled, WorkerID: id, Role: r.Definition.Role, TaskID: h.ID(), Response: resp})
		return resp

	case err != nil:
		resp.Errors = []string{fmt.Errorf("%w: %v", ErrExecution, err).Error()}
		e.record(ctx, id, false, elapsed, decimal.Zero)
		e.logger.Error("task dispatch failed", "task", h.ID(), "worker", id, "duration", elapsed, "error", err)
		e.fire(ctx, &hook.Input{Event: hook.TaskFailed, WorkerID: id, Role: r.Definition.Role, TaskID: h.ID(), Response: resp})
		return resp
	}

	if res == nil {
		res = &subagent.Result{}
	}
	m := &resp.Metadata
	if len(res.ToolsUsed) > 0 {
		m.ToolsUsed = append([]string(nil), res.ToolsUsed...)
	}
	m.ToolInvocations = res.ToolInvocations
	if m.ToolInvocations == 0 {
		m.ToolInvocations = len(m.ToolsUsed)
	}
	m.Collaborated = res.Collaborated
	m.Cost = res.Cost
	resp.Result = res.Output
	resp.Warnings = res.Warnings

	event := hook.TaskCompleted
	if res.Failed {
		event = hook.TaskFailed
		resp.Errors = []string{fmt.Sprintf("worker %s reported failure", id)}
	} else {
		resp.Success = true
		m.Phase = subagent.PhaseCompleted
		m.Confidence = e.confidence(ctx, r, res)
	}
	e.record(ctx, id, resp.Success, elapsed, res.Cost)

	e.logger.Info("task finished", "task", h.ID(), "worker", id, "success", resp.Success,
		"duration", elapsed, "confidence", m.Confidence)
	e.fire(ctx, &hook.Input{Event: event, WorkerID: id, Role: r.Definition.Role, TaskID: h.ID(), Response: resp})
	return resp
}

// confidence returns the executor's own estimate when it made one, else a
// figure derived from the worker's success rate with some jitter.
func (e *Engine) confidence(ctx context.Context, r *subagent.Registration, res *subagent.Result) float64 {
	if res.Confidence > 0 {
		return clampPercent(res.Confidence)
	}
	rate := r.SuccessRate
	if cur, err := e.reg.Get(ctx, r.ID()); err == nil {
		rate = cur.SuccessRate
	}
	return clampPercent(DefaultConfidenceBase*rate/100 + DefaultConfidenceJitter*e.opts.rnd.Float64())
}

func (e *Engine) record(ctx context.Context, id string, success bool, elapsed time.Duration, cost decimal.Decimal) {
	if _, err := e.reg.RecordCompletion(ctx, id, success, elapsed, cost); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			e.logger.Debug("worker gone before completion was recorded", "worker", id)
			return
		}
		e.logger.Warn("record completion failed", "worker", id, "error", err)
	}
	e.refreshLoad(ctx, id)
}

// refreshLoad copies the running-task count for id into the registry.
func (e *Engine) refreshLoad(ctx context.Context, id string) {
	if _, err := e.reg.SetLoad(ctx, id, e.runner.Running(id)); err != nil && !errors.Is(err, registry.ErrNotFound) {
		e.logger.Warn("load update failed", "worker", id, "error", err)
	}
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}
