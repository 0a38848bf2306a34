package health

import (
	"context"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Recover moves a worker out of error, to busy or active by load. It
// reports false, with no change, when the worker is not in error.
func (m *Monitor) Recover(ctx context.Context, id string) (bool, error) {
	return m.operator(ctx, id, func(cur *subagent.Registration) (subagent.Status, bool) {
		if cur.Status != subagent.StatusError {
			return "", false
		}
		return m.byLoad(cur)
	})
}

// Drain puts a worker into maintenance. Running tasks finish; no new task
// is accepted and the monitor stops probing it.
func (m *Monitor) Drain(ctx context.Context, id string) (bool, error) {
	return m.operator(ctx, id, func(*subagent.Registration) (subagent.Status, bool) {
		return subagent.StatusMaintenance, true
	})
}

// Deactivate marks a worker inactive.
func (m *Monitor) Deactivate(ctx context.Context, id string) (bool, error) {
	return m.operator(ctx, id, func(*subagent.Registration) (subagent.Status, bool) {
		return subagent.StatusInactive, true
	})
}

// Reactivate returns a drained or deactivated worker to service. It reports
// false for workers in any other status.
func (m *Monitor) Reactivate(ctx context.Context, id string) (bool, error) {
	return m.operator(ctx, id, func(cur *subagent.Registration) (subagent.Status, bool) {
		if !cur.Status.OperatorOnly() {
			return "", false
		}
		return m.byLoad(cur)
	})
}

func (m *Monitor) operator(ctx context.Context, id string, next func(*subagent.Registration) (subagent.Status, bool)) (bool, error) {
	var role subagent.Role
	prev, to, changed, err := m.reg.Transition(ctx, id, func(cur *subagent.Registration) (subagent.Status, bool) {
		role = cur.Definition.Role
		return next(cur)
	})
	if err != nil || !changed {
		return false, err
	}
	if prev != to {
		m.emit(ctx, Change{WorkerID: id, Role: role, From: prev, To: to, Reason: ReasonOperator})
	}
	return true, nil
}
