package delegation

import (
	"context"

	"github.com/armatrix/agent-delegation-go/health"
	"github.com/armatrix/agent-delegation-go/hook"
)

// fire runs the hooks registered for in.Event. Hook failures are logged and
// never fail the operation that fired them.
func (e *Engine) fire(ctx context.Context, in *hook.Input) *hook.Result {
	if !e.hooks.Has(in.Event) {
		return nil
	}
	res, err := e.hooks.Run(ctx, in)
	if err != nil {
		e.logger.Warn("hook failed", "event", in.Event, "worker", in.WorkerID, "task", in.TaskID, "error", err)
	}
	return res
}

// onStatusChange forwards health monitor transitions to StatusChanged hooks.
func (e *Engine) onStatusChange(ctx context.Context, c health.Change) {
	e.fire(ctx, &hook.Input{
		Event:    hook.StatusChanged,
		WorkerID: c.WorkerID,
		Role:     c.Role,
		From:     c.From,
		To:       c.To,
		Reason:   c.Reason,
	})
}
