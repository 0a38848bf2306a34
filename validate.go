package delegation

import (
	"fmt"
	"strings"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// validate runs the admission checks in order and returns the first
// failure: availability, a non-blank task, then tool coverage. Existence is
// checked by the caller when it fetches r.
//
// The capacity figure is a snapshot. Admission reserves the slot atomically
// afterwards and can still refuse.
func (e *Engine) validate(r *subagent.Registration, req subagent.Request) error {
	if err := e.checkAvailable(r); err != nil {
		return err
	}
	if strings.TrimSpace(req.Task) == "" {
		return fmt.Errorf("%w: task description is empty", ErrValidation)
	}
	if missing := subagent.MissingTools(r.Definition.Tools, req.RequiredTools); len(missing) > 0 {
		return fmt.Errorf("%w: worker %s lacks required tools: %s",
			ErrMissingCapability, r.ID(), strings.Join(missing, ", "))
	}
	return nil
}

// checkAvailable reports why r cannot take a task now, or nil.
func (e *Engine) checkAvailable(r *subagent.Registration) error {
	if r.Status.OperatorOnly() {
		return fmt.Errorf("%w: worker %s is %s", ErrUnavailable, r.ID(), r.Status)
	}
	running, limit := e.runner.Running(r.ID()), r.Definition.ConcurrencyLimit()
	if running >= limit {
		return fmt.Errorf("%w: worker %s at capacity (%d/%d)", ErrUnavailable, r.ID(), running, limit)
	}
	if r.BudgetExhausted() {
		return fmt.Errorf("%w: worker %s spent its budget of $%s", ErrUnavailable, r.ID(), r.Definition.MaxBudget.StringFixed(2))
	}
	return nil
}
