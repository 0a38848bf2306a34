package delegation

import (
	"context"
	"fmt"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// SystemStatus summarises the engine at one instant.
type SystemStatus struct {
	TotalWorkers     int    `json:"total_workers"`
	AvailableWorkers int    `json:"available_workers"`
	RunningTasks     int    `json:"running_tasks"`
	QueuedTasks      int    `json:"queued_tasks"`
	SystemHealth     string `json:"system_health"`
}

// GetTaskStatus returns the metadata of a task still in the running store.
func (e *Engine) GetTaskStatus(taskID string) (subagent.ExecutionMetadata, error) {
	meta, ok := e.runner.Status(taskID)
	if !ok {
		return subagent.ExecutionMetadata{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return meta, nil
}

// RunningTasks returns every task in the running store in admission order.
func (e *Engine) RunningTasks() []subagent.ExecutionMetadata {
	return e.runner.Tasks()
}

// CancelTask forgets a running task and cancels its context. It returns
// false for unknown or finished tasks. The executor may ignore the
// cancellation; the task's response then reports it as cancelled once the
// executor returns.
func (e *Engine) CancelTask(taskID string) bool {
	meta, ok := e.runner.Status(taskID)
	if !ok || !e.runner.Cancel(taskID) {
		return false
	}
	e.refreshLoad(context.Background(), meta.WorkerID)
	e.logger.Info("task cancel requested", "task", taskID, "worker", meta.WorkerID)
	return true
}

// GetSystemStatus reports worker availability and task counts. A worker
// counts as available when it is active or busy with a free slot and budget
// left. Health is healthy from 80% available, degraded from 50%, and
// unhealthy below that or with no workers.
func (e *Engine) GetSystemStatus(ctx context.Context) (SystemStatus, error) {
	regs, err := e.reg.List(ctx)
	if err != nil {
		return SystemStatus{}, err
	}
	s := SystemStatus{
		TotalWorkers: len(regs),
		RunningTasks: e.runner.Active(),
		QueuedTasks:  e.runner.Queued(),
	}
	for _, r := range regs {
		if r.Status != subagent.StatusActive && r.Status != subagent.StatusBusy {
			continue
		}
		if e.checkAvailable(r) == nil {
			s.AvailableWorkers++
		}
	}
	s.SystemHealth = healthLabel(s.AvailableWorkers, s.TotalWorkers)
	return s, nil
}

func healthLabel(available, total int) string {
	if total == 0 {
		return HealthUnhealthy
	}
	ratio := float64(available) / float64(total)
	switch {
	case ratio >= HealthyRatio:
		return HealthHealthy
	case ratio >= DegradedRatio:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
