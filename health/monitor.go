// Package health supervises registered workers. A Monitor sweeps the
// registry on a fixed cadence, probes every worker that has been quiet for
// longer than its health-check interval, and drives the worker status state
// machine from the probe outcome.
//
// The monitor only moves workers between active, busy and error. The
// inactive and maintenance states belong to operators: the monitor never
// enters them on its own and never probes a worker that is in one.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/armatrix/agent-delegation-go/registry"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Defaults for the sweep loop.
const (
	DefaultSweepInterval    = 30 * time.Second
	DefaultProbeSuccessRate = 0.95
	DefaultBusyThreshold    = 80.0
)

// Reasons attached to a Change.
const (
	ReasonProbe    = "probe"
	ReasonRecovery = "recovery"
	ReasonOperator = "operator"
)

// Change records one status transition.
type Change struct {
	WorkerID string
	Role     subagent.Role
	From     subagent.Status
	To       subagent.Status
	Reason   string
}

// ChangeFunc observes status transitions. It runs synchronously after the
// transition is stored.
type ChangeFunc func(ctx context.Context, c Change)

// Monitor drives worker health. It is safe for concurrent use.
type Monitor struct {
	reg           *registry.Registry
	prober        Prober
	rnd           subagent.RandSource
	logger        *slog.Logger
	now           func() time.Time
	interval      time.Duration
	busyThreshold float64
	onChange      ChangeFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	sweeps  int
	lastRun time.Time
}

// New creates a Monitor over reg.
func New(reg *registry.Registry, opts ...Option) *Monitor {
	o := resolveOptions(opts)
	return &Monitor{
		reg:           reg,
		prober:        o.prober,
		rnd:           o.rnd,
		logger:        o.logger,
		now:           o.now,
		interval:      o.interval,
		busyThreshold: o.busyThreshold,
		onChange:      o.onChange,
	}
}

// Start runs Sweep every sweep interval until ctx is done or Stop is called.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
}

// Stop halts the sweep loop and waits for an in-progress sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the sweep loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Sweeps returns how many sweeps have completed and when the last one ran.
func (m *Monitor) Sweeps() (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps, m.lastRun
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("health sweep failed", "error", err)
			}
		}
	}
}

// Sweep probes every due worker once and applies the resulting
// transitions. It returns the transitions that changed a status.
func (m *Monitor) Sweep(ctx context.Context) ([]Change, error) {
	regs, err := m.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()

	var changes []Change
	for _, r := range regs {
		if err := ctx.Err(); err != nil {
			return changes, err
		}
		if r.Status.OperatorOnly() {
			continue
		}
		if now.Sub(r.LastActivity) < r.HealthCheckInterval {
			continue
		}
		c, err := m.check(ctx, r)
		if err != nil {
			// Unregistered mid-sweep.
			m.logger.Debug("health check skipped", "worker", r.ID(), "error", err)
			continue
		}
		if c != nil {
			changes = append(changes, *c)
		}
	}

	m.mu.Lock()
	m.sweeps++
	m.lastRun = now
	m.mu.Unlock()
	return changes, nil
}

// check probes one worker and applies the outcome.
func (m *Monitor) check(ctx context.Context, r *subagent.Registration) (*Change, error) {
	ok, perr := m.probe(ctx, r)
	id := r.ID()

	switch {
	case perr != nil:
		m.logger.Error("health probe errored", "worker", id, "error", perr)
		return m.apply(ctx, id, r.Status, ReasonProbe, func(*subagent.Registration) (subagent.Status, bool) {
			return subagent.StatusError, true
		})

	case !ok:
		if r.Status == subagent.StatusError {
			return nil, nil
		}
		m.logger.Error("health probe failed", "worker", id, "from", r.Status)
		return m.apply(ctx, id, r.Status, ReasonProbe, func(*subagent.Registration) (subagent.Status, bool) {
			return subagent.StatusError, true
		})

	case r.Status == subagent.StatusError:
		if m.rnd.Float64() >= r.SuccessRate/100 {
			m.logger.Warn("worker recovery failed", "worker", id, "success_rate", r.SuccessRate)
			return nil, nil
		}
		return m.apply(ctx, id, r.Status, ReasonRecovery, m.byLoad)

	default:
		return m.apply(ctx, id, r.Status, ReasonProbe, m.byLoad)
	}
}

// apply stores the transition chosen by next, provided the worker still
// holds the status observed before probing.
func (m *Monitor) apply(ctx context.Context, id string, observed subagent.Status, reason string, next func(*subagent.Registration) (subagent.Status, bool)) (*Change, error) {
	var role subagent.Role
	prev, to, changed, err := m.reg.Transition(ctx, id, func(cur *subagent.Registration) (subagent.Status, bool) {
		role = cur.Definition.Role
		if cur.Status != observed {
			return "", false
		}
		return next(cur)
	})
	if err != nil || !changed || prev == to {
		return nil, err
	}
	c := Change{WorkerID: id, Role: role, From: prev, To: to, Reason: reason}
	m.emit(ctx, c)
	return &c, nil
}

// byLoad picks busy or active from the worker's current load.
func (m *Monitor) byLoad(cur *subagent.Registration) (subagent.Status, bool) {
	if cur.CurrentLoad > m.busyThreshold {
		return subagent.StatusBusy, true
	}
	return subagent.StatusActive, true
}

func (m *Monitor) probe(ctx context.Context, r *subagent.Registration) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("probe panicked: %v", p)
		}
	}()
	return m.prober.Probe(ctx, r)
}

func (m *Monitor) emit(ctx context.Context, c Change) {
	m.logger.Info("worker status changed",
		"worker", c.WorkerID, "from", c.From, "to", c.To, "reason", c.Reason)
	if m.onChange != nil {
		m.onChange(ctx, c)
	}
}
