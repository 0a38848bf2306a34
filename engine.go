package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/armatrix/agent-delegation-go/executor"
	"github.com/armatrix/agent-delegation-go/health"
	"github.com/armatrix/agent-delegation-go/hook"
	"github.com/armatrix/agent-delegation-go/internal/config"
	"github.com/armatrix/agent-delegation-go/internal/discovery"
	"github.com/armatrix/agent-delegation-go/internal/hookrunner"
	"github.com/armatrix/agent-delegation-go/internal/scoring"
	"github.com/armatrix/agent-delegation-go/internal/stats"
	"github.com/armatrix/agent-delegation-go/registry"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Engine is the delegation coordination point. It owns the worker registry,
// the running-task store and the health monitor. It is safe for concurrent
// use.
type Engine struct {
	opts    engineOptions
	reg     *registry.Registry
	runner  *subagent.Runner
	monitor *health.Monitor
	scorer  *scoring.Scorer
	hooks   *hookrunner.Runner
	exec    subagent.ExecFunc
	logger  *slog.Logger
}

// New creates an Engine with the given options.
func New(opts ...EngineOption) (*Engine, error) {
	// Capture user-set values before applying defaults
	var userSet engineOptions
	for _, fn := range opts {
		fn(&userSet)
	}

	resolved := resolveOptions(opts)

	// User-explicit options take precedence over file-based settings
	if len(resolved.settingSources) > 0 {
		settings, err := config.LoadSettings(resolved.settingSources...)
		if err != nil {
			return nil, err
		}
		applySettings(&resolved, settings, &userSet)
	}

	hooks, err := hookrunner.New(resolved.hooks)
	if err != nil {
		return nil, fmt.Errorf("delegation: hooks: %w", err)
	}

	exec := resolved.exec
	if exec == nil {
		x, err := executor.New(executor.Config{
			Kind:      resolved.executorKind,
			Simulated: resolved.simulated,
			Anthropic: resolved.anthropic,
			Rand:      resolved.rnd,
		})
		if err != nil {
			return nil, fmt.Errorf("delegation: %w", err)
		}
		exec = executor.Func(x)
	}

	regOpts := []registry.Option{registry.WithClock(resolved.now)}
	if resolved.healthCheckInterval > 0 {
		regOpts = append(regOpts, registry.WithHealthCheckInterval(resolved.healthCheckInterval))
	}
	if resolved.smoothingWeight > 0 {
		regOpts = append(regOpts, registry.WithSmoothingWeight(resolved.smoothingWeight))
	}

	runnerOpts := []subagent.RunnerOption{subagent.WithRunnerClock(resolved.now)}
	if resolved.taskIDs != nil {
		runnerOpts = append(runnerOpts, subagent.WithTaskIDs(resolved.taskIDs))
	}

	e := &Engine{
		opts:   resolved,
		reg:    registry.New(resolved.store, regOpts...),
		runner: subagent.NewRunner(runnerOpts...),
		scorer: scoring.New(resolved.weights),
		hooks:  hooks,
		exec:   exec,
		logger: resolved.logger,
	}

	prober := resolved.prober
	if prober == nil {
		prober = health.NewCoinProber(resolved.probeSuccessRate, resolved.rnd)
	}
	e.monitor = health.New(e.reg,
		health.WithProber(prober),
		health.WithRandSource(resolved.rnd),
		health.WithLogger(resolved.logger),
		health.WithClock(resolved.now),
		health.WithSweepInterval(resolved.sweepInterval),
		health.WithBusyThreshold(resolved.busyThreshold),
		health.OnChange(e.onStatusChange),
	)
	return e, nil
}

// applySettings merges loaded settings into resolved options.
// Only fields the caller did not set explicitly are overridden.
func applySettings(o *engineOptions, s *config.Settings, userSet *engineOptions) {
	if userSet.sweepInterval == 0 && s.SweepInterval > 0 {
		o.sweepInterval = s.SweepInterval
	}
	if userSet.healthCheckInterval == 0 && s.HealthCheckInterval > 0 {
		o.healthCheckInterval = s.HealthCheckInterval
	}
	if userSet.probeSuccessRate == 0 && s.ProbeSuccessRate > 0 {
		o.probeSuccessRate = s.ProbeSuccessRate
	}
	if userSet.busyThreshold == 0 && s.BusyThreshold > 0 {
		o.busyThreshold = s.BusyThreshold
	}
	if userSet.smoothingWeight == 0 && s.SmoothingWeight > 0 {
		o.smoothingWeight = s.SmoothingWeight
	}
	if userSet.defaultTimeout == 0 && s.DefaultTimeout > 0 {
		o.defaultTimeout = s.DefaultTimeout
	}
	if userSet.rnd == nil && s.Seed != 0 {
		o.rnd = subagent.NewSeededRandSource(s.Seed)
	}
	if userSet.weights == (scoring.Weights{}) && !s.Weights.IsZero() {
		o.weights = scoring.Weights{
			Success:        s.Weights.Success,
			Load:           s.Weights.Load,
			Tools:          s.Weights.Tools,
			Specialization: s.Weights.Specialization,
			Role:           s.Weights.Role,
		}
	}
	if userSet.executorKind == "" && s.Executor != "" {
		o.executorKind = s.Executor
	}
	if userSet.simulated == (executor.SimulatedConfig{}) {
		o.simulated = executor.SimulatedConfig{
			MinLatency:  s.Simulated.MinLatency,
			MaxLatency:  s.Simulated.MaxLatency,
			FailureRate: s.Simulated.FailureRate,
		}
	}
	if len(userSet.anthropic) == 0 {
		o.anthropic = anthropicOptions(s.Anthropic)
	}
}

func anthropicOptions(s config.AnthropicSettings) []executor.AnthropicOption {
	var out []executor.AnthropicOption
	if s.Model != "" {
		out = append(out, executor.WithModel(anthropic.Model(s.Model)))
	}
	if s.MaxTokens > 0 {
		out = append(out, executor.WithMaxTokens(s.MaxTokens))
	}
	var client []option.RequestOption
	if s.APIKey != "" {
		client = append(client, option.WithAPIKey(s.APIKey))
	}
	if s.BaseURL != "" {
		client = append(client, option.WithBaseURL(s.BaseURL))
	}
	if len(client) > 0 {
		out = append(out, executor.WithClientOptions(client...))
	}
	return out
}

// Start launches the background health sweep. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.monitor.Start(ctx)
}

// Stop halts the health sweep and waits for it to exit. Tasks in flight
// are left to finish.
func (e *Engine) Stop() {
	e.monitor.Stop()
}

// Health returns the engine's health monitor.
func (e *Engine) Health() *health.Monitor { return e.monitor }

// RegisterWorker adds a worker, or replaces the registration of a worker
// with the same ID.
func (e *Engine) RegisterWorker(ctx context.Context, def subagent.Definition) error {
	r, err := e.reg.Register(ctx, def)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidDefinition) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}
	// A replaced worker may still have tasks in flight.
	if n := e.runner.Running(r.ID()); n > 0 {
		if _, err := e.reg.SetLoad(ctx, r.ID(), n); err != nil {
			return err
		}
	}
	e.logger.Info("worker registered", "worker", r.ID(), "role", r.Definition.Role)
	e.fire(ctx, &hook.Input{Event: hook.WorkerRegistered, WorkerID: r.ID(), Role: r.Definition.Role})
	return nil
}

// UnregisterWorker removes a worker. It reports whether one was removed.
func (e *Engine) UnregisterWorker(ctx context.Context, id string) (bool, error) {
	prev, err := e.reg.Get(ctx, id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	removed, err := e.reg.Unregister(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	e.logger.Info("worker unregistered", "worker", id)
	e.fire(ctx, &hook.Input{Event: hook.WorkerUnregistered, WorkerID: id, Role: prev.Definition.Role})
	return true, nil
}

// ListWorkers returns every registration in registration order.
func (e *Engine) ListWorkers(ctx context.Context) ([]*subagent.Registration, error) {
	return e.reg.List(ctx)
}

// FindWorkers returns the registrations matching f. A nil filter matches all.
func (e *Engine) FindWorkers(ctx context.Context, f *subagent.Filter) ([]*subagent.Registration, error) {
	regs, err := e.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	return discovery.Find(regs, f), nil
}

// GetWorker returns one registration.
func (e *Engine) GetWorker(ctx context.Context, id string) (*subagent.Registration, error) {
	r, err := e.reg.Get(ctx, id)
	if err != nil {
		return nil, e.workerErr(id, err)
	}
	return r, nil
}

// GetCapabilities returns a worker's capability profile.
func (e *Engine) GetCapabilities(ctx context.Context, id string) (subagent.CapabilityProfile, error) {
	r, err := e.GetWorker(ctx, id)
	if err != nil {
		return subagent.CapabilityProfile{}, err
	}
	return r.Profile, nil
}

// FindBestWorker picks the worker best suited to task. Workers missing any
// of requiredTools are never chosen. It returns ErrUnavailable when no
// worker qualifies.
func (e *Engine) FindBestWorker(ctx context.Context, task string, requiredTools []string, tags ...string) (*subagent.Registration, error) {
	regs, err := e.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	best := discovery.Best(regs, scoring.Task{Text: task, RequiredTools: requiredTools, Tags: tags}, e.scorer)
	if best == nil {
		return nil, fmt.Errorf("%w: no worker can take the task", ErrUnavailable)
	}
	return best, nil
}

// IsAvailable reports whether the worker exists and can accept a task now.
func (e *Engine) IsAvailable(ctx context.Context, id string) bool {
	r, err := e.reg.Get(ctx, id)
	if err != nil {
		return false
	}
	return e.checkAvailable(r) == nil
}

// Statistics returns registry-wide rollups.
func (e *Engine) Statistics(ctx context.Context) (stats.Stats, error) {
	regs, err := e.reg.List(ctx)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Compute(regs), nil
}

// RecoverWorker moves a worker out of error. It reports false when the
// worker was not in error.
func (e *Engine) RecoverWorker(ctx context.Context, id string) (bool, error) {
	ok, err := e.monitor.Recover(ctx, id)
	return ok, e.workerErr(id, err)
}

// DrainWorker puts a worker into maintenance so it takes no new tasks.
func (e *Engine) DrainWorker(ctx context.Context, id string) (bool, error) {
	ok, err := e.monitor.Drain(ctx, id)
	return ok, e.workerErr(id, err)
}

// DeactivateWorker marks a worker inactive.
func (e *Engine) DeactivateWorker(ctx context.Context, id string) (bool, error) {
	ok, err := e.monitor.Deactivate(ctx, id)
	return ok, e.workerErr(id, err)
}

// ReactivateWorker returns an inactive or drained worker to service.
func (e *Engine) ReactivateWorker(ctx context.Context, id string) (bool, error) {
	ok, err := e.monitor.Reactivate(ctx, id)
	return ok, e.workerErr(id, err)
}

// workerErr maps a store miss to ErrNotFound.
func (e *Engine) workerErr(id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("%w: worker %s", ErrNotFound, id)
	}
	return err
}

func (e *Engine) timeout(req subagent.Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return e.opts.defaultTimeout
}
