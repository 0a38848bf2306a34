package delegation

import (
	"io"
	"log/slog"
	"time"

	"github.com/armatrix/agent-delegation-go/executor"
	"github.com/armatrix/agent-delegation-go/health"
	"github.com/armatrix/agent-delegation-go/hook"
	"github.com/armatrix/agent-delegation-go/internal/scoring"
	"github.com/armatrix/agent-delegation-go/registry"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// EngineOption configures an Engine via the functional options pattern.
type EngineOption func(*engineOptions)

// engineOptions holds all configurable fields set via EngineOption functions.
type engineOptions struct {
	store          registry.Store
	logger         *slog.Logger
	exec           subagent.ExecFunc
	rnd            subagent.RandSource
	now            func() time.Time
	taskIDs        func() string
	hooks          []hook.Matcher
	weights        scoring.Weights
	settingSources []string
	defaultTimeout time.Duration

	// Health supervision.
	prober              health.Prober
	probeSuccessRate    float64
	sweepInterval       time.Duration
	healthCheckInterval time.Duration
	busyThreshold       float64
	smoothingWeight     float64

	// Executor selection when no executor is set explicitly.
	executorKind string
	simulated    executor.SimulatedConfig
	anthropic    []executor.AnthropicOption
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *engineOptions) applyDefaults() {
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.rnd == nil {
		o.rnd = subagent.DefaultRandSource()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.defaultTimeout <= 0 {
		o.defaultTimeout = DefaultTimeout
	}
	if o.probeSuccessRate <= 0 {
		o.probeSuccessRate = health.DefaultProbeSuccessRate
	}
}

// resolveOptions applies all option functions and fills defaults.
func resolveOptions(opts []EngineOption) engineOptions {
	var o engineOptions
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// --- Collaborators ---

// WithStore sets the registry store. The default is an in-memory store.
func WithStore(s registry.Store) EngineOption {
	return func(o *engineOptions) { o.store = s }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

// WithExecutor sets the dispatch capability.
func WithExecutor(e executor.Executor) EngineOption {
	return func(o *engineOptions) { o.exec = executor.Func(e) }
}

// WithExecFunc sets the dispatch capability from a plain function.
func WithExecFunc(fn subagent.ExecFunc) EngineOption {
	return func(o *engineOptions) { o.exec = fn }
}

// WithRandSource sets the randomness used for probes, derived confidence and
// the simulated executor. Inject a fixed or seeded source for reproducible runs.
func WithRandSource(r subagent.RandSource) EngineOption {
	return func(o *engineOptions) { o.rnd = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) { o.now = now }
}

// WithTaskIDs sets the task identifier generator.
func WithTaskIDs(fn func() string) EngineOption {
	return func(o *engineOptions) { o.taskIDs = fn }
}

// --- Hooks ---

// WithHooks registers hook matchers. Matchers accumulate.
func WithHooks(matchers ...hook.Matcher) EngineOption {
	return func(o *engineOptions) { o.hooks = append(o.hooks, matchers...) }
}

// --- Selection ---

// WithScoringWeights replaces the default scoring weights.
func WithScoringWeights(w scoring.Weights) EngineOption {
	return func(o *engineOptions) { o.weights = w }
}

// WithDefaultTimeout sets the dispatch timeout for requests that set none.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) { o.defaultTimeout = d }
}

// --- Health ---

// WithProber replaces the coin-flip health probe.
func WithProber(p health.Prober) EngineOption {
	return func(o *engineOptions) { o.prober = p }
}

// WithProbeSuccessRate sets the success probability of the coin-flip probe.
func WithProbeSuccessRate(rate float64) EngineOption {
	return func(o *engineOptions) { o.probeSuccessRate = rate }
}

// WithSweepInterval sets how often the health monitor sweeps.
func WithSweepInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) { o.sweepInterval = d }
}

// WithHealthCheckInterval sets how long a worker may stay quiet before it
// is probed.
func WithHealthCheckInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) { o.healthCheckInterval = d }
}

// WithBusyThreshold sets the load percentage above which a healthy worker
// is labelled busy.
func WithBusyThreshold(pct float64) EngineOption {
	return func(o *engineOptions) { o.busyThreshold = pct }
}

// WithSmoothingWeight sets the EMA weight of the newest task outcome.
func WithSmoothingWeight(w float64) EngineOption {
	return func(o *engineOptions) { o.smoothingWeight = w }
}

// --- Settings ---

// WithSettingSources loads settings files (YAML, JSON or TOML) in order.
// Explicit options take precedence over file-based settings.
func WithSettingSources(paths ...string) EngineOption {
	return func(o *engineOptions) { o.settingSources = paths }
}
