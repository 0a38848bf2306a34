package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-delegation-go/internal/profile"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// Defaults for registration bookkeeping.
const (
	// DefaultHealthCheckInterval is how stale a registration must be before
	// the health monitor probes it.
	DefaultHealthCheckInterval = 60 * time.Second

	// DefaultSmoothingWeight is the EMA weight given to the newest sample.
	DefaultSmoothingWeight = 0.1
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for registration and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithHealthCheckInterval sets the interval assigned to new registrations.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.healthInterval = d
		}
	}
}

// WithSmoothingWeight sets the EMA weight, clamped to (0,1].
func WithSmoothingWeight(w float64) Option {
	return func(r *Registry) {
		if w > 0 && w <= 1 {
			r.weight = w
		}
	}
}

// Registry owns the lifecycle of registrations. Every mutation goes through
// Store.Update, so concurrent callers never observe a half-applied change.
type Registry struct {
	store          Store
	now            func() time.Time
	healthInterval time.Duration
	weight         float64
}

// New creates a Registry over store. A nil store means a fresh MemoryStore.
func New(store Store, opts ...Option) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	r := &Registry{
		store:          store,
		now:            time.Now,
		healthInterval: DefaultHealthCheckInterval,
		weight:         DefaultSmoothingWeight,
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Registry) Store() Store { return r.store }

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time { return r.now() }

// Register creates an active registration for def, replacing any previous
// registration with the same ID. Nothing from the old registration is kept.
func (r *Registry) Register(ctx context.Context, def subagent.Definition) (*subagent.Registration, error) {
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if def.MaxConcurrent < 0 {
		return nil, fmt.Errorf("%w: %s: negative max concurrency", ErrInvalidDefinition, def.ID)
	}
	if def.Role == "" {
		def.Role = subagent.RoleCustom
	}
	def = def.Clone()

	prof := profile.Build(def)
	now := r.now()
	reg := &subagent.Registration{
		Definition:          def,
		Status:              subagent.StatusActive,
		RegisteredAt:        now,
		LastActivity:        now,
		HealthCheckInterval: r.healthInterval,
		SuccessRate:         prof.Baseline.Reliability,
		TotalCost:           decimal.Zero,
		Profile:             prof,
	}
	if err := r.store.Put(ctx, reg); err != nil {
		return nil, err
	}
	return reg.Clone(), nil
}

// Unregister removes the registration and reports whether one existed.
func (r *Registry) Unregister(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, id)
}

// Get returns a copy of the registration.
func (r *Registry) Get(ctx context.Context, id string) (*subagent.Registration, error) {
	return r.store.Get(ctx, id)
}

// List returns copies of every registration, oldest first.
func (r *Registry) List(ctx context.Context) ([]*subagent.Registration, error) {
	return r.store.List(ctx)
}

// UpdateStatus sets the worker's status and records activity. It is
// idempotent and returns the status held before the call.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status subagent.Status) (subagent.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var prev subagent.Status
	_, err := r.store.Update(ctx, id, func(reg *subagent.Registration) error {
		prev = reg.Status
		reg.Status = status
		reg.LastActivity = r.now()
		return nil
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

// Transition sets the status only when the current status satisfies allow.
// It reports whether the transition happened and the status held before.
func (r *Registry) Transition(ctx context.Context, id string, allow func(*subagent.Registration) (subagent.Status, bool)) (prev subagent.Status, next subagent.Status, changed bool, err error) {
	_, err = r.store.Update(ctx, id, func(reg *subagent.Registration) error {
		prev = reg.Status
		to, ok := allow(reg)
		if !ok {
			next = prev
			return errSkip
		}
		next = to
		reg.Status = to
		reg.LastActivity = r.now()
		changed = true
		return nil
	})
	if errors.Is(err, errSkip) {
		err = nil
	}
	return prev, next, changed, err
}

// errSkip aborts an Update without reporting a failure.
var errSkip = errors.New("registry: skip")

// RecordCompletion folds one finished task into the worker's statistics:
// TasksCompleted grows by one and both the success rate and the average
// response time move toward the new sample by the smoothing weight.
func (r *Registry) RecordCompletion(ctx context.Context, id string, success bool, responseTime time.Duration, cost decimal.Decimal) (*subagent.Registration, error) {
	w := r.weight
	return r.store.Update(ctx, id, func(reg *subagent.Registration) error {
		sample := 0.0
		if success {
			sample = 100
		} else {
			reg.TasksFailed++
		}
		reg.TasksCompleted++
		reg.SuccessRate = clampPercent(reg.SuccessRate*(1-w) + sample*w)

		avg := float64(reg.Profile.Baseline.AvgResponseTime)
		reg.Profile.Baseline.AvgResponseTime = time.Duration(avg*(1-w) + float64(responseTime)*w)

		if !cost.IsZero() {
			reg.TotalCost = reg.TotalCost.Add(cost)
		}
		reg.LastActivity = r.now()
		return nil
	})
}

// SetLoad records how many tasks the worker is running and derives
// CurrentLoad from its concurrency limit.
func (r *Registry) SetLoad(ctx context.Context, id string, running int) (*subagent.Registration, error) {
	if running < 0 {
		running = 0
	}
	return r.store.Update(ctx, id, func(reg *subagent.Registration) error {
		reg.RunningTasks = running
		reg.CurrentLoad = clampPercent(float64(running) / float64(reg.Definition.ConcurrencyLimit()) * 100)
		reg.LastActivity = r.now()
		return nil
	})
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
