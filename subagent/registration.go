package subagent

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a registered worker.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusBusy        Status = "busy"
	StatusError       Status = "error"
	StatusMaintenance Status = "maintenance"
)

var allStatuses = []Status{
	StatusActive,
	StatusInactive,
	StatusBusy,
	StatusError,
	StatusMaintenance,
}

// Statuses returns every status in a fixed order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// OperatorOnly reports whether s can only be entered by an operator action.
// The health monitor neither probes nor leaves these states.
func (s Status) OperatorOnly() bool {
	return s == StatusInactive || s == StatusMaintenance
}

// Baseline holds the performance figures a capability profile starts from.
type Baseline struct {
	AvgResponseTime time.Duration `json:"avg_response_time"`
	MaxConcurrent   int           `json:"max_concurrent"`
	Reliability     float64       `json:"reliability"`
}

// CapabilityProfile is the searchable summary derived from a Definition.
type CapabilityProfile struct {
	Specializations []string `json:"specializations"`
	Categories      []string `json:"categories"`
	Tools           []string `json:"tools"`
	Baseline        Baseline `json:"baseline"`
}

// Clone returns a deep copy of the profile.
func (p CapabilityProfile) Clone() CapabilityProfile {
	out := p
	out.Specializations = cloneStrings(p.Specializations)
	out.Categories = cloneStrings(p.Categories)
	out.Tools = cloneStrings(p.Tools)
	return out
}

// Registration is the live record of one registered worker.
type Registration struct {
	Definition Definition `json:"definition"`

	Status              Status        `json:"status"`
	RegisteredAt        time.Time     `json:"registered_at"`
	LastActivity        time.Time     `json:"last_activity"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`

	// TasksCompleted never decreases. It counts failed tasks too.
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	// SuccessRate is an exponential moving average in [0,100].
	SuccessRate float64 `json:"success_rate"`

	// CurrentLoad is the share of the concurrency limit in use, in [0,100].
	CurrentLoad  float64 `json:"current_load"`
	RunningTasks int     `json:"running_tasks"`

	TotalCost decimal.Decimal `json:"total_cost"`

	Profile CapabilityProfile `json:"profile"`
}

// ID returns the worker identifier.
func (r *Registration) ID() string { return r.Definition.ID }

// Clone returns a deep copy so callers cannot mutate store state.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	out.Definition = r.Definition.Clone()
	out.Profile = r.Profile.Clone()
	return &out
}

// AtCapacity reports whether the worker already runs as many tasks as its
// concurrency limit allows.
func (r *Registration) AtCapacity() bool {
	return r.RunningTasks >= r.Definition.ConcurrencyLimit()
}

// BudgetExhausted reports whether the worker's spend reached its cap.
func (r *Registration) BudgetExhausted() bool {
	if r.Definition.MaxBudget.IsZero() {
		return false
	}
	return r.TotalCost.GreaterThanOrEqual(r.Definition.MaxBudget)
}
