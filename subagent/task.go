package subagent

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Priority orders delegation requests. It is carried through to executors.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Request is one unit of work to delegate.
type Request struct {
	// Target names the worker. Empty means the engine selects one.
	Target string `json:"target,omitempty"`

	// Task is the free-text work description. It must not be blank.
	Task string `json:"task"`

	// Payload carries optional structured input for the executor.
	Payload any `json:"payload,omitempty"`

	Priority Priority `json:"priority,omitempty"`

	// Timeout bounds the dispatch phase. Zero means the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RequiredTools must all be granted to the chosen worker.
	RequiredTools []string `json:"required_tools,omitempty"`

	// Collaborate allows the executor to consult other workers.
	Collaborate bool `json:"collaborate,omitempty"`

	// Tags are structured capability tags matched against specializations
	// and categories before falling back to keyword matching on Task.
	Tags []string `json:"tags,omitempty"`
}

// Phase is the lifecycle state of one delegated task.
type Phase string

const (
	PhaseAdmitted   Phase = "admitted"
	PhaseDispatched Phase = "dispatched"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// ExecutionMetadata describes one delegated task, either in flight
// (placeholder values) or finished.
type ExecutionMetadata struct {
	TaskID          string          `json:"task_id"`
	WorkerID        string          `json:"worker_id"`
	Role            Role            `json:"role"`
	Phase           Phase           `json:"phase"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time,omitzero"`
	Duration        time.Duration   `json:"duration"`
	OnTime          bool            `json:"on_time"`
	ToolsUsed       []string        `json:"tools_used"`
	ToolInvocations int             `json:"tool_invocations"`
	Collaborated    bool            `json:"collaborated"`
	Confidence      float64         `json:"confidence"`
	Cost            decimal.Decimal `json:"cost"`
}

// Clone returns a deep copy of the metadata.
func (m ExecutionMetadata) Clone() ExecutionMetadata {
	out := m
	out.ToolsUsed = cloneStrings(m.ToolsUsed)
	return out
}

// Response is the outcome of a delegation. Expected failures are reported
// here with Success=false rather than as Go errors.
type Response struct {
	Success  bool              `json:"success"`
	TaskID   string            `json:"task_id,omitempty"`
	Result   any               `json:"result,omitempty"`
	Metadata ExecutionMetadata `json:"metadata"`
	Errors   []string          `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Result is what an executor reports back after performing a task.
type Result struct {
	// Output is the work product handed back to the delegator.
	Output any

	ToolsUsed []string

	// ToolInvocations counts every tool call, including repeats.
	// Zero means len(ToolsUsed).
	ToolInvocations int

	Collaborated bool

	// Confidence is the executor's own 0-100 estimate. Zero lets the
	// engine derive one.
	Confidence float64

	// Cost is the spend incurred by the task in USD.
	Cost decimal.Decimal

	// Failed marks a task that ran but did not achieve its goal.
	Failed bool

	// Warnings are surfaced on the response unchanged.
	Warnings []string
}

// ExecFunc performs delegated work on behalf of a worker. It is the opaque
// execution capability the engine dispatches to. Implementations should
// return promptly once ctx is done; the engine cannot preempt them.
type ExecFunc func(ctx context.Context, def Definition, req Request) (*Result, error)

// Filter narrows the set of registrations returned by discovery. Every
// non-zero field is an independent predicate.
type Filter struct {
	Role           Role
	Statuses       []Status
	Capabilities   []string
	MinSuccessRate *float64
	MaxLoad        *float64
	RequiredTools  []string
}

// WithStatus returns a copy of f restricted to the given statuses.
func (f Filter) WithStatus(statuses ...Status) Filter {
	f.Statuses = statuses
	return f
}
