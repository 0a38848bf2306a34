// Package hook defines public types for the delegation hook system.
//
// Hooks let users register callbacks that fire on worker lifecycle changes
// and around delegated tasks. The [Matcher] type binds a set of [Func]
// callbacks to a specific [Event] and an optional worker-ID regex pattern.
package hook

import (
	"context"
	"time"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Event identifies when a hook fires.
type Event string

const (
	WorkerRegistered   Event = "WorkerRegistered"
	WorkerUnregistered Event = "WorkerUnregistered"
	StatusChanged      Event = "StatusChanged"
	TaskStarted        Event = "TaskStarted"
	TaskCompleted      Event = "TaskCompleted"
	TaskFailed         Event = "TaskFailed"
	TaskCancelled      Event = "TaskCancelled"
)

// Input is passed to hook functions.
type Input struct {
	Event    Event
	WorkerID string
	Role     subagent.Role

	// StatusChanged
	From   subagent.Status
	To     subagent.Status
	Reason string // "probe", "recovery", "operator".

	// Task events
	TaskID   string
	Request  *subagent.Request  // TaskStarted.
	Response *subagent.Response // TaskCompleted, TaskFailed, TaskCancelled.
}

// Result is returned by hook functions. A zero value means "no action".
type Result struct {
	Block  bool   // TaskStarted only: the task is rejected before dispatch.
	Reason string // Human-readable reason for blocking.
}

// Func is the signature for hook callbacks.
type Func func(ctx context.Context, input *Input) (*Result, error)

// Matcher defines which events a set of hooks should fire for.
type Matcher struct {
	Event   Event         // Which event to match.
	Pattern string        // Regex pattern for worker ID (empty = match all).
	Hooks   []Func        // Functions to call (in order).
	Timeout time.Duration // Max time for all hooks in this matcher (0 = 30s default).
}
