package subagent

import "time"

// RunnerOption configures a Runner via the functional options pattern.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	now   func() time.Time
	newID func() string
}

func resolveRunnerOptions(opts []RunnerOption) runnerOptions {
	var o runnerOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return GenerateID(PrefixTask) }
	}
	return o
}

// WithRunnerClock sets the clock used for task start times.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(o *runnerOptions) { o.now = now }
}

// WithTaskIDs sets the generator used for new task identifiers.
func WithTaskIDs(newID func() string) RunnerOption {
	return func(o *runnerOptions) { o.newID = newID }
}
