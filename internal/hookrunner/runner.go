// Package hookrunner executes delegation hook matchers.
package hookrunner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/armatrix/agent-delegation-go/hook"
)

// DefaultTimeout bounds one matcher when it sets no timeout.
const DefaultTimeout = 30 * time.Second

// Runner fires hooks by event and worker ID. The zero value and a nil
// Runner fire nothing.
type Runner struct {
	byEvent map[hook.Event][]compiled
}

type compiled struct {
	index   int
	workers *regexp.Regexp // nil matches every worker
	fns     []hook.Func
	timeout time.Duration
}

func (c compiled) matches(workerID string) bool {
	return c.workers == nil || c.workers.MatchString(workerID)
}

// New compiles matchers. Matchers keep their registration order within an
// event. An invalid worker pattern is an error.
func New(matchers []hook.Matcher) (*Runner, error) {
	r := &Runner{byEvent: make(map[hook.Event][]compiled)}
	for i, m := range matchers {
		c := compiled{index: i, fns: m.Hooks, timeout: m.Timeout}
		if c.timeout <= 0 {
			c.timeout = DefaultTimeout
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, fmt.Errorf("hook matcher %d (%s): invalid pattern %q: %w", i, m.Event, m.Pattern, err)
			}
			c.workers = re
		}
		r.byEvent[m.Event] = append(r.byEvent[m.Event], c)
	}
	return r, nil
}

// Len returns the number of matchers across all events.
func (r *Runner) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, cs := range r.byEvent {
		n += len(cs)
	}
	return n
}

// Has reports whether any matcher listens for ev.
func (r *Runner) Has(ev hook.Event) bool {
	return r != nil && len(r.byEvent[ev]) > 0
}

// Run fires the matchers for in.Event whose pattern matches in.WorkerID.
//
// Within a matcher, hooks run in order and stop at the first error or block.
// A failing matcher does not stop the ones after it, so a later veto still
// applies; the returned error joins every matcher failure. The first block
// ends the run.
func (r *Runner) Run(ctx context.Context, in *hook.Input) (*hook.Result, error) {
	if !r.Has(in.Event) {
		return nil, nil
	}

	var (
		out  *hook.Result
		errs []error
	)
	for _, c := range r.byEvent[in.Event] {
		if !c.matches(in.WorkerID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := c.run(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s hook matcher %d: %w", in.Event, c.index, err))
		}
		if res == nil {
			continue
		}
		if out == nil {
			out = &hook.Result{}
		}
		if res.Block {
			out.Block, out.Reason = true, res.Reason
			break
		}
	}
	return out, errors.Join(errs...)
}

func (c compiled) run(ctx context.Context, in *hook.Input) (*hook.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out *hook.Result
	for _, fn := range c.fns {
		res, err := call(ctx, fn, in)
		if err != nil {
			return out, err
		}
		if res == nil {
			continue
		}
		out = res
		if res.Block {
			return res, nil
		}
	}
	return out, nil
}

// call invokes fn, converting a panic into an error.
func call(ctx context.Context, fn hook.Func, in *hook.Input) (res *hook.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("hook panicked: %v", p)
		}
	}()
	return fn(ctx, in)
}
