// Package executor provides dispatch capabilities for the delegation engine.
//
// An executor performs the work of one delegated task on behalf of a worker
// and reports what happened. The engine treats it as opaque: it only sees the
// returned [subagent.Result] or error. Three implementations are provided:
//
//   - [Simulated] sleeps for a random latency and reports plausible tool use.
//   - [Anthropic] asks a Claude model to perform the task and report back
//     through a hidden report_outcome tool.
//   - [Process] runs the worker's catalog command under a pseudo-terminal.
package executor

import (
	"context"
	"fmt"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Executor performs delegated work.
type Executor interface {
	Execute(ctx context.Context, def subagent.Definition, req subagent.Request) (*subagent.Result, error)
}

// Func adapts an Executor to the engine's dispatch signature.
func Func(e Executor) subagent.ExecFunc {
	return e.Execute
}

// Kinds accepted by New.
const (
	KindSimulated = "simulated"
	KindAnthropic = "anthropic"
	KindProcess   = "process"
)

// Config selects and configures an executor by kind.
type Config struct {
	Kind      string
	Simulated SimulatedConfig
	Anthropic []AnthropicOption
	Rand      subagent.RandSource
}

// New builds the executor named by cfg.Kind. An empty kind is simulated.
func New(cfg Config) (Executor, error) {
	switch cfg.Kind {
	case "", KindSimulated:
		return NewSimulated(cfg.Simulated, cfg.Rand), nil
	case KindAnthropic:
		return NewAnthropic(cfg.Anthropic...), nil
	case KindProcess:
		return NewProcess(), nil
	default:
		return nil, fmt.Errorf("executor: unknown kind %q", cfg.Kind)
	}
}
