package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Simulated latency defaults.
const (
	DefaultMinLatency = 100 * time.Millisecond
	DefaultMaxLatency = 500 * time.Millisecond
)

// SimulatedConfig tunes the simulated executor.
type SimulatedConfig struct {
	MinLatency time.Duration
	MaxLatency time.Duration

	// FailureRate is the probability in [0,1] that a task reports failure.
	FailureRate float64
}

// Simulated stands in for real workers. Every random choice comes from the
// injected source, so a seeded source gives reproducible runs.
type Simulated struct {
	cfg SimulatedConfig
	rnd subagent.RandSource
}

var _ Executor = (*Simulated)(nil)

// NewSimulated creates a simulated executor. A nil source uses the
// runtime's global generator.
func NewSimulated(cfg SimulatedConfig, rnd subagent.RandSource) *Simulated {
	if cfg.MinLatency <= 0 && cfg.MaxLatency <= 0 {
		cfg.MinLatency, cfg.MaxLatency = DefaultMinLatency, DefaultMaxLatency
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	if rnd == nil {
		rnd = subagent.DefaultRandSource()
	}
	return &Simulated{cfg: cfg, rnd: rnd}
}

// Execute waits for a random latency, then reports the required tools plus
// a random share of the worker's other concrete tools as used.
func (s *Simulated) Execute(ctx context.Context, def subagent.Definition, req subagent.Request) (*subagent.Result, error) {
	span := s.cfg.MaxLatency - s.cfg.MinLatency
	latency := s.cfg.MinLatency + time.Duration(s.rnd.Float64()*float64(span))

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	tools := s.pickTools(def.Tools, req.RequiredTools)
	invocations := len(tools)
	for range tools {
		if s.rnd.Float64() < 0.3 {
			invocations++
		}
	}

	res := &subagent.Result{
		ToolsUsed:       tools,
		ToolInvocations: invocations,
		Collaborated:    req.Collaborate,
	}
	if s.rnd.Float64() < s.cfg.FailureRate {
		res.Failed = true
		res.Output = fmt.Sprintf("%s could not complete: %s", def.DisplayName(), req.Task)
		return res, nil
	}
	res.Output = fmt.Sprintf("%s completed: %s", def.DisplayName(), req.Task)
	return res, nil
}

func (s *Simulated) pickTools(allowed, required []string) []string {
	used := make([]string, 0, len(allowed))
	seen := make(map[string]bool)
	for _, t := range required {
		if !seen[t] {
			used = append(used, t)
			seen[t] = true
		}
	}
	for _, t := range allowed {
		if seen[t] || strings.ContainsAny(t, "*?[{") {
			continue
		}
		if s.rnd.Float64() < 0.5 {
			used = append(used, t)
			seen[t] = true
		}
	}
	return used
}
