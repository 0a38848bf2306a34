// Package stats computes read-only rollups over a registry snapshot.
package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Stats summarises every registered worker.
type Stats struct {
	TotalWorkers int                     `json:"total_workers"`
	ByStatus     map[subagent.Status]int `json:"by_status"`
	ByRole       map[subagent.Role]int   `json:"by_role"`

	// Averages are rounded to two decimals.
	AvgSuccessRate  float64       `json:"avg_success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	AvgLoad         float64       `json:"avg_load"`

	TotalCompleted int             `json:"total_completed"`
	TotalFailed    int             `json:"total_failed"`
	TotalCost      decimal.Decimal `json:"total_cost"`
}

// Compute aggregates regs. Every status and role has an entry, zero
// included, and an empty snapshot yields all-zero metrics.
func Compute(regs []*subagent.Registration) Stats {
	s := Stats{
		ByStatus:  make(map[subagent.Status]int),
		ByRole:    make(map[subagent.Role]int),
		TotalCost: decimal.Zero,
	}
	for _, st := range subagent.Statuses() {
		s.ByStatus[st] = 0
	}
	for _, r := range subagent.Roles() {
		s.ByRole[r] = 0
	}
	if len(regs) == 0 {
		return s
	}

	var (
		rate = decimal.Zero
		load = decimal.Zero
		rt   = decimal.Zero
	)
	for _, r := range regs {
		s.TotalWorkers++
		s.ByStatus[r.Status]++
		s.ByRole[subagent.ParseRole(string(r.Definition.Role))]++
		s.TotalCompleted += r.TasksCompleted
		s.TotalFailed += r.TasksFailed
		s.TotalCost = s.TotalCost.Add(r.TotalCost)

		rate = rate.Add(decimal.NewFromFloat(r.SuccessRate))
		load = load.Add(decimal.NewFromFloat(r.CurrentLoad))
		rt = rt.Add(decimal.NewFromInt(int64(r.Profile.Baseline.AvgResponseTime)))
	}

	n := decimal.NewFromInt(int64(len(regs)))
	s.AvgSuccessRate = rate.Div(n).Round(2).InexactFloat64()
	s.AvgLoad = load.Div(n).Round(2).InexactFloat64()
	// Durations round to hundredths of a millisecond.
	ms := rt.Div(n).Div(decimal.NewFromInt(int64(time.Millisecond))).Round(2)
	s.AvgResponseTime = time.Duration(ms.Mul(decimal.NewFromInt(int64(time.Millisecond))).IntPart())
	return s
}
