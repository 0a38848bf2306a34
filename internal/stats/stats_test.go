package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/armatrix/agent-delegation-go/subagent"
)

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil)

	assert.Equal(t, 0, s.TotalWorkers)
	assert.Len(t, s.ByStatus, len(subagent.Statuses()))
	assert.Len(t, s.ByRole, len(subagent.Roles()))
	for _, v := range s.ByStatus {
		assert.Zero(t, v)
	}
	for _, v := range s.ByRole {
		assert.Zero(t, v)
	}
	assert.Zero(t, s.AvgSuccessRate)
	assert.Zero(t, s.AvgLoad)
	assert.Zero(t, s.AvgResponseTime)
	assert.Zero(t, s.TotalCompleted)
	assert.True(t, s.TotalCost.IsZero())
}

func TestCompute_Rollups(t *testing.T) {
	regs := []*subagent.Registration{
		{
			Definition:     subagent.Definition{ID: "a", Role: subagent.RoleQA},
			Status:         subagent.StatusActive,
			SuccessRate:    90,
			CurrentLoad:    50,
			TasksCompleted: 4,
			TasksFailed:    1,
			TotalCost:      decimal.RequireFromString("0.10"),
			Profile:        subagent.CapabilityProfile{Baseline: subagent.Baseline{AvgResponseTime: time.Second}},
		},
		{
			Definition:     subagent.Definition{ID: "b", Role: subagent.RoleQA},
			Status:         subagent.StatusError,
			SuccessRate:    80,
			CurrentLoad:    0,
			TasksCompleted: 2,
			TotalCost:      decimal.RequireFromString("0.05"),
			Profile:        subagent.CapabilityProfile{Baseline: subagent.Baseline{AvgResponseTime: 2 * time.Second}},
		},
		{
			Definition:  subagent.Definition{ID: "c", Role: subagent.RoleDevOps},
			Status:      subagent.StatusActive,
			SuccessRate: 100,
			CurrentLoad: 100,
			TotalCost:   decimal.Zero,
			Profile:     subagent.CapabilityProfile{Baseline: subagent.Baseline{AvgResponseTime: 2 * time.Second}},
		},
	}

	s := Compute(regs)

	assert.Equal(t, 3, s.TotalWorkers)
	assert.Equal(t, 2, s.ByStatus[subagent.StatusActive])
	assert.Equal(t, 1, s.ByStatus[subagent.StatusError])
	assert.Equal(t, 0, s.ByStatus[subagent.StatusMaintenance])
	assert.Equal(t, 2, s.ByRole[subagent.RoleQA])
	assert.Equal(t, 1, s.ByRole[subagent.RoleDevOps])
	assert.Equal(t, 0, s.ByRole[subagent.RoleArchitect])

	assert.Equal(t, 90.0, s.AvgSuccessRate)
	assert.Equal(t, 50.0, s.AvgLoad)
	assert.Equal(t, 1666670*time.Microsecond, s.AvgResponseTime)
	assert.Equal(t, 6, s.TotalCompleted)
	assert.Equal(t, 1, s.TotalFailed)
	assert.True(t, s.TotalCost.Equal(decimal.RequireFromString("0.15")))
}

func TestCompute_RoundsToTwoDecimals(t *testing.T) {
	regs := []*subagent.Registration{
		{Definition: subagent.Definition{ID: "a"}, SuccessRate: 95.5, TotalCost: decimal.Zero},
		{Definition: subagent.Definition{ID: "b"}, SuccessRate: 85.95, TotalCost: decimal.Zero},
		{Definition: subagent.Definition{ID: "c"}, SuccessRate: 100, TotalCost: decimal.Zero},
	}
	s := Compute(regs)
	assert.Equal(t, 93.82, s.AvgSuccessRate)
	assert.Equal(t, 3, s.ByRole[subagent.RoleCustom])
	assert.Len(t, s.ByRole, len(subagent.Roles()))
}
