package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/armatrix/agent-delegation-go/subagent"
)

func TestBuild_Defaults(t *testing.T) {
	def := subagent.Definition{
		ID:     "qa-1",
		Role:   subagent.RoleQA,
		Skills: []string{"jest", "playwright"},
		Tools:  []string{"Bash", "Read"},
	}

	p := Build(def)

	assert.Equal(t, []string{"jest", "playwright"}, p.Specializations)
	assert.Equal(t, []string{"testing", "quality-assurance", "automation", "validation"}, p.Categories)
	assert.Equal(t, []string{"Bash", "Read"}, p.Tools)
	assert.Equal(t, DefaultResponseTime, p.Baseline.AvgResponseTime)
	assert.Equal(t, DefaultReliability, p.Baseline.Reliability)
	assert.Equal(t, 1, p.Baseline.MaxConcurrent)
}

func TestBuild_HistoricalMetrics(t *testing.T) {
	rate := 87.5
	rt := 750 * time.Millisecond
	def := subagent.Definition{
		ID:                     "be-1",
		Role:                   subagent.RoleBackendDev,
		MaxConcurrent:          3,
		HistoricalSuccessRate:  &rate,
		HistoricalResponseTime: &rt,
	}

	p := Build(def)

	assert.Equal(t, 87.5, p.Baseline.Reliability)
	assert.Equal(t, rt, p.Baseline.AvgResponseTime)
	assert.Equal(t, 3, p.Baseline.MaxConcurrent)
}

func TestBuild_ClampsReliability(t *testing.T) {
	rate := 140.0
	p := Build(subagent.Definition{ID: "x", HistoricalSuccessRate: &rate})
	assert.Equal(t, 100.0, p.Baseline.Reliability)
}

func TestBuild_DoesNotAliasDefinition(t *testing.T) {
	def := subagent.Definition{ID: "x", Skills: []string{"go"}, Tools: []string{"Read"}}
	p := Build(def)

	p.Specializations[0] = "rust"
	p.Tools[0] = "Bash"
	assert.Equal(t, "go", def.Skills[0])
	assert.Equal(t, "Read", def.Tools[0])
}

func TestCategories_EveryRoleMapped(t *testing.T) {
	for _, r := range subagent.Roles() {
		assert.NotEmpty(t, Categories(r), "role %s", r)
	}
	assert.Equal(t, []string{"general"}, Categories("Unknown"))
}
