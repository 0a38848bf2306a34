package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armatrix/agent-delegation-go/internal/profile"
	"github.com/armatrix/agent-delegation-go/internal/scoring"
	"github.com/armatrix/agent-delegation-go/subagent"
)

func mk(id string, role subagent.Role, status subagent.Status, load float64, skills, tools []string) *subagent.Registration {
	def := subagent.Definition{ID: id, Role: role, Skills: skills, Tools: tools}
	return &subagent.Registration{
		Definition:  def,
		Status:      status,
		SuccessRate: 95,
		CurrentLoad: load,
		Profile:     profile.Build(def),
	}
}

func ids(regs []*subagent.Registration) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[i] = r.ID()
	}
	return out
}

func fixture() []*subagent.Registration {
	return []*subagent.Registration{
		mk("qa", subagent.RoleQA, subagent.StatusActive, 10, []string{"jest"}, []string{"Bash"}),
		mk("fe", subagent.RoleFrontendDev, subagent.StatusBusy, 90, []string{"react"}, []string{"Read", "Write"}),
		mk("be", subagent.RoleBackendDev, subagent.StatusError, 0, []string{"postgres"}, []string{"Read", "Bash", "mcp__db__*"}),
		mk("ops", subagent.RoleDevOps, subagent.StatusMaintenance, 50, nil, []string{"Bash"}),
	}
}

func TestFind_NilFilterReturnsAll(t *testing.T) {
	assert.Equal(t, []string{"qa", "fe", "be", "ops"}, ids(Find(fixture(), nil)))
}

func TestFind_Predicates(t *testing.T) {
	regs := fixture()
	minRate := 90.0
	maxLoad := 60.0

	assert.Equal(t, []string{"fe"}, ids(Find(regs, &subagent.Filter{Role: subagent.RoleFrontendDev})))
	assert.Equal(t, []string{"fe", "be"}, ids(Find(regs, &subagent.Filter{Statuses: []subagent.Status{subagent.StatusBusy, subagent.StatusError}})))
	assert.Equal(t, []string{"qa", "be"}, ids(Find(regs, &subagent.Filter{Capabilities: []string{"JEST", "database"}})))
	assert.Len(t, Find(regs, &subagent.Filter{MinSuccessRate: &minRate}), 4)
	assert.Equal(t, []string{"qa", "be", "ops"}, ids(Find(regs, &subagent.Filter{MaxLoad: &maxLoad})))
	assert.Equal(t, []string{"qa", "be", "ops"}, ids(Find(regs, &subagent.Filter{RequiredTools: []string{"Bash"}})))
	assert.Equal(t, []string{"be"}, ids(Find(regs, &subagent.Filter{RequiredTools: []string{"mcp__db__query"}})))
}

func TestFind_MonotoneNarrowing(t *testing.T) {
	regs := fixture()
	maxLoad := 60.0
	base := subagent.Filter{RequiredTools: []string{"Bash"}}
	narrowed := base
	narrowed.MaxLoad = &maxLoad
	narrowest := narrowed.WithStatus(subagent.StatusActive)

	a := Find(regs, &base)
	b := Find(regs, &narrowed)
	c := Find(regs, &narrowest)
	assert.LessOrEqual(t, len(b), len(a))
	assert.LessOrEqual(t, len(c), len(b))
	for _, r := range c {
		assert.Contains(t, ids(b), r.ID())
	}
	assert.Equal(t, []string{"qa"}, ids(c))
}

func TestCandidates_Tiers(t *testing.T) {
	regs := fixture()

	// Tier 1: active and comfortable.
	assert.Equal(t, []string{"qa"}, ids(Candidates(regs, nil)))

	// Tier 2: qa lacks Write, so the busy fe qualifies.
	assert.Equal(t, []string{"fe"}, ids(Candidates(regs, []string{"Write"})))

	// Tier 3: only the error worker has the database tools.
	assert.Equal(t, []string{"be"}, ids(Candidates(regs, []string{"mcp__db__query"})))

	assert.Empty(t, Candidates(regs, []string{"Teleport"}))
}

func TestCandidates_SkipsOperatorParked(t *testing.T) {
	regs := []*subagent.Registration{
		mk("drained", subagent.RoleFrontendDev, subagent.StatusMaintenance, 0, []string{"react"}, []string{"Write"}),
		mk("off", subagent.RoleFrontendDev, subagent.StatusInactive, 0, []string{"react"}, []string{"Write"}),
		mk("errored", subagent.RoleQA, subagent.StatusError, 0, nil, []string{"Write"}),
	}
	assert.Equal(t, []string{"errored"}, ids(Candidates(regs, []string{"Write"})))

	best := Best(regs, scoring.Task{Text: "write a react component"}, scoring.New(scoring.DefaultWeights()))
	require.NotNil(t, best)
	assert.Equal(t, "errored", best.ID())

	assert.Empty(t, Candidates(regs[:2], nil))
}

func TestBest_NeverMissingRequiredTool(t *testing.T) {
	regs := fixture()
	s := scoring.New(scoring.DefaultWeights())
	for _, tools := range [][]string{nil, {"Bash"}, {"Read"}, {"Read", "Write"}, {"Read", "Bash"}, {"Edit"}} {
		best := Best(regs, scoring.Task{Text: "react postgres test", RequiredTools: tools}, s)
		if best == nil {
			continue
		}
		assert.Empty(t, subagent.MissingTools(best.Definition.Tools, tools), "tools %v chose %s", tools, best.ID())
	}
	assert.Nil(t, Best(regs, scoring.Task{Text: "x", RequiredTools: []string{"Edit"}}, s))
}

func TestBest_ReactComponent(t *testing.T) {
	regs := []*subagent.Registration{
		mk("w1", subagent.RoleQA, subagent.StatusActive, 0, nil, []string{"Bash"}),
		mk("w2", subagent.RoleFrontendDev, subagent.StatusActive, 0, nil, []string{"Read", "Write"}),
	}
	best := Best(regs, scoring.Task{Text: "write a react component"}, scoring.New(scoring.DefaultWeights()))
	require.NotNil(t, best)
	assert.Equal(t, "w2", best.ID())
}

func TestBest_TieKeepsOrder(t *testing.T) {
	regs := []*subagent.Registration{
		mk("first", subagent.RoleCustom, subagent.StatusActive, 0, nil, nil),
		mk("second", subagent.RoleCustom, subagent.StatusActive, 0, nil, nil),
	}
	s := scoring.New(scoring.DefaultWeights())
	assert.Equal(t, "first", Best(regs, scoring.Task{Text: "anything"}, s).ID())

	ranked := Rank(regs, scoring.Task{Text: "anything"}, s)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].Registration.ID())
}

func TestRank_Order(t *testing.T) {
	regs := []*subagent.Registration{
		mk("loaded", subagent.RoleCustom, subagent.StatusActive, 60, nil, nil),
		mk("idle", subagent.RoleCustom, subagent.StatusActive, 0, nil, nil),
	}
	ranked := Rank(regs, scoring.Task{Text: "anything"}, scoring.New(scoring.DefaultWeights()))
	require.Len(t, ranked, 2)
	assert.Equal(t, "idle", ranked[0].Registration.ID())
	assert.Greater(t, ranked[0].Score.Total(), ranked[1].Score.Total())
}
