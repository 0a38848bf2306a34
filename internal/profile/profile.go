// Package profile derives searchable capability profiles from worker
// definitions. It has no side effects.
package profile

import (
	"time"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Baseline defaults used when a definition carries no historical metrics.
const (
	DefaultResponseTime = 2 * time.Second
	DefaultReliability  = 95.0
)

// categories maps each role to the task categories it is suited for.
var categories = map[subagent.Role][]string{
	subagent.RoleArchitect:    {"architecture", "system-design", "planning", "technical-strategy"},
	subagent.RoleBackendDev:   {"backend", "api", "database", "server", "implementation"},
	subagent.RoleFrontendDev:  {"frontend", "ui", "components", "styling", "accessibility"},
	subagent.RoleFullstackDev: {"frontend", "backend", "integration", "implementation"},
	subagent.RoleQA:           {"testing", "quality-assurance", "automation", "validation"},
	subagent.RoleDevOps:       {"deployment", "infrastructure", "ci-cd", "monitoring"},
	subagent.RoleSecurity:     {"security", "audit", "vulnerability-assessment", "compliance"},
	subagent.RoleDataEngineer: {"data", "pipelines", "analytics", "etl"},
	subagent.RoleTechWriter:   {"documentation", "writing", "tutorials", "api-reference"},
	subagent.RoleCodeReviewer: {"code-review", "refactoring", "best-practices", "maintainability"},
	subagent.RoleCustom:       {"general"},
}

// Categories returns the task categories for a role. Unknown roles get the
// Custom categories.
func Categories(role subagent.Role) []string {
	c, ok := categories[role]
	if !ok {
		c = categories[subagent.RoleCustom]
	}
	out := make([]string, len(c))
	copy(out, c)
	return out
}

// Build returns the capability profile for a definition.
func Build(def subagent.Definition) subagent.CapabilityProfile {
	baseline := subagent.Baseline{
		AvgResponseTime: DefaultResponseTime,
		MaxConcurrent:   def.ConcurrencyLimit(),
		Reliability:     DefaultReliability,
	}
	if def.HistoricalResponseTime != nil && *def.HistoricalResponseTime > 0 {
		baseline.AvgResponseTime = *def.HistoricalResponseTime
	}
	if def.HistoricalSuccessRate != nil {
		baseline.Reliability = clamp(*def.HistoricalSuccessRate, 0, 100)
	}

	return subagent.CapabilityProfile{
		Specializations: copyOrEmpty(def.Skills),
		Categories:      Categories(def.Role),
		Tools:           copyOrEmpty(def.Tools),
		Baseline:        baseline,
	}
}

func copyOrEmpty(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
