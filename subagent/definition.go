// Package subagent defines the worker data model shared by the registry,
// the health monitor and the delegation engine: catalog definitions,
// live registrations, delegation requests and the running-task store.
package subagent

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the closed set of worker specialisations. Catalog entries whose
// role is not recognised are registered as RoleCustom.
type Role string

const (
	RoleArchitect    Role = "Architect"
	RoleBackendDev   Role = "BackendDev"
	RoleFrontendDev  Role = "FrontendDev"
	RoleFullstackDev Role = "FullstackDev"
	RoleQA           Role = "QA"
	RoleDevOps       Role = "DevOps"
	RoleSecurity     Role = "Security"
	RoleDataEngineer Role = "DataEngineer"
	RoleTechWriter   Role = "TechWriter"
	RoleCodeReviewer Role = "CodeReviewer"
	RoleCustom       Role = "Custom"
)

var allRoles = []Role{
	RoleArchitect,
	RoleBackendDev,
	RoleFrontendDev,
	RoleFullstackDev,
	RoleQA,
	RoleDevOps,
	RoleSecurity,
	RoleDataEngineer,
	RoleTechWriter,
	RoleCodeReviewer,
	RoleCustom,
}

// Roles returns every role in a fixed order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole maps a catalog role string to a Role. Matching ignores case,
// dashes, underscores and spaces, so "frontend-dev" and "FrontendDev" agree.
func ParseRole(s string) Role {
	key := normalizeRole(s)
	for _, r := range allRoles {
		if normalizeRole(string(r)) == key {
			return r
		}
	}
	return RoleCustom
}

func normalizeRole(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// Definition describes a worker as supplied by the Worker Catalog.
// It is immutable once registered.
type Definition struct {
	// ID is the unique identifier used to reference this worker.
	ID string `json:"id"`

	// Name is the human-readable display name. Empty means ID.
	Name string `json:"name,omitempty"`

	Role Role `json:"role"`

	// Description is the catalog's one-line summary of the worker.
	Description string `json:"description,omitempty"`

	// Skills are the declared skill tags, copied verbatim into the
	// capability profile as specializations.
	Skills []string `json:"skills,omitempty"`

	// Tools lists the tool names the worker may invoke. Entries may be
	// doublestar patterns, e.g. "mcp__github__*".
	Tools []string `json:"tools,omitempty"`

	// MaxConcurrent is the number of tasks the worker accepts at once. 0 means 1.
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	// HistoricalSuccessRate seeds the success rate (0-100). Nil means default.
	HistoricalSuccessRate *float64 `json:"historical_success_rate,omitempty"`

	// HistoricalResponseTime seeds the response-time baseline. Nil means default.
	HistoricalResponseTime *time.Duration `json:"historical_response_time,omitempty"`

	// Instructions is the persona prompt handed to LLM-backed executors.
	Instructions string `json:"instructions,omitempty"`

	// Model overrides the executor's default model.
	Model string `json:"model,omitempty"`

	// Command is the argv used by the process executor.
	Command []string `json:"command,omitempty"`

	// MaxBudget caps the worker's cumulative spend in USD. Zero means unlimited.
	MaxBudget decimal.Decimal `json:"max_budget"`
}

// DisplayName returns Name, falling back to ID.
func (d *Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// ConcurrencyLimit returns MaxConcurrent with the zero value mapped to 1.
func (d *Definition) ConcurrencyLimit() int {
	if d.MaxConcurrent <= 0 {
		return 1
	}
	return d.MaxConcurrent
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	out := d
	out.Skills = cloneStrings(d.Skills)
	out.Tools = cloneStrings(d.Tools)
	out.Command = cloneStrings(d.Command)
	if d.HistoricalSuccessRate != nil {
		v := *d.HistoricalSuccessRate
		out.HistoricalSuccessRate = &v
	}
	if d.HistoricalResponseTime != nil {
		v := *d.HistoricalResponseTime
		out.HistoricalResponseTime = &v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
