// Package scoring ranks a worker against a unit of work. Higher is better;
// a perfect match scores the sum of the weights.
package scoring

import (
	"strings"
	"unicode"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Weights are the per-component maxima of a score.
type Weights struct {
	Success        float64
	Load           float64
	Tools          float64
	Specialization float64
	Role           float64
}

// DefaultWeights sum to 100.
func DefaultWeights() Weights {
	return Weights{
		Success:        30,
		Load:           20,
		Tools:          20,
		Specialization: 15,
		Role:           15,
	}
}

// Total returns the best achievable score.
func (w Weights) Total() float64 {
	return w.Success + w.Load + w.Tools + w.Specialization + w.Role
}

// maxMatches caps the raw specialization and role match counts.
const maxMatches = 3

// minWordLen is the shortest tag word considered on its own.
const minWordLen = 3

// roleKeywords is the fallback table for unstructured task text.
var roleKeywords = map[subagent.Role][]string{
	subagent.RoleArchitect:    {"architecture", "design", "system", "scalability", "blueprint", "plan", "diagram"},
	subagent.RoleBackendDev:   {"api", "backend", "server", "database", "endpoint", "rest", "graphql", "sql", "microservice"},
	subagent.RoleFrontendDev:  {"react", "component", "ui", "frontend", "css", "html", "vue", "angular", "styling", "page"},
	subagent.RoleFullstackDev: {"fullstack", "full-stack", "frontend", "backend", "integration", "feature", "end-to-end"},
	subagent.RoleQA:           {"test", "tests", "testing", "qa", "coverage", "bug", "regression", "e2e", "validate"},
	subagent.RoleDevOps:       {"deploy", "deployment", "docker", "kubernetes", "ci", "cd", "pipeline", "infrastructure", "terraform", "monitoring"},
	subagent.RoleSecurity:     {"security", "vulnerability", "audit", "auth", "authentication", "encryption", "cve", "compliance", "xss"},
	subagent.RoleDataEngineer: {"data", "etl", "pipeline", "warehouse", "analytics", "spark", "schema", "ingest"},
	subagent.RoleTechWriter:   {"documentation", "docs", "readme", "tutorial", "guide", "document", "changelog"},
	subagent.RoleCodeReviewer: {"review", "refactor", "refactoring", "cleanup", "lint", "maintainability", "quality"},
}

// RoleKeywords returns the keyword table entry for a role.
func RoleKeywords(role subagent.Role) []string {
	kw := roleKeywords[role]
	out := make([]string, len(kw))
	copy(out, kw)
	return out
}

// Task is a unit of work as seen by the scorer.
type Task struct {
	Text          string
	RequiredTools []string
	Tags          []string
}

// Scorer computes scores with a fixed weight set.
type Scorer struct {
	w Weights
}

// New returns a Scorer using w. Zero weights fall back to DefaultWeights.
func New(w Weights) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Scorer{w: w}
}

// Weights returns the scorer's weight set.
func (s *Scorer) Weights() Weights { return s.w }

// Score combines the five components for reg against t.
func (s *Scorer) Score(reg *subagent.Registration, t Task) float64 {
	b := s.Breakdown(reg, t)
	return b.Total()
}

// Breakdown holds the weighted components of one score.
type Breakdown struct {
	Success        float64 `json:"success"`
	Load           float64 `json:"load"`
	Tools          float64 `json:"tools"`
	Specialization float64 `json:"specialization"`
	Role           float64 `json:"role"`
}

// Total sums the components.
func (b Breakdown) Total() float64 {
	return b.Success + b.Load + b.Tools + b.Specialization + b.Role
}

// Breakdown returns the weighted components for reg against t.
func (s *Scorer) Breakdown(reg *subagent.Registration, t Task) Breakdown {
	words := tokenize(t.Text)
	text := strings.ToLower(t.Text)

	b := Breakdown{
		Success: clamp01(reg.SuccessRate/100) * s.w.Success,
		Load:    clamp01((100-reg.CurrentLoad)/100) * s.w.Load,
		Tools:   s.w.Tools,
	}
	if n := len(t.RequiredTools); n > 0 {
		allowed := reg.Definition.Tools
		b.Tools = float64(subagent.MatchedToolCount(allowed, t.RequiredTools)) * s.w.Tools / float64(n)
	}

	spec := specializationMatches(reg.Profile, text, words, t.Tags)
	b.Specialization = float64(min(spec, maxMatches)) * s.w.Specialization / maxMatches

	role := roleMatches(reg.Definition.Role, words)
	b.Role = float64(min(role, maxMatches)) * s.w.Role / maxMatches
	return b
}

// specializationMatches counts specializations that appear in the task text,
// plus structured tags naming a specialization or category.
func specializationMatches(p subagent.CapabilityProfile, text string, words map[string]bool, tags []string) int {
	n := 0
	for _, spec := range p.Specializations {
		if matchesTag(spec, text, words) {
			n++
		}
	}
	if len(tags) == 0 {
		return n
	}
	known := make(map[string]bool, len(p.Specializations)+len(p.Categories))
	for _, v := range p.Specializations {
		known[strings.ToLower(v)] = true
	}
	for _, v := range p.Categories {
		known[strings.ToLower(v)] = true
	}
	for _, tag := range tags {
		if known[strings.ToLower(strings.TrimSpace(tag))] {
			n++
		}
	}
	return n
}

// matchesTag reports whether the whole tag occurs in text, or any of its
// words of at least minWordLen characters occurs as a whole word.
func matchesTag(tag, text string, words map[string]bool) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	if strings.Contains(text, tag) {
		return true
	}
	for w := range tokenize(tag) {
		if len(w) >= minWordLen && words[w] {
			return true
		}
	}
	return false
}

func roleMatches(role subagent.Role, words map[string]bool) int {
	n := 0
	for _, kw := range roleKeywords[role] {
		if words[kw] {
			n++
		}
	}
	return n
}

// tokenize lowercases s and splits it into words. Hyphenated words are kept
// whole and also contribute their parts.
func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" {
			continue
		}
		out[f] = true
		if strings.Contains(f, "-") {
			for _, part := range strings.Split(f, "-") {
				if part != "" {
					out[part] = true
				}
			}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
