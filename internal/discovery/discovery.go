// Package discovery narrows and ranks registration snapshots.
package discovery

import (
	"cmp"
	"slices"
	"strings"

	"github.com/armatrix/agent-delegation-go/internal/scoring"
	"github.com/armatrix/agent-delegation-go/subagent"
)

// ComfortableLoad is the load below which an active worker is preferred.
const ComfortableLoad = 70.0

// Find returns the registrations satisfying every predicate of f, in input
// order. A nil filter returns every registration.
func Find(regs []*subagent.Registration, f *subagent.Filter) []*subagent.Registration {
	out := make([]*subagent.Registration, 0, len(regs))
	for _, r := range regs {
		if f == nil || Match(r, *f) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether r satisfies every predicate of f.
func Match(r *subagent.Registration, f subagent.Filter) bool {
	if f.Role != "" && r.Definition.Role != f.Role {
		return false
	}
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
		return false
	}
	if len(f.Capabilities) > 0 && !hasCapability(r.Profile, f.Capabilities) {
		return false
	}
	if f.MinSuccessRate != nil && r.SuccessRate < *f.MinSuccessRate {
		return false
	}
	if f.MaxLoad != nil && r.CurrentLoad > *f.MaxLoad {
		return false
	}
	if len(f.RequiredTools) > 0 && len(subagent.MissingTools(r.Definition.Tools, f.RequiredTools)) > 0 {
		return false
	}
	return true
}

func hasStatus(set []subagent.Status, s subagent.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// hasCapability reports whether any wanted tag names a specialization or
// category of the profile.
func hasCapability(p subagent.CapabilityProfile, wanted []string) bool {
	for _, w := range wanted {
		for _, have := range p.Specializations {
			if strings.EqualFold(have, w) {
				return true
			}
		}
		for _, have := range p.Categories {
			if strings.EqualFold(have, w) {
				return true
			}
		}
	}
	return false
}

// tiers are tried in order until one yields a candidate. The last tier
// admits workers in error so that a critical task still finds one, but
// never workers an operator parked in maintenance or inactive.
var tiers = []func(*subagent.Registration) bool{
	func(r *subagent.Registration) bool {
		return r.Status == subagent.StatusActive && r.CurrentLoad < ComfortableLoad
	},
	func(r *subagent.Registration) bool {
		return (r.Status == subagent.StatusActive || r.Status == subagent.StatusBusy) && r.CurrentLoad <= 100
	},
	func(r *subagent.Registration) bool { return !r.Status.OperatorOnly() },
}

// Candidates returns the first non-empty selection tier. Workers missing a
// required tool never qualify.
func Candidates(regs []*subagent.Registration, requiredTools []string) []*subagent.Registration {
	for _, tier := range tiers {
		var out []*subagent.Registration
		for _, r := range regs {
			if !tier(r) {
				continue
			}
			if len(subagent.MissingTools(r.Definition.Tools, requiredTools)) > 0 {
				continue
			}
			out = append(out, r)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Best returns the highest scoring candidate for t, or nil when no worker
// qualifies. Ties keep candidate order.
func Best(regs []*subagent.Registration, t scoring.Task, s *scoring.Scorer) *subagent.Registration {
	var (
		best      *subagent.Registration
		bestScore float64
	)
	for _, r := range Candidates(regs, t.RequiredTools) {
		score := s.Score(r, t)
		if best == nil || score > bestScore {
			best, bestScore = r, score
		}
	}
	return best
}

// Ranked is one scored candidate.
type Ranked struct {
	Registration *subagent.Registration
	Score        scoring.Breakdown
}

// Rank scores every candidate for t, best first. Ties keep candidate order.
func Rank(regs []*subagent.Registration, t scoring.Task, s *scoring.Scorer) []Ranked {
	cands := Candidates(regs, t.RequiredTools)
	out := make([]Ranked, 0, len(cands))
	for _, r := range cands {
		out = append(out, Ranked{Registration: r, Score: s.Breakdown(r, t)})
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Score.Total(), a.Score.Total())
	})
	return out
}
