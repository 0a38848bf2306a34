package budget

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// Ledger prices token usage and accumulates spend per worker.
// It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	pricing map[anthropic.Model]ModelPricing
	total   decimal.Decimal
	usage   Usage
	workers map[string]decimal.Decimal
}

// NewLedger creates a ledger. A nil pricing table means DefaultPricing.
func NewLedger(pricing map[anthropic.Model]ModelPricing) *Ledger {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Ledger{
		pricing: pricing,
		total:   decimal.Zero,
		workers: make(map[string]decimal.Decimal),
	}
}

// Record prices one call made on behalf of worker and returns its cost.
// Unknown models are counted but cost nothing.
func (l *Ledger) Record(worker string, model anthropic.Model, u Usage) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.usage = l.usage.Add(u)
	p, ok := l.pricing[model]
	if !ok {
		return decimal.Zero
	}
	cost := p.Price(u)
	l.total = l.total.Add(cost)
	l.workers[worker] = l.workerLocked(worker).Add(cost)
	return cost
}

// TotalCost returns the spend across all workers.
func (l *Ledger) TotalCost() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// TotalUsage returns the cumulative token usage.
func (l *Ledger) TotalUsage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

// WorkerCost returns the spend recorded for one worker.
func (l *Ledger) WorkerCost(worker string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.workerLocked(worker)
}

func (l *Ledger) workerLocked(worker string) decimal.Decimal {
	if c, ok := l.workers[worker]; ok {
		return c
	}
	return decimal.Zero
}

// Remaining returns what is left of limit after spent. A zero limit is
// unlimited and returns MaxDecimal.
func Remaining(limit, spent decimal.Decimal) decimal.Decimal {
	if limit.IsZero() {
		return MaxDecimal
	}
	return limit.Sub(spent)
}

// MaxDecimal stands in for an unlimited remaining budget.
var MaxDecimal = decimal.New(1, 18)
