package health

import (
	"context"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Prober checks whether a worker is alive. An error is treated like a
// failed probe that also forces the worker into error.
type Prober interface {
	Probe(ctx context.Context, reg *subagent.Registration) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, reg *subagent.Registration) (bool, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, reg *subagent.Registration) (bool, error) {
	return f(ctx, reg)
}

// CoinProber models an external liveness check as a weighted coin flip.
// The outcome ignores the worker's state.
type CoinProber struct {
	Rate float64
	Rand subagent.RandSource
}

// NewCoinProber returns a prober that succeeds with probability rate.
func NewCoinProber(rate float64, rnd subagent.RandSource) *CoinProber {
	if rnd == nil {
		rnd = subagent.DefaultRandSource()
	}
	return &CoinProber{Rate: rate, Rand: rnd}
}

// Probe flips the coin.
func (p *CoinProber) Probe(context.Context, *subagent.Registration) (bool, error) {
	return p.Rand.Float64() < p.Rate, nil
}
