// Package budget prices LLM token usage and keeps per-worker spend.
package budget

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// Usage holds token counts for a single API call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
	}
}

// Rates are token prices in USD per million tokens.
type Rates struct {
	Input      decimal.Decimal
	Output     decimal.Decimal
	CacheWrite decimal.Decimal
	CacheRead  decimal.Decimal
}

// ModelPricing prices one model. Once a call's total input, cache tokens
// included, exceeds LongContextThreshold every token of that call is billed
// at the LongContext rates. A zero threshold means no long-context tier.
type ModelPricing struct {
	Standard             Rates
	LongContext          Rates
	LongContextThreshold int
}

var million = decimal.NewFromInt(1_000_000)

func perMTok(tokens int, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Div(million)
}

// Price returns the cost of one call.
func (p ModelPricing) Price(u Usage) decimal.Decimal {
	r := p.Standard
	total := u.InputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens
	if p.LongContextThreshold > 0 && total > p.LongContextThreshold {
		r = p.LongContext
	}
	return perMTok(u.InputTokens, r.Input).
		Add(perMTok(u.CacheReadInputTokens, r.CacheRead)).
		Add(perMTok(u.CacheCreationInputTokens, r.CacheWrite)).
		Add(perMTok(u.OutputTokens, r.Output))
}

func usd(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// DefaultPricing holds list prices for the models workers usually name.
var DefaultPricing = map[anthropic.Model]ModelPricing{
	anthropic.ModelClaudeOpus4_6: {
		Standard:             Rates{Input: usd("5"), Output: usd("25"), CacheWrite: usd("6.25"), CacheRead: usd("0.5")},
		LongContext:          Rates{Input: usd("10"), Output: usd("37.5"), CacheWrite: usd("12.5"), CacheRead: usd("1")},
		LongContextThreshold: 200_000,
	},
	anthropic.ModelClaudeSonnet4_5: {
		Standard:             Rates{Input: usd("3"), Output: usd("15"), CacheWrite: usd("3.75"), CacheRead: usd("0.3")},
		LongContext:          Rates{Input: usd("6"), Output: usd("22.5"), CacheWrite: usd("7.5"), CacheRead: usd("0.6")},
		LongContextThreshold: 200_000,
	},
	anthropic.ModelClaudeHaiku4_5: {
		Standard: Rates{Input: usd("1"), Output: usd("5"), CacheWrite: usd("1.25"), CacheRead: usd("0.1")},
	},
}
