package subagent

import (
	"math/rand/v2"
	"sync"
)

// RandSource supplies uniformly distributed floats in [0,1). It drives the
// health probes and derived confidence scores; tests inject a fixed sequence.
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRandSource returns a source backed by the runtime's global generator.
func DefaultRandSource() RandSource { return globalRand{} }

// lockedRand serialises access to a seeded generator.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewSeededRandSource returns a reproducible source safe for concurrent use.
func NewSeededRandSource(seed uint64) RandSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// FixedRandSource replays values in order and then repeats the last one.
// It is safe for concurrent use.
type FixedRandSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewFixedRandSource creates a FixedRandSource. With no values it always
// returns 0.
func NewFixedRandSource(values ...float64) *FixedRandSource {
	return &FixedRandSource{values: values}
}

func (f *FixedRandSource) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	if f.next >= len(f.values) {
		return f.values[len(f.values)-1]
	}
	v := f.values[f.next]
	f.next++
	return v
}
