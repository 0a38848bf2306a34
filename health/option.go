package health

import (
	"io"
	"log/slog"
	"time"

	"github.com/armatrix/agent-delegation-go/subagent"
)

// Option configures a Monitor via the functional options pattern.
type Option func(*options)

type options struct {
	prober        Prober
	rnd           subagent.RandSource
	logger        *slog.Logger
	now           func() time.Time
	interval      time.Duration
	busyThreshold float64
	onChange      ChangeFunc
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (o *options) applyDefaults() {
	if o.rnd == nil {
		o.rnd = subagent.DefaultRandSource()
	}
	if o.prober == nil {
		o.prober = NewCoinProber(DefaultProbeSuccessRate, o.rnd)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.interval <= 0 {
		o.interval = DefaultSweepInterval
	}
	if o.busyThreshold <= 0 {
		o.busyThreshold = DefaultBusyThreshold
	}
}

func resolveOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	o.applyDefaults()
	return o
}

// WithProber replaces the default coin-flip prober.
func WithProber(p Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithRandSource sets the source for the default prober and recovery flips.
func WithRandSource(r subagent.RandSource) Option {
	return func(o *options) { o.rnd = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used to decide which workers are due.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets the sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithBusyThreshold sets the load above which a healthy worker is busy.
func WithBusyThreshold(pct float64) Option {
	return func(o *options) { o.busyThreshold = pct }
}

// OnChange registers an observer for status transitions.
func OnChange(fn ChangeFunc) Option {
	return func(o *options) { o.onChange = fn }
}
