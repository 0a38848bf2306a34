package delegation

import "time"

// Engine defaults.
const (
	// DefaultTimeout bounds the dispatch phase of a task whose request sets none.
	DefaultTimeout = 5 * time.Minute

	// DefaultConfidenceBase and DefaultConfidenceJitter derive a confidence
	// score when the executor reports none: base*successRate/100 + jitter*rand.
	DefaultConfidenceBase   = 70.0
	DefaultConfidenceJitter = 30.0

	// HealthyRatio and DegradedRatio classify the share of available workers.
	HealthyRatio  = 0.8
	DegradedRatio = 0.5
)

// System health labels reported by GetSystemStatus.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)
