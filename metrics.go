package tether

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key cell events.
type MetricsProvider interface {
	// OnStateChange is called when the cell's external-change subscription
	// transitions between idle and watching.
	OnStateChange(from, to State)

	// OnUpdate is called after a local update has been applied and fanned
	// out. Duration covers compute, fan-out, and persistence.
	OnUpdate(duration time.Duration)

	// OnPersistFailure is called when the store write after an update
	// fails. The in-memory value has already changed.
	OnPersistFailure(duration time.Duration)

	// OnExternalApplied is called when an external change overwrote the
	// cell. Duration covers decode and fan-out.
	OnExternalApplied(duration time.Duration)

	// OnExternalIgnored is called when an external change was discarded.
	// Reason is one of the Reason* constants.
	OnExternalIgnored(reason string)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)          {}
func (NoOpMetricsProvider) OnUpdate(_ time.Duration)          {}
func (NoOpMetricsProvider) OnPersistFailure(_ time.Duration)  {}
func (NoOpMetricsProvider) OnExternalApplied(_ time.Duration) {}
func (NoOpMetricsProvider) OnExternalIgnored(_ string)        {}
