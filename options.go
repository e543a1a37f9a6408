package tether

import "github.com/zoobzio/clockz"

// Option configures a Cell at construction.
type Option[T any] func(*Cell[T])

// WithKey sets the store key the value is mirrored under.
// Required when a store is configured; unused otherwise.
func WithKey[T any](key string) Option[T] {
	return func(c *Cell[T]) {
		c.key = key
	}
}

// WithStore sets the durable store the value is mirrored in.
// Requires WithKey; New fails with ErrInvalidConfiguration otherwise.
func WithStore[T any](s Store) Option[T] {
	return func(c *Cell[T]) {
		c.store = s
	}
}

// WithCodec sets the codec for the persisted representation.
// Default: JSONCodec.
func WithCodec[T any](codec Codec) Option[T] {
	return func(c *Cell[T]) {
		c.codec = codec
	}
}

// WithOnInit sets a callback invoked exactly once, synchronously from New,
// with the resolved initial value.
func WithOnInit[T any](fn func(T)) Option[T] {
	return func(c *Cell[T]) {
		c.onInit = fn
	}
}

// WithOnUpdate sets a callback invoked after every successful local
// update, once views have been notified and the value persisted. External
// changes do not trigger it.
func WithOnUpdate[T any](fn func(T)) Option[T] {
	return func(c *Cell[T]) {
		c.onUpdate = fn
	}
}

// WithMetrics sets a metrics provider receiving callbacks on updates,
// persistence failures, external changes, and subscription transitions.
func WithMetrics[T any](provider MetricsProvider) Option[T] {
	return func(c *Cell[T]) {
		c.metrics = provider
	}
}

// WithClock sets a custom clock for metric durations.
// Use clockz.FakeClock for deterministic timing in tests.
// Default: clockz.RealClock.
func WithClock[T any](clock clockz.Clock) Option[T] {
	return func(c *Cell[T]) {
		c.clock = clock
	}
}
