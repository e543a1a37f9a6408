package tether

import "sync"

// View is one consumer's attachment to a Cell. It observes either the raw
// value or a projection of it, recomputed from the raw value on every
// fan-out pass. Each view applies its own projection, so views over the
// same cell can derive different shapes from one update.
//
// A view stays registered until Close. Its projection is late-bound:
// Reproject swaps the function without detaching, so the attachment keeps
// its identity and its place in the notification order.
type View[T, V any] struct {
	cell *Cell[T]

	mu      sync.Mutex
	project func(T) V
	raw     T
	value   V
	closed  bool
}

// Attach registers a view observing the raw value.
//
// The returned view's Value reflects the cell's value at attachment time
// and tracks every subsequent update until Close.
func (c *Cell[T]) Attach() *View[T, T] {
	return Observe(c, func(v T) T { return v })
}

// Observe registers a view observing a projection of the cell's value.
// project must be a pure, non-nil function; it runs once immediately to
// produce the initial observed value and again on every change.
//
// Observe is a package-level function because Go methods cannot introduce
// a type parameter for the projected type.
//
// Example:
//
//	port := tether.Observe(cell, func(c Config) int { return c.Port })
//	defer port.Close()
func Observe[T, V any](c *Cell[T], project func(T) V) *View[T, V] {
	v := &View[T, V]{cell: c, project: project}
	c.register(v)
	return v
}

// deliver implements attachment. It records the raw value and recomputes
// the observed value with the view's current projection.
func (v *View[T, V]) deliver(raw T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.raw = raw
	v.value = v.project(raw)
}

// Value returns the observed projected value. Safe to call repeatedly;
// reads do not mutate the view.
func (v *View[T, V]) Value() V {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Reproject replaces the view's projection and recomputes the observed
// value from the last raw value. The view stays registered; subsequent
// fan-outs use the new projection.
func (v *View[T, V]) Reproject(project func(T) V) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.project = project
	v.value = project(v.raw)
}

// Close detaches the view from its cell. Closing the last view of a
// mirrored cell cancels the cell's external-change subscription. Close is
// idempotent and safe to call from inside another view's notification.
func (v *View[T, V]) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.cell.unregister(v)
}

// Closed reports whether the view has been detached.
func (v *View[T, V]) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
