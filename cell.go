package tether

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// ErrInvalidConfiguration is returned by New when a store is configured
// without a key to mirror the value under.
var ErrInvalidConfiguration = errors.New("store configured without a key")

// attachment is the registry entry for one attached consumer. View
// implements it; the cell only ever hands an attachment the raw value and
// lets it apply its own projection.
type attachment[T any] interface {
	deliver(raw T)
}

// Cell holds one shared, observable value. It owns the authoritative
// in-memory copy, fans changes out to attached views in registration
// order, and optionally mirrors the value under a single key in a Store.
//
// A mirrored cell subscribes to the store's external-change feed while at
// least one view is attached. Changes arriving from outside the process
// overwrite the cell and notify views without writing back to the store.
type Cell[T any] struct {
	key      string
	store    Store
	codec    Codec
	onInit   func(T)
	onUpdate func(T)
	metrics  MetricsProvider
	clock    clockz.Clock

	state atomic.Int32

	mu      sync.Mutex
	value   T
	views   []attachment[T]
	unwatch func()
}

// New creates a Cell and resolves its initial value.
//
// If a store and key are configured and the store holds a decodable entry
// for that key, the decoded value becomes the initial value. Otherwise the
// initial value is defaultValue and, when mirrored, defaultValue is
// encoded and written to the store before New returns. The OnInit callback
// (if configured) is invoked synchronously with the resolved value.
//
// Configuring a store without a key fails with ErrInvalidConfiguration.
//
// Example:
//
//	cell, err := tether.New(Config{Port: 8080},
//	    tether.WithStore[Config](store),
//	    tether.WithKey[Config]("app-config"),
//	    tether.WithOnUpdate[Config](func(c Config) {
//	        log.Printf("config now %+v", c)
//	    }),
//	)
func New[T any](defaultValue T, opts ...Option[T]) (*Cell[T], error) {
	c := &Cell[T]{
		value: defaultValue,
		codec: JSONCodec{},
		clock: clockz.RealClock,
	}
	c.state.Store(int32(StateIdle))
	for _, opt := range opts {
		opt(c)
	}

	if c.store != nil && c.key == "" {
		return nil, fmt.Errorf("tether: %w", ErrInvalidConfiguration)
	}

	ctx := context.Background()

	if c.mirrored() {
		raw, ok, err := c.store.Get(c.key)
		if err != nil {
			return nil, fmt.Errorf("read %q from store: %w", c.key, err)
		}

		loaded := false
		if ok {
			var v T
			if err := c.codec.Unmarshal([]byte(raw), &v); err != nil {
				capitan.Emit(ctx, CellDecodeFailed,
					KeyKey.Field(c.key),
					KeyError.Field(err.Error()),
				)
			} else {
				c.value = v
				loaded = true
			}
		}

		// Cold or undecodable store: the default becomes authoritative
		// and is persisted so sibling contexts resolve the same value.
		if !loaded {
			data, err := c.codec.Marshal(c.value)
			if err != nil {
				return nil, fmt.Errorf("encode default for %q: %w", c.key, err)
			}
			if err := c.store.Set(c.key, string(data)); err != nil {
				return nil, fmt.Errorf("persist default for %q: %w", c.key, err)
			}
		}
	}

	capitan.Emit(ctx, CellCreated,
		KeyKey.Field(c.key),
		KeyContentType.Field(c.codec.ContentType()),
	)

	if c.onInit != nil {
		c.onInit(c.value)
	}

	return c, nil
}

// Get returns the current raw value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// State returns the external-change subscription state of the cell.
func (c *Cell[T]) State() State {
	return State(c.state.Load())
}

// Views returns the number of currently attached views.
func (c *Cell[T]) Views() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// Set overwrites the value and propagates it: attached views are notified
// in registration order with the raw value, then the value is encoded and
// written to the store if the cell is mirrored, then the OnUpdate callback
// runs.
//
// A persistence failure is returned to the caller; the in-memory value has
// already changed and views have already been notified. Exactly one write
// is attempted, and OnUpdate does not run on a failed write.
func (c *Cell[T]) Set(v T) error {
	return c.apply(func(T) T { return v })
}

// Update computes the new value from the previous one and propagates it
// with the same contract as Set. fn must be pure; it is called with the
// current value while the cell is locked.
func (c *Cell[T]) Update(fn func(old T) T) error {
	return c.apply(fn)
}

func (c *Cell[T]) apply(fn func(T) T) error {
	start := c.clock.Now()
	ctx := context.Background()

	c.mu.Lock()
	v := fn(c.value)
	c.value = v
	views := slices.Clone(c.views)
	c.mu.Unlock()

	// Fan out over the snapshot outside the lock: a view callback may
	// attach or detach without corrupting this pass.
	for _, a := range views {
		a.deliver(v)
	}

	if c.mirrored() {
		data, err := c.codec.Marshal(v)
		if err == nil {
			err = c.store.Set(c.key, string(data))
		}
		if err != nil {
			capitan.Emit(ctx, CellPersistFailed,
				KeyKey.Field(c.key),
				KeyError.Field(err.Error()),
			)
			if c.metrics != nil {
				c.metrics.OnPersistFailure(c.clock.Since(start))
			}
			return fmt.Errorf("persist %q: %w", c.key, err)
		}
	}

	capitan.Emit(ctx, CellUpdated, KeyKey.Field(c.key))
	if c.metrics != nil {
		c.metrics.OnUpdate(c.clock.Since(start))
	}

	if c.onUpdate != nil {
		c.onUpdate(v)
	}
	return nil
}

// handleExternal bridges a store change back into the cell. Changes for an
// unrelated store or key, deleted entries, and undecodable payloads are
// ignored. An applied change notifies views but never re-persists: the
// value already lives in the store, and writing it back would race with
// further external writes.
func (c *Cell[T]) handleExternal(ch Change) {
	start := c.clock.Now()
	ctx := context.Background()

	var reason string
	switch {
	case ch.Source != c.store:
		reason = ReasonStoreMismatch
	case ch.Key != c.key:
		reason = ReasonKeyMismatch
	case ch.Value == nil:
		reason = ReasonDeleted
	}

	if reason == "" {
		var v T
		if err := c.codec.Unmarshal([]byte(*ch.Value), &v); err != nil {
			reason = ReasonDecodeFailed
			capitan.Emit(ctx, CellDecodeFailed,
				KeyKey.Field(c.key),
				KeyError.Field(err.Error()),
			)
		} else {
			c.mu.Lock()
			c.value = v
			views := slices.Clone(c.views)
			c.mu.Unlock()

			for _, a := range views {
				a.deliver(v)
			}

			capitan.Emit(ctx, CellExternalApplied, KeyKey.Field(c.key))
			if c.metrics != nil {
				c.metrics.OnExternalApplied(c.clock.Since(start))
			}
			return
		}
	}

	capitan.Emit(ctx, CellExternalIgnored,
		KeyKey.Field(ch.Key),
		KeyReason.Field(reason),
	)
	if c.metrics != nil {
		c.metrics.OnExternalIgnored(reason)
	}
}

// register appends an attachment and seeds it with the current value under
// the cell lock, so the initial observed value and the registration are
// atomic with respect to in-flight updates. The first attachment on a
// mirrored cell activates the external-change subscription.
func (c *Cell[T]) register(a attachment[T]) {
	c.mu.Lock()
	a.deliver(c.value)
	c.views = append(c.views, a)
	n := len(c.views)
	watch := n == 1 && c.mirrored() && c.unwatch == nil
	if watch {
		c.unwatch = c.store.Subscribe(c.handleExternal)
	}
	c.mu.Unlock()

	if watch {
		c.transition(StateIdle, StateWatching)
	}
	capitan.Emit(context.Background(), ViewAttached,
		KeyKey.Field(c.key),
		KeyViews.Field(n),
	)
}

// unregister removes an attachment. Removing the last one on a mirrored
// cell cancels the external-change subscription; the cycle may repeat any
// number of times. Unknown attachments are a no-op, which makes detachment
// idempotent.
func (c *Cell[T]) unregister(a attachment[T]) {
	c.mu.Lock()
	idx := -1
	for i, v := range c.views {
		if v == a {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.views = slices.Delete(c.views, idx, idx+1)
	n := len(c.views)
	var cancel func()
	if n == 0 && c.unwatch != nil {
		cancel = c.unwatch
		c.unwatch = nil
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.transition(StateWatching, StateIdle)
	}
	capitan.Emit(context.Background(), ViewDetached,
		KeyKey.Field(c.key),
		KeyViews.Field(n),
	)
}

func (c *Cell[T]) transition(from, to State) {
	c.state.Store(int32(to))

	sig := CellWatchStarted
	if to == StateIdle {
		sig = CellWatchStopped
	}
	capitan.Emit(context.Background(), sig,
		KeyKey.Field(c.key),
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
	if c.metrics != nil {
		c.metrics.OnStateChange(from, to)
	}
}

func (c *Cell[T]) mirrored() bool {
	return c.store != nil && c.key != ""
}
