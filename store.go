package tether

// Store is the durable mirror capability: a key/value store that can
// report changes made to it from outside this process.
//
// Implementations must satisfy three delivery rules:
//
//   - Subscribe registration and cancellation are cheap and non-blocking.
//   - Changes are delivered without any internal lock held, so handlers
//     may call back into the store.
//   - Only external-origin changes are delivered; a write made through
//     Set on this handle must not come back through Subscribe.
type Store interface {
	// Get returns the raw value stored under key. ok is false when the
	// key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set writes the raw value under key.
	Set(key, value string) error

	// Subscribe registers a handler for external-origin changes and
	// returns a cancel function. Cancel is idempotent.
	Subscribe(fn func(Change)) (cancel func())
}

// Change is a host-level notification that a store entry changed from
// outside this process. Source identifies the store the change belongs
// to; a handler attached through one store may observe changes for
// unrelated stores sharing the same host event mechanism and must filter
// by Source and Key.
type Change struct {
	// Source is the store whose entry changed.
	Source Store

	// Key is the entry that changed.
	Key string

	// Value is the new raw value, or nil when the entry was deleted.
	Value *string
}
