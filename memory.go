package tether

import (
	"slices"
	"sync"
)

// area is the shared data backing a family of sibling MemoryStore handles.
type area struct {
	mu      sync.Mutex
	data    map[string]string
	handles []*MemoryStore
}

// memSub is one registered change handler on a MemoryStore handle.
type memSub struct {
	id int
	fn func(Change)
}

// MemoryStore is an in-memory Store. It exists for testing and for
// modeling multiple execution contexts over one storage area: Sibling
// returns a second handle over the same data, and a write through one
// handle is delivered to subscribers of every sibling handle as an
// external change, but never back to the writing handle itself.
//
// Each delivered Change carries the receiving handle as its Source, since
// from that context's point of view the change happened to its own store.
type MemoryStore struct {
	area *area

	mu   sync.Mutex
	subs []memSub
	next int
}

// NewMemoryStore creates a MemoryStore with its own empty storage area.
func NewMemoryStore() *MemoryStore {
	a := &area{data: make(map[string]string)}
	s := &MemoryStore{area: a}
	a.handles = append(a.handles, s)
	return s
}

// Sibling returns a new handle over the same storage area, representing
// another execution context. Writes through either handle are visible to
// Get on both and delivered to the other's subscribers.
func (s *MemoryStore) Sibling() *MemoryStore {
	sib := &MemoryStore{area: s.area}
	s.area.mu.Lock()
	s.area.handles = append(s.area.handles, sib)
	s.area.mu.Unlock()
	return sib
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.area.mu.Lock()
	defer s.area.mu.Unlock()
	v, ok := s.area.data[key]
	return v, ok, nil
}

// Set writes the value under key and notifies subscribers of every sibling
// handle. The writing handle's own subscribers are not notified.
func (s *MemoryStore) Set(key, value string) error {
	s.broadcast(key, &value)
	return nil
}

// Delete removes the entry under key and notifies sibling subscribers with
// a nil value.
func (s *MemoryStore) Delete(key string) error {
	s.broadcast(key, nil)
	return nil
}

func (s *MemoryStore) broadcast(key string, value *string) {
	a := s.area
	a.mu.Lock()
	if value == nil {
		delete(a.data, key)
	} else {
		a.data[key] = *value
	}
	handles := slices.Clone(a.handles)
	a.mu.Unlock()

	// Deliver with no locks held so handlers may call back into the store.
	for _, h := range handles {
		if h == s {
			continue
		}
		h.Notify(Change{Source: h, Key: key, Value: value})
	}
}

// Subscribe registers a handler for external-origin changes.
func (s *MemoryStore) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs = append(s.subs, memSub{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = slices.Delete(s.subs, i, i+1)
				return
			}
		}
	}
}

// Notify injects a raw host-level change event to this handle's
// subscribers, bypassing the data map. Useful for simulating notifications
// from unrelated stores, deletions, or undecodable payloads in tests.
func (s *MemoryStore) Notify(ch Change) {
	s.mu.Lock()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ch)
	}
}

// Subscribers returns the number of registered handlers on this handle.
func (s *MemoryStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
