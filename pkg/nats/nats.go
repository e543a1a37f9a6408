// Package nats provides a tether.Store implementation backed by a NATS
// JetStream key-value bucket, using the native Watch API.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/zoobzio/tether"
)

// Store mirrors values in a JetStream KV bucket and observes external
// changes through WatchAll. Writes made through Set on this handle are
// suppressed by comparing the watched value against the last written
// payload.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc
	kv     jetstream.KeyValue

	mu        sync.Mutex
	subs      []sub
	next      int
	lastWrite map[string]string
}

type sub struct {
	id int
	fn func(tether.Change)
}

// New creates a Store over the given KV bucket and begins watching for
// changes. Close releases the watch.
func New(ctx context.Context, kv jetstream.KeyValue) (*Store, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		ctx:       ctx,
		cancel:    cancel,
		kv:        kv,
		lastWrite: make(map[string]string),
	}

	// UpdatesOnly skips the replay of current values so only changes made
	// after construction are delivered.
	watcher, err := kv.WatchAll(ctx, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch bucket: %w", err)
	}
	go s.watch(watcher)

	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	entry, err := s.kv.Get(s.ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(entry.Value()), true, nil
}

// Set writes the value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.lastWrite[key] = value
	s.mu.Unlock()
	_, err := s.kv.Put(s.ctx, key, []byte(value))
	return err
}

// Subscribe registers a handler for external-origin changes.
func (s *Store) Subscribe(fn func(tether.Change)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs = append(s.subs, sub{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, su := range s.subs {
			if su.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Close stops watching. The store remains usable for Get and Set.
func (s *Store) Close() error {
	s.cancel()
	return nil
}

func (s *Store) watch(watcher jetstream.KeyWatcher) {
	defer watcher.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			// nil entry signals end of initial values
			if entry == nil {
				continue
			}
			key := entry.Key()

			switch entry.Operation() {
			case jetstream.KeyValuePut:
				value := string(entry.Value())

				s.mu.Lock()
				last, own := s.lastWrite[key]
				s.mu.Unlock()
				if own && last == value {
					continue
				}

				s.emit(tether.Change{Source: s, Key: key, Value: &value})

			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				s.mu.Lock()
				delete(s.lastWrite, key)
				s.mu.Unlock()
				s.emit(tether.Change{Source: s, Key: key, Value: nil})
			}
		}
	}
}

func (s *Store) emit(ch tether.Change) {
	s.mu.Lock()
	subs := make([]sub, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, su := range subs {
		su.fn(ch)
	}
}

// Ensure Store implements tether.Store.
var _ tether.Store = (*Store)(nil)
