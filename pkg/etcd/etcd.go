// Package etcd provides a tether.Store implementation backed by etcd,
// surfacing external changes through the native Watch API.
package etcd

import (
	"context"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
	"github.com/zoobzio/tether"
)

// Store mirrors values in etcd keys and observes external changes with the
// Watch API over a key prefix. Writes made through Set on this handle are
// suppressed by comparing the watched value against the last written
// payload.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *clientv3.Client
	prefix string

	mu        sync.Mutex
	subs      []sub
	next      int
	lastWrite map[string]string
}

type sub struct {
	id int
	fn func(tether.Change)
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix restricts change observation to keys under the given prefix.
// Get and Set still address keys absolutely.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store over the given etcd client and begins watching for
// changes. Close releases the watch.
func New(ctx context.Context, client *clientv3.Client, opts ...Option) (*Store, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		ctx:       ctx,
		cancel:    cancel,
		client:    client,
		lastWrite: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Anchor the watch past the current revision so history is not replayed.
	resp, err := client.Get(ctx, s.prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to resolve current revision: %w", err)
	}

	watchChan := client.Watch(ctx, s.prefix,
		clientv3.WithPrefix(),
		clientv3.WithRev(resp.Header.Revision+1),
	)
	go s.watch(watchChan)

	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	resp, err := s.client.Get(s.ctx, key)
	if err != nil {
		return "", false, err
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Set writes the value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.lastWrite[key] = value
	s.mu.Unlock()
	_, err := s.client.Put(s.ctx, key, value)
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

func (s *Store) watch(watchChan clientv3.WatchChan) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case resp, ok := <-watchChan:
			if !ok {
				return
			}
			if resp.Err() != nil {
				continue
			}
			for _, event := range resp.Events {
				key := string(event.Kv.Key)
				switch event.Type {
				case clientv3.EventTypePut:
					value := string(event.Kv.Value)

					s.mu.Lock()
					last, own := s.lastWrite[key]
					s.mu.Unlock()
					if own && last == value {
						continue
					}

					s.emit(tether.Change{Source: s, Key: key, Value: &value})

				case clientv3.EventTypeDelete:
					s.mu.Lock()
					delete(s.lastWrite, key)
					s.mu.Unlock()
					s.emit(tether.Change{Source: s, Key: key, Value: nil})
				}
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
