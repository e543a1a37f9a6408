// Package consul provides a tether.Store implementation backed by Consul
// KV, surfacing external changes through blocking queries.
package consul

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/zoobzio/tether"
)

// DefaultWaitTime is the blocking query wait duration.
const DefaultWaitTime = 30 * time.Second

// Store mirrors values in Consul KV and observes external changes with
// blocking list queries over a key prefix. Writes made through Set on this
// handle are suppressed by comparing the observed value against the last
// written payload.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *api.Client
	prefix string
	wait   time.Duration

	mu        sync.Mutex
	subs      []sub
	next      int
	lastWrite map[string]string
	known     map[string]string
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

// WithWaitTime sets the blocking query wait duration.
// Default: DefaultWaitTime.
func WithWaitTime(d time.Duration) Option {
	return func(s *Store) {
		s.wait = d
	}
}

// New creates a Store over the given Consul client and begins observing
// KV changes. Close releases the observation loop.
func New(ctx context.Context, client *api.Client, opts ...Option) (*Store, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		ctx:       ctx,
		cancel:    cancel,
		client:    client,
		wait:      DefaultWaitTime,
		lastWrite: make(map[string]string),
		known:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Establish the initial snapshot and modify index.
	pairs, meta, err := client.KV().List(s.prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to list initial values: %w", err)
	}
	for _, pair := range pairs {
		s.known[pair.Key] = string(pair.Value)
	}

	go s.watch(meta.LastIndex)
	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	pair, _, err := s.client.KV().Get(key, (&api.QueryOptions{}).WithContext(s.ctx))
	if err != nil {
		return "", false, err
	}
	if pair == nil {
		return "", false, nil
	}
	return string(pair.Value), true, nil
}

// Set writes the value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.lastWrite[key] = value
	s.mu.Unlock()
	_, err := s.client.KV().Put(&api.KVPair{Key: key, Value: []byte(value)}, nil)
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

// Close stops observing KV changes. The store remains usable for Get and Set.
func (s *Store) Close() error {
	s.cancel()
	return nil
}

func (s *Store) watch(lastIndex uint64) {
	for {
		opts := &api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  s.wait,
		}
		pairs, meta, err := s.client.KV().List(s.prefix, opts.WithContext(s.ctx))
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			// Back off briefly before retrying the blocking query
			time.Sleep(time.Second)
			continue
		}
		if meta.LastIndex == lastIndex {
			continue
		}
		lastIndex = meta.LastIndex

		current := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			current[pair.Key] = string(pair.Value)
		}
		s.diff(current)
	}
}

// diff emits changes between the previous snapshot and the current one.
func (s *Store) diff(current map[string]string) {
	s.mu.Lock()
	previous := s.known
	s.known = current

	var changes []tether.Change
	for key, value := range current {
		if old, ok := previous[key]; ok && old == value {
			continue
		}
		if last, own := s.lastWrite[key]; own && last == value {
			continue
		}
		v := value
		changes = append(changes, tether.Change{Source: s, Key: key, Value: &v})
	}
	for key := range previous {
		if _, ok := current[key]; !ok {
			delete(s.lastWrite, key)
			changes = append(changes, tether.Change{Source: s, Key: key, Value: nil})
		}
	}
	subs := make([]sub, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range changes {
		for _, su := range subs {
			su.fn(ch)
		}
	}
}

// Ensure Store implements tether.Store.
var _ tether.Store = (*Store)(nil)
