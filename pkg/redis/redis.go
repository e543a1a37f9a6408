// Package redis provides a tether.Store implementation backed by Redis,
// surfacing external changes through keyspace notifications.
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/tether"
)

// Store mirrors values in Redis keys and observes external changes via
// keyspace notifications. Requires Redis to have them enabled:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
//
// Writes made through Set on this handle are suppressed by comparing the
// notified value against the last written payload, so an external write of
// an identical payload is also suppressed.
type Store struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *redis.Client
	pubsub *redis.PubSub

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

// New creates a Store over the given Redis client and begins observing
// keyspace notifications for all keys. Close releases the subscription.
func New(ctx context.Context, client *redis.Client, opts ...Option) (*Store, error) {
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

	pubsub := client.PSubscribe(ctx, "__keyspace@0__:*")
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}
	s.pubsub = pubsub

	go s.watch()
	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool, error) {
	val, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set writes the value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.lastWrite[key] = value
	s.mu.Unlock()
	return s.client.Set(s.ctx, key, value, 0).Err()
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

// Close stops observing keyspace notifications. The store remains usable
// for Get and Set.
func (s *Store) Close() error {
	s.cancel()
	return s.pubsub.Close()
}

func (s *Store) watch() {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			key := strings.TrimPrefix(msg.Channel, "__keyspace@0__:")

			// Only react to operations that change the key's value
			switch msg.Payload {
			case "set", "mset", "setex", "psetex", "setnx":
				val, err := s.client.Get(s.ctx, key).Result()
				if err != nil {
					continue
				}

				s.mu.Lock()
				last, own := s.lastWrite[key]
				s.mu.Unlock()
				if own && last == val {
					continue
				}

				s.emit(tether.Change{Source: s, Key: key, Value: &val})

			case "del", "expired":
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
