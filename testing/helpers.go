// Package testing provides test utilities and helpers for tether cell testing.
package testing

import (
	"testing"
	"time"

	"github.com/zoobzio/tether"
)

// TestPrefs is a standard value type for testing mirrored cells.
type TestPrefs struct {
	Theme    string `yaml:"theme" json:"theme"`
	Language string `yaml:"language" json:"language"`
	PageSize int    `yaml:"page_size" json:"page_size"`
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the cell reaches the expected state or timeout occurs.
func WaitForState[T any](t *testing.T, c *tether.Cell[T], expected tether.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return c.State() == expected
	})
}

// RequireState fails the test immediately if the cell is not in the expected state.
func RequireState[T any](t *testing.T, c *tether.Cell[T], expected tether.State) {
	t.Helper()
	if got := c.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireValue fails the test if the cell's current value fails the check.
func RequireValue[T any](t *testing.T, c *tether.Cell[T], check func(T) bool) {
	t.Helper()
	v := c.Get()
	if !check(v) {
		t.Fatalf("value check failed: %+v", v)
	}
}

// NewMirroredCell creates a cell mirrored to a fresh in-memory store under
// the given key. Returns the cell and the store handle for injecting
// external changes with Notify or Sibling.
func NewMirroredCell[T any](t *testing.T, key string, defaultValue T) (*tether.Cell[T], *tether.MemoryStore) {
	t.Helper()
	store := tether.NewMemoryStore()
	c, err := tether.New(defaultValue,
		tether.WithStore[T](store),
		tether.WithKey[T](key),
	)
	if err != nil {
		t.Fatalf("failed to create cell: %v", err)
	}
	return c, store
}
