package tether

import (
	"sync"
	"testing"
)

func TestMemoryStore_GetSet(t *testing.T) {
	store := NewMemoryStore()

	if _, ok, _ := store.Get("k"); ok {
		t.Error("expected key absent")
	}

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := store.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || got != "v" {
		t.Errorf("expected %q, got %q (present=%v)", "v", got, ok)
	}
}

func TestMemoryStore_OwnWritesNotDelivered(t *testing.T) {
	store := NewMemoryStore()

	delivered := 0
	cancel := store.Subscribe(func(Change) { delivered++ })
	defer cancel()

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if delivered != 0 {
		t.Errorf("expected no self-notification, got %d", delivered)
	}
}

func TestMemoryStore_SiblingWritesDelivered(t *testing.T) {
	store := NewMemoryStore()
	sibling := store.Sibling()

	var changes []Change
	cancel := store.Subscribe(func(ch Change) { changes = append(changes, ch) })
	defer cancel()

	if err := sibling.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	ch := changes[0]
	if ch.Key != "k" {
		t.Errorf("expected key %q, got %q", "k", ch.Key)
	}
	if ch.Value == nil || *ch.Value != "v" {
		t.Errorf("expected value %q, got %v", "v", ch.Value)
	}
	// The change is reported against the receiving handle.
	if ch.Source != Store(store) {
		t.Error("expected Source to be the receiving handle")
	}

	// Data is shared both ways.
	got, ok, _ := store.Get("k")
	if !ok || got != "v" {
		t.Errorf("expected shared data %q, got %q", "v", got)
	}
}

func TestMemoryStore_DeleteDeliversNilValue(t *testing.T) {
	store := NewMemoryStore()
	sibling := store.Sibling()

	if err := sibling.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got *Change
	cancel := store.Subscribe(func(ch Change) { got = &ch })
	defer cancel()

	if err := sibling.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if got == nil {
		t.Fatal("expected a change for the deletion")
	}
	if got.Value != nil {
		t.Errorf("expected nil value for deletion, got %q", *got.Value)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("expected key removed")
	}
}

func TestMemoryStore_CancelStopsDelivery(t *testing.T) {
	store := NewMemoryStore()
	sibling := store.Sibling()

	delivered := 0
	cancel := store.Subscribe(func(Change) { delivered++ })

	if err := sibling.Set("k", "1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	cancel()
	cancel() // idempotent
	if err := sibling.Set("k", "2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}
	if store.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", store.Subscribers())
	}
}

func TestMemoryStore_NotifyInjectsEvent(t *testing.T) {
	store := NewMemoryStore()

	var got Change
	cancel := store.Subscribe(func(ch Change) { got = ch })
	defer cancel()

	foreign := NewMemoryStore()
	store.Notify(Change{Source: foreign, Key: "x", Value: strPtr("1")})

	if got.Source != Store(foreign) || got.Key != "x" {
		t.Errorf("expected injected event passed through, got %+v", got)
	}
	// Injection bypasses the data map.
	if _, ok, _ := store.Get("x"); ok {
		t.Error("expected data map untouched")
	}
}

func TestMemoryStore_ConcurrentSiblingWrites(t *testing.T) {
	store := NewMemoryStore()
	sibling := store.Sibling()

	var mu sync.Mutex
	delivered := 0
	cancel := store.Subscribe(func(Change) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sibling.Set("k", "v")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if delivered != 10 {
		t.Errorf("expected 10 deliveries, got %d", delivered)
	}
}
