package tether

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// waitFor polls a condition until it returns true or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
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

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("close failed: %v", err)
		}
	})
	return store
}

func TestFileStore_GetSet(t *testing.T) {
	store := newTestFileStore(t)

	if _, ok, err := store.Get("k"); ok || err != nil {
		t.Errorf("expected absent key, got present=%v err=%v", ok, err)
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

func TestFileStore_ExternalWriteDelivered(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer store.Close()

	var mu sync.Mutex
	var got *Change
	cancel := store.Subscribe(func(ch Change) {
		mu.Lock()
		defer mu.Unlock()
		got = &ch
	})
	defer cancel()

	// Simulate another process writing the key's file.
	if err := os.WriteFile(filepath.Join(dir, "k"), []byte("external"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})
	if !ok {
		t.Fatal("timeout waiting for external change")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Key != "k" {
		t.Errorf("expected key %q, got %q", "k", got.Key)
	}
	if got.Value == nil || *got.Value != "external" {
		t.Errorf("expected value %q, got %v", "external", got.Value)
	}
	if got.Source != Store(store) {
		t.Error("expected Source to be the store")
	}
}

func TestFileStore_OwnWriteSuppressed(t *testing.T) {
	store := newTestFileStore(t)

	var mu sync.Mutex
	delivered := 0
	cancel := store.Subscribe(func(Change) {
		mu.Lock()
		defer mu.Unlock()
		delivered++
	})
	defer cancel()

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Give fsnotify time to surface the event it should be suppressing.
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("expected own write suppressed, got %d deliveries", delivered)
	}
}

func TestFileStore_RemoveDeliversDeletion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var mu sync.Mutex
	var got *Change
	cancel := store.Subscribe(func(ch Change) {
		mu.Lock()
		defer mu.Unlock()
		if ch.Value == nil {
			got = &ch
		}
	})
	defer cancel()

	if err := os.Remove(filepath.Join(dir, "k")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})
	if !ok {
		t.Fatal("timeout waiting for deletion change")
	}
}

func TestFileStore_CellsConvergeAcrossStores(t *testing.T) {
	dir := t.TempDir()

	producerStore, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer producerStore.Close()
	consumerStore, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer consumerStore.Close()

	producer, err := New(0, WithStore[int](producerStore), WithKey[int]("counter"))
	if err != nil {
		t.Fatalf("New producer failed: %v", err)
	}
	consumer, err := New(0, WithStore[int](consumerStore), WithKey[int]("counter"))
	if err != nil {
		t.Fatalf("New consumer failed: %v", err)
	}

	view := consumer.Attach()
	defer view.Close()

	if err := producer.Set(7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		return view.Value() == 7
	})
	if !ok {
		t.Fatalf("expected convergence to 7, got %d", view.Value())
	}
}
