package tether

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore is a Store keeping one file per key under a directory, with
// external changes surfaced through fsnotify. A file written by another
// process appears to subscribers as an external change; writes made
// through Set on this handle are suppressed by comparing against the last
// written payload, so an external write of an identical payload is also
// suppressed.
//
// Keys are used as file names and must not contain path separators.
type FileStore struct {
	dir     string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu        sync.Mutex
	subs      []memSub
	next      int
	lastWrite map[string]string
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// if needed, and begins watching it for external changes.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	s := &FileStore{
		dir:       dir,
		watcher:   watcher,
		done:      make(chan struct{}),
		lastWrite: make(map[string]string),
	}
	go s.watch()
	return s, nil
}

// Get returns the contents of the file for key.
func (s *FileStore) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes value to the file for key.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	s.lastWrite[key] = value
	s.mu.Unlock()
	return os.WriteFile(filepath.Join(s.dir, key), []byte(value), 0o644)
}

// Subscribe registers a handler for external-origin changes.
func (s *FileStore) Subscribe(fn func(Change)) (cancel func()) {
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

// Close stops watching the directory. The store remains usable for Get and
// Set, but no further external changes are delivered.
func (s *FileStore) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			key := filepath.Base(event.Name)

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				data, err := os.ReadFile(event.Name)
				if err != nil {
					continue
				}
				content := string(data)

				s.mu.Lock()
				last, own := s.lastWrite[key]
				s.mu.Unlock()
				if own && last == content {
					continue
				}

				s.emit(Change{Source: s, Key: key, Value: &content})

			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				s.mu.Lock()
				delete(s.lastWrite, key)
				s.mu.Unlock()
				s.emit(Change{Source: s, Key: key, Value: nil})
			}

		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// Continue watching despite errors
		}
	}
}

func (s *FileStore) emit(ch Change) {
	s.mu.Lock()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ch)
	}
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
