// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("memory storage closed")

// Backend keeps values in a map. Nothing survives a restart.
type Backend struct {
	values map[string]string
	closed bool
	mu     sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key
func (b *Backend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", false, ErrClosed
	}
	v, ok := b.values[key]
	return v, ok, nil
}

// Set stores value under key
func (b *Backend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.values[key] = value
	return nil
}

// Remove deletes key
func (b *Backend) Remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	delete(b.values, key)
	return nil
}

// Keys returns the stored keys, in no particular order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	return keys
}

// Close drops every value
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values = make(map[string]string)
	b.closed = true
	return nil
}
