// Package store provides a generic, thread-safe, in-memory store and a
// simulated clock for the story twin.
package store

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store is a generic, thread-safe, in-memory store for objects of type T,
// listed in insertion order.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// New creates an empty Store.
func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[string]T),
		order: make([]string, 0),
	}
}

// NextID returns a fresh random UUID string.
func (s *Store[T]) NextID() string {
	return uuid.NewString()
}

// Set stores an item with the given ID. Overwriting keeps the item's
// position in the insertion order.
func (s *Store[T]) Set(id string, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
}

// Update applies fn to the item with the given ID under the write lock.
// It returns false if the item does not exist.
func (s *Store[T]) Update(id string, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return false
	}
	s.items[id] = fn(item)
	return true
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Delete removes an item by ID. Returns true if the item existed.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all items in insertion order. The result is never nil.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset clears all items.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = make([]string, 0)
}

// Snapshot returns a copy of all items keyed by ID.
func (s *Store[T]) Snapshot() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]T, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	return snapshot
}

// LoadSnapshot replaces all items. IDs are sorted to keep listing
// deterministic, since a map carries no order.
func (s *Store[T]) LoadSnapshot(snapshot map[string]T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T, len(snapshot))
	s.order = make([]string, 0, len(snapshot))
	for k, v := range snapshot {
		s.items[k] = v
		s.order = append(s.order, k)
	}
	sort.Strings(s.order)
}

// MarshalJSON serializes the store as its items map.
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON replaces the store's items from a JSON object.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	var snapshot map[string]T
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	s.LoadSnapshot(snapshot)
	return nil
}
