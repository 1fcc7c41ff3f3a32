// Package memory holds plain in-process storages: a concurrency-safe Store
// and an unsynchronised Map for single-goroutine use or SerializeStorage.
package memory

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/tiercache"
)

// Store is an unbounded map guarded by a RWMutex. Nothing is ever evicted;
// use it for small keyspaces and tests.
type Store[ID comparable, V any] struct {
	mu sync.RWMutex
	m  map[ID]V
}

var (
	_ tiercache.Storage[string, int] = (*Store[string, int])(nil)
	_ tiercache.Remover[string]      = (*Store[string, int])(nil)
)

func New[ID comparable, V any]() *Store[ID, V] {
	return &Store[ID, V]{m: make(map[ID]V)}
}

func (s *Store[ID, V]) Get(_ context.Context, id ID) (V, bool, error) {
	s.mu.RLock()
	v, ok := s.m[id]
	s.mu.RUnlock()
	return v, ok, nil
}

func (s *Store[ID, V]) Put(_ context.Context, id ID, v V) error {
	s.mu.Lock()
	s.m[id] = v
	s.mu.Unlock()
	return nil
}

func (s *Store[ID, V]) Remove(_ context.Context, id ID) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

func (s *Store[ID, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Map is a SyncStorage over a plain map. Not safe for concurrent use.
type Map[ID comparable, V any] map[ID]V

var _ tiercache.SyncStorage[string, int] = Map[string, int]{}

func (m Map[ID, V]) Get(id ID) (V, bool) {
	v, ok := m[id]
	return v, ok
}

func (m Map[ID, V]) Put(id ID, v V) { m[id] = v }

func (m Map[ID, V]) Remove(id ID) { delete(m, id) }
