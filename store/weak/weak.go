// Package weak is an in-process object table that does not keep its values
// alive. A value stays cached while something else references it; once it
// is collected the id reads as a miss.
package weak

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/unkn0wn-root/tiercache"
)

type Store[ID comparable, T any] struct {
	mu sync.Mutex
	m  map[ID]weak.Pointer[T]
}

var (
	_ tiercache.Storage[string, *int] = (*Store[string, int])(nil)
	_ tiercache.Remover[string]       = (*Store[string, int])(nil)
)

func New[ID comparable, T any]() *Store[ID, T] {
	return &Store[ID, T]{m: make(map[ID]weak.Pointer[T])}
}

func (s *Store[ID, T]) Get(_ context.Context, id ID) (*T, bool, error) {
	s.mu.Lock()
	wp, ok := s.m[id]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	v := wp.Value()
	return v, v != nil, nil
}

// Put references v weakly. A nil v is ignored.
func (s *Store[ID, T]) Put(_ context.Context, id ID, v *T) error {
	if v == nil {
		return nil
	}
	wp := weak.Make(v)
	s.mu.Lock()
	s.m[id] = wp
	s.mu.Unlock()
	runtime.AddCleanup(v, s.drop, entry[ID, T]{id: id, wp: wp})
	return nil
}

func (s *Store[ID, T]) Remove(_ context.Context, id ID) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

// Len counts table entries, including ones whose value was collected but not
// yet dropped.
func (s *Store[ID, T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

type entry[ID comparable, T any] struct {
	id ID
	wp weak.Pointer[T]
}

// drop removes e unless id was re-Put with another value meanwhile.
func (s *Store[ID, T]) drop(e entry[ID, T]) {
	s.mu.Lock()
	if s.m[e.id] == e.wp {
		delete(s.m, e.id)
	}
	s.mu.Unlock()
}
