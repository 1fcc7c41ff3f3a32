package tiercache

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// SyncStorage is a key/value store used inline by the caller.
// Implementations need not be safe for concurrent use; wrap them with
// SerializeStorage before sharing them between goroutines.
type SyncStorage[ID, V any] interface {
	// Get returns (value, true) on hit and (zero, false) on miss.
	Get(id ID) (V, bool)
	// Put stores v for id (best-effort).
	Put(id ID, v V)
}

// ReadOnlyStorage is a source of values that cannot be written to, e.g. an
// origin or a generator. It is what backstops read from.
type ReadOnlyStorage[ID, V any] interface {
	// Get returns (value, true, nil) on hit; (zero, false, nil) on miss.
	// If an IO/remote error happens, return (zero, false, err).
	Get(ctx context.Context, id ID) (V, bool, error)
}

// Storage is a store a tier reads from and writes fetched values back into.
// Must be safe for concurrent use.
//
// Errors are advisory: pipelines log them and keep working, treating a
// failed Get as a miss and a failed Put as a skipped write.
type Storage[ID, V any] interface {
	ReadOnlyStorage[ID, V]
	// Put stores v for id.
	Put(ctx context.Context, id ID, v V) error
}

// Remover is implemented by storages that support invalidation.
// Removing an absent id must not be an error.
type Remover[ID any] interface {
	Remove(ctx context.Context, id ID) error
}

// StorageFuncs builds a Storage out of closures. A nil GetFunc always misses,
// a nil PutFunc drops writes and a nil RemoveFunc is a no-op. Handy for
// adapting existing clients and as a test double.
type StorageFuncs[ID, V any] struct {
	GetFunc    func(ctx context.Context, id ID) (V, bool, error)
	PutFunc    func(ctx context.Context, id ID, v V) error
	RemoveFunc func(ctx context.Context, id ID) error
}

var (
	_ Storage[string, int] = StorageFuncs[string, int]{}
	_ Remover[string]      = StorageFuncs[string, int]{}
)

func (s StorageFuncs[ID, V]) Get(ctx context.Context, id ID) (V, bool, error) {
	if s.GetFunc == nil {
		var zero V
		return zero, false, nil
	}
	return s.GetFunc(ctx, id)
}

func (s StorageFuncs[ID, V]) Put(ctx context.Context, id ID, v V) error {
	if s.PutFunc == nil {
		return nil
	}
	return s.PutFunc(ctx, id, v)
}

func (s StorageFuncs[ID, V]) Remove(ctx context.Context, id ID) error {
	if s.RemoveFunc == nil {
		return nil
	}
	return s.RemoveFunc(ctx, id)
}

type serializedStorage[ID, V any] struct {
	sem   *semaphore.Weighted
	inner SyncStorage[ID, V]
}

// SerializeStorage adapts a SyncStorage into a Storage whose calls run one
// at a time. If the SyncStorage also has a `Remove(id ID)` method, the result
// implements Remover.
func SerializeStorage[ID, V any](s SyncStorage[ID, V]) Storage[ID, V] {
	base := serializedStorage[ID, V]{sem: semaphore.NewWeighted(1), inner: s}
	if _, ok := s.(interface{ Remove(ID) }); ok {
		return serializedRemovableStorage[ID, V]{base}
	}
	return base
}

func (s serializedStorage[ID, V]) Get(ctx context.Context, id ID) (V, bool, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		var zero V
		return zero, false, err
	}
	defer s.sem.Release(1)
	v, ok := s.inner.Get(id)
	return v, ok, nil
}

func (s serializedStorage[ID, V]) Put(ctx context.Context, id ID, v V) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	s.inner.Put(id, v)
	return nil
}

type serializedRemovableStorage[ID, V any] struct {
	serializedStorage[ID, V]
}

func (s serializedRemovableStorage[ID, V]) Remove(ctx context.Context, id ID) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	s.inner.(interface{ Remove(ID) }).Remove(id)
	return nil
}
