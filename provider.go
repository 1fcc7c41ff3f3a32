package tiercache

import (
	"context"
)

// Func is the canonical shape every provider is reduced to.
type Func[ID, V any] func(ctx context.Context, id ID) (V, error)

// Provider produces the value for an ID. It is the atomic unit pipelines are
// built from: combinators wrap a Provider and return a new one.
//
// Internally every flavor runs through the same Func; the Flavor tag records
// what the pipeline may do. A provider without the Failable flavor only ever
// returns errors caused by ctx ending, and a provider without the Async flavor
// never blocks on ctx.
//
// The zero Provider is not usable; build one with FromSync, FromThrowingSync,
// FromAsync or FromThrowingAsync.
type Provider[ID, V any] struct {
	fn     Func[ID, V]
	flavor Flavor
}

// FromSync builds a provider that always succeeds and never suspends.
func FromSync[ID, V any](f func(id ID) V) Provider[ID, V] {
	return Provider[ID, V]{
		fn: func(_ context.Context, id ID) (V, error) {
			return f(id), nil
		},
		flavor: FlavorSync,
	}
}

// FromThrowingSync builds a provider that never suspends but may fail.
func FromThrowingSync[ID, V any](f func(id ID) (V, error)) Provider[ID, V] {
	return Provider[ID, V]{
		fn: func(_ context.Context, id ID) (V, error) {
			return f(id)
		},
		flavor: FlavorThrowingSync,
	}
}

// FromAsync builds a provider that may suspend but always succeeds.
func FromAsync[ID, V any](f func(ctx context.Context, id ID) V) Provider[ID, V] {
	return Provider[ID, V]{
		fn: func(ctx context.Context, id ID) (V, error) {
			return f(ctx, id), nil
		},
		flavor: FlavorAsync,
	}
}

// FromThrowingAsync builds a provider that may suspend and may fail.
func FromThrowingAsync[ID, V any](f func(ctx context.Context, id ID) (V, error)) Provider[ID, V] {
	return Provider[ID, V]{fn: f, flavor: FlavorThrowingAsync}
}

// Flavor reports the provider's execution and failure mode.
func (p Provider[ID, V]) Flavor() Flavor { return p.flavor }

// Get returns the value for id.
func (p Provider[ID, V]) Get(ctx context.Context, id ID) (V, error) {
	return p.fn(ctx, id)
}

// Func exposes the canonical function, e.g. to use a provider as a tier
// converter.
func (p Provider[ID, V]) Func() Func[ID, V] { return p.fn }

// Sync returns the provider as a plain function. ok is false unless the
// provider is FlavorSync.
func (p Provider[ID, V]) Sync() (f func(id ID) V, ok bool) {
	if p.flavor != FlavorSync {
		return nil, false
	}
	return func(id ID) V {
		v, _ := p.fn(context.Background(), id)
		return v
	}, true
}

// ThrowingSync returns the provider as a failable function that does not take
// a context. ok is false for async providers.
func (p Provider[ID, V]) ThrowingSync() (f func(id ID) (V, error), ok bool) {
	if p.flavor.IsAsync() {
		return nil, false
	}
	return func(id ID) (V, error) {
		return p.fn(context.Background(), id)
	}, true
}

// Async returns the provider as a total suspending function. ok is false for
// failable providers. When ctx ends before a value is produced the zero V is
// returned.
func (p Provider[ID, V]) Async() (f func(ctx context.Context, id ID) V, ok bool) {
	if p.flavor.IsFailable() {
		return nil, false
	}
	return func(ctx context.Context, id ID) V {
		v, _ := p.fn(ctx, id)
		return v
	}, true
}

// ThrowingAsync returns the canonical function. Every flavor can be viewed
// this way.
func (p Provider[ID, V]) ThrowingAsync() func(ctx context.Context, id ID) (V, error) {
	return p.fn
}

func (p Provider[ID, V]) with(fn Func[ID, V], op Flavor) Provider[ID, V] {
	return Provider[ID, V]{fn: fn, flavor: p.flavor.Promote(op)}
}
