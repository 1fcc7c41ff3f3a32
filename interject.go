package tiercache

import "context"

// Lookup checks for an existing value before a provider is asked.
// ok=false means "not here", never an error.
type Lookup[ID, V any] struct {
	fn     func(ctx context.Context, id ID) (V, bool, error)
	flavor Flavor
}

func Look[ID, V any](f func(id ID) (V, bool)) Lookup[ID, V] {
	return Lookup[ID, V]{
		fn: func(_ context.Context, id ID) (V, bool, error) {
			v, ok := f(id)
			return v, ok, nil
		},
	}
}

func LookErr[ID, V any](f func(id ID) (V, bool, error)) Lookup[ID, V] {
	return Lookup[ID, V]{
		fn: func(_ context.Context, id ID) (V, bool, error) {
			return f(id)
		},
		flavor: FlavorThrowingSync,
	}
}

func LookAsync[ID, V any](f func(ctx context.Context, id ID) (V, bool)) Lookup[ID, V] {
	return Lookup[ID, V]{
		fn: func(ctx context.Context, id ID) (V, bool, error) {
			v, ok := f(ctx, id)
			return v, ok, nil
		},
		flavor: FlavorAsync,
	}
}

func LookAsyncErr[ID, V any](f func(ctx context.Context, id ID) (V, bool, error)) Lookup[ID, V] {
	return Lookup[ID, V]{fn: f, flavor: FlavorThrowingAsync}
}

// Interject consults l first and only calls p when l reports nothing.
// A failing lookup fails the call; p is not consulted in that case.
func (p Provider[ID, V]) Interject(l Lookup[ID, V]) Provider[ID, V] {
	return p.with(func(ctx context.Context, id ID) (V, error) {
		v, ok, err := l.fn(ctx, id)
		if err != nil {
			var zero V
			return zero, err
		}
		if ok {
			return v, nil
		}
		return p.fn(ctx, id)
	}, l.flavor)
}
