package tiercache

import "context"

// Effect observes a produced value without changing it.
type Effect[ID, V any] struct {
	fn     func(ctx context.Context, v V, id ID) error
	flavor Flavor
}

func Do[ID, V any](f func(v V, id ID)) Effect[ID, V] {
	return Effect[ID, V]{
		fn: func(_ context.Context, v V, id ID) error {
			f(v, id)
			return nil
		},
	}
}

func DoErr[ID, V any](f func(v V, id ID) error) Effect[ID, V] {
	return Effect[ID, V]{
		fn: func(_ context.Context, v V, id ID) error {
			return f(v, id)
		},
		flavor: FlavorThrowingSync,
	}
}

func DoAsync[ID, V any](f func(ctx context.Context, v V, id ID)) Effect[ID, V] {
	return Effect[ID, V]{
		fn: func(ctx context.Context, v V, id ID) error {
			f(ctx, v, id)
			return nil
		},
		flavor: FlavorAsync,
	}
}

func DoAsyncErr[ID, V any](f func(ctx context.Context, v V, id ID) error) Effect[ID, V] {
	return Effect[ID, V]{fn: f, flavor: FlavorThrowingAsync}
}

// SideEffect runs e after every successful call to p and returns p's value
// untouched. If e fails, the call fails with e's error.
func (p Provider[ID, V]) SideEffect(e Effect[ID, V]) Provider[ID, V] {
	return p.with(func(ctx context.Context, id ID) (V, error) {
		v, err := p.fn(ctx, id)
		if err != nil {
			return v, err
		}
		if err := e.fn(ctx, v, id); err != nil {
			var zero V
			return zero, err
		}
		return v, nil
	}, e.flavor)
}
