package tiercache

import "context"

// Recovery produces a replacement value when a provider fails.
type Recovery[ID, V any] struct {
	fn     func(ctx context.Context, err error, id ID) (V, error)
	flavor Flavor
}

func Recover[ID, V any](f func(err error, id ID) V) Recovery[ID, V] {
	return Recovery[ID, V]{
		fn: func(_ context.Context, err error, id ID) (V, error) {
			return f(err, id), nil
		},
	}
}

// RecoverErr may return a value, rethrow err or fail with a new error.
func RecoverErr[ID, V any](f func(err error, id ID) (V, error)) Recovery[ID, V] {
	return Recovery[ID, V]{
		fn: func(_ context.Context, err error, id ID) (V, error) {
			return f(err, id)
		},
		flavor: FlavorThrowingSync,
	}
}

func RecoverAsync[ID, V any](f func(ctx context.Context, err error, id ID) V) Recovery[ID, V] {
	return Recovery[ID, V]{
		fn: func(ctx context.Context, err error, id ID) (V, error) {
			return f(ctx, err, id), nil
		},
		flavor: FlavorAsync,
	}
}

func RecoverAsyncErr[ID, V any](f func(ctx context.Context, err error, id ID) (V, error)) Recovery[ID, V] {
	return Recovery[ID, V]{fn: f, flavor: FlavorThrowingAsync}
}

// Catch calls r whenever p fails and returns r's outcome instead.
//
// The result drops the Failable flavor of p and takes r's: catching with a
// total recovery yields a total provider. Catch on a provider that cannot
// fail returns p unchanged. When an async p fails because ctx ended, the
// failure is passed through without calling r.
func (p Provider[ID, V]) Catch(r Recovery[ID, V]) Provider[ID, V] {
	if !p.flavor.IsFailable() {
		return p
	}
	return Provider[ID, V]{
		fn: func(ctx context.Context, id ID) (V, error) {
			v, err := p.fn(ctx, id)
			if err == nil {
				return v, nil
			}
			if p.flavor.IsAsync() && ctx.Err() != nil && isCancel(err) {
				return v, err
			}
			return r.fn(ctx, err, id)
		},
		flavor: (p.flavor &^ Failable).Promote(r.flavor),
	}
}
