package tiercache

import "context"

// Transform converts a produced value, with the ID it was produced for as
// context. Build one with Map, MapErr, MapAsync or MapAsyncErr.
type Transform[ID, V, W any] struct {
	fn     func(ctx context.Context, v V, id ID) (W, error)
	flavor Flavor
}

func Map[ID, V, W any](f func(v V, id ID) W) Transform[ID, V, W] {
	return Transform[ID, V, W]{
		fn: func(_ context.Context, v V, id ID) (W, error) {
			return f(v, id), nil
		},
	}
}

func MapErr[ID, V, W any](f func(v V, id ID) (W, error)) Transform[ID, V, W] {
	return Transform[ID, V, W]{
		fn: func(_ context.Context, v V, id ID) (W, error) {
			return f(v, id)
		},
		flavor: FlavorThrowingSync,
	}
}

func MapAsync[ID, V, W any](f func(ctx context.Context, v V, id ID) W) Transform[ID, V, W] {
	return Transform[ID, V, W]{
		fn: func(ctx context.Context, v V, id ID) (W, error) {
			return f(ctx, v, id), nil
		},
		flavor: FlavorAsync,
	}
}

func MapAsyncErr[ID, V, W any](f func(ctx context.Context, v V, id ID) (W, error)) Transform[ID, V, W] {
	return Transform[ID, V, W]{fn: f, flavor: FlavorThrowingAsync}
}

// MapValue returns a provider whose values are t applied to the values of p.
// t is only invoked when p succeeds.
func MapValue[ID, V, W any](p Provider[ID, V], t Transform[ID, V, W]) Provider[ID, W] {
	return Provider[ID, W]{
		fn: func(ctx context.Context, id ID) (W, error) {
			v, err := p.fn(ctx, id)
			if err != nil {
				var zero W
				return zero, err
			}
			return t.fn(ctx, v, id)
		},
		flavor: p.flavor.Promote(t.flavor),
	}
}
