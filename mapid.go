package tiercache

import "context"

// KeyMap translates the IDs a pipeline is asked for into the IDs the wrapped
// provider understands. Build one with Key, KeyErr, KeyAsync or KeyAsyncErr.
type KeyMap[OID, ID any] struct {
	fn     func(ctx context.Context, id OID) (ID, error)
	flavor Flavor
}

// Key is a total synchronous translation. It does not change the flavor.
func Key[OID, ID any](f func(id OID) ID) KeyMap[OID, ID] {
	return KeyMap[OID, ID]{
		fn: func(_ context.Context, id OID) (ID, error) {
			return f(id), nil
		},
	}
}

// KeyErr is a translation that may fail.
func KeyErr[OID, ID any](f func(id OID) (ID, error)) KeyMap[OID, ID] {
	return KeyMap[OID, ID]{
		fn: func(_ context.Context, id OID) (ID, error) {
			return f(id)
		},
		flavor: FlavorThrowingSync,
	}
}

// KeyAsync is a translation that may suspend.
func KeyAsync[OID, ID any](f func(ctx context.Context, id OID) ID) KeyMap[OID, ID] {
	return KeyMap[OID, ID]{
		fn: func(ctx context.Context, id OID) (ID, error) {
			return f(ctx, id), nil
		},
		flavor: FlavorAsync,
	}
}

// KeyAsyncErr is a translation that may suspend and fail.
func KeyAsyncErr[OID, ID any](f func(ctx context.Context, id OID) (ID, error)) KeyMap[OID, ID] {
	return KeyMap[OID, ID]{fn: f, flavor: FlavorThrowingAsync}
}

// MapID returns a provider for OID values that asks p for k(id).
func MapID[OID, ID, V any](p Provider[ID, V], k KeyMap[OID, ID]) Provider[OID, V] {
	return Provider[OID, V]{
		fn: func(ctx context.Context, oid OID) (V, error) {
			id, err := k.fn(ctx, oid)
			if err != nil {
				var zero V
				return zero, err
			}
			return p.fn(ctx, id)
		},
		flavor: p.flavor.Promote(k.flavor),
	}
}
