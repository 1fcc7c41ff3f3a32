package tiercache

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Serialized returns a provider that runs at most one call of p at a time.
// Use it before sharing a provider whose state is not safe for concurrent use.
// Waiting for a turn honours ctx, so the result is async.
func (p Provider[ID, V]) Serialized() Provider[ID, V] {
	sem := semaphore.NewWeighted(1)
	return p.with(func(ctx context.Context, id ID) (V, error) {
		if err := sem.Acquire(ctx, 1); err != nil {
			var zero V
			return zero, err
		}
		defer sem.Release(1)
		return p.fn(ctx, id)
	}, FlavorAsync)
}
