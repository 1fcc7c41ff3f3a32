package tiercache

import (
	"context"

	"github.com/unkn0wn-root/tiercache/internal/flight"
)

// Coordinated returns a provider that never runs p twice concurrently for the
// same id: overlapping calls share one execution and all of them observe the
// same value or error. The registry belongs to the returned provider only.
//
// A caller whose ctx ends stops waiting without affecting the others; the
// shared execution is cancelled once no caller is waiting for it.
func Coordinated[ID comparable, V any](p Provider[ID, V]) Provider[ID, V] {
	g := new(flight.Group[ID, V])
	return p.with(func(ctx context.Context, id ID) (V, error) {
		v, _, err := g.Do(ctx, id, func(ctx context.Context) (V, error) {
			return p.fn(ctx, id)
		})
		return v, err
	}, FlavorAsync)
}
