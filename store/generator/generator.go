// Package generator adapts a function into read-only storage for a chain's
// backstop: every id is produced on demand and nothing is kept.
package generator

import (
	"context"

	"github.com/unkn0wn-root/tiercache"
)

// Store calls Fn for every Get. Fn reports (zero, false, nil) for ids it
// cannot produce.
type Store[ID, V any] struct {
	Fn func(ctx context.Context, id ID) (V, bool, error)
}

var _ tiercache.ReadOnlyStorage[string, int] = Store[string, int]{}

func (s Store[ID, V]) Get(ctx context.Context, id ID) (V, bool, error) {
	return s.Fn(ctx, id)
}

// Total makes a Store out of a function that produces a value for every id.
func Total[ID, V any](f func(id ID) V) Store[ID, V] {
	return Store[ID, V]{Fn: func(_ context.Context, id ID) (V, bool, error) {
		return f(id), true, nil
	}}
}
