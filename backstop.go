package tiercache

import (
	"context"
	"errors"
	"fmt"
)

type backstop[ID comparable, V any, SID comparable, S any] struct {
	name        string
	log         Logger
	storage     ReadOnlyStorage[SID, S]
	idConv      func(ID) SID
	fromStorage Func[S, V]
}

// NewBackstop builds the terminal tier of a chain. It reads from a read-only
// source, never writes and has nothing to invalidate. Unlike a regular tier,
// a source error fails the Fetch.
func NewBackstop[ID comparable, V any, SID comparable, S any](opts BackstopOptions[ID, V, SID, S]) (Cache[ID, V], error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("tiercache: storage is required")
	}
	if opts.IDConverter == nil || opts.FromStorage == nil {
		return nil, fmt.Errorf("tiercache: converters are required")
	}
	return &backstop[ID, V, SID, S]{
		name:        opts.Name,
		log:         orNop(opts.Logger),
		storage:     opts.Storage,
		idConv:      opts.IDConverter,
		fromStorage: opts.FromStorage,
	}, nil
}

func (b *backstop[ID, V, SID, S]) Fetch(ctx context.Context, id ID) (V, bool, error) {
	var zero V
	sid := b.idConv(id)
	s, ok, err := b.storage.Get(ctx, sid)
	if err != nil {
		return zero, false, fmt.Errorf("tiercache: backstop %q: %w", b.name, err)
	}
	if !ok {
		return zero, false, nil
	}
	v, err := b.fromStorage(ctx, s)
	if errors.Is(err, ErrAbsent) {
		b.log.Debug("source value rejected by converter; treating as miss", Fields{"tier": b.name, "key": sid})
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("tiercache: backstop %q: convert source value: %w", b.name, err)
	}
	return v, true, nil
}

func (*backstop[ID, V, SID, S]) Invalidate(context.Context, ID) error { return nil }

// FromProvider turns a provider into a backstop whose every id is found.
// A failing provider fails the Fetch.
func FromProvider[ID comparable, V any](p Provider[ID, V]) Cache[ID, V] {
	return providerCache[ID, V]{p: p}
}

type providerCache[ID comparable, V any] struct {
	p Provider[ID, V]
}

func (c providerCache[ID, V]) Fetch(ctx context.Context, id ID) (V, bool, error) {
	v, err := c.p.Get(ctx, id)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return v, true, nil
}

func (providerCache[ID, V]) Invalidate(context.Context, ID) error { return nil }

// Empty is a chain end that never finds anything.
func Empty[ID comparable, V any]() Cache[ID, V] { return empty[ID, V]{} }

type empty[ID comparable, V any] struct{}

func (empty[ID, V]) Fetch(context.Context, ID) (V, bool, error) {
	var zero V
	return zero, false, nil
}

func (empty[ID, V]) Invalidate(context.Context, ID) error { return nil }

// AsProvider exposes a chain as a failable async provider. A miss is
// reported as ErrAbsent.
func AsProvider[ID comparable, V any](c Cache[ID, V]) Provider[ID, V] {
	return FromThrowingAsync(func(ctx context.Context, id ID) (V, error) {
		v, ok, err := c.Fetch(ctx, id)
		if err == nil && !ok {
			err = ErrAbsent
		}
		return v, err
	})
}
