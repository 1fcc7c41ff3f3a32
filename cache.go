package tiercache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/tiercache/genstore"
	"github.com/unkn0wn-root/tiercache/internal/flight"
)

type lookup[V any] struct {
	v     V
	found bool
}

type tier[ID comparable, V, NV any, SID comparable, S any] struct {
	name  string
	log   Logger
	hooks Hooks

	storage     Storage[SID, S]
	idConv      func(ID) SID
	fromStorage Func[S, V]
	toStorage   Func[V, S]

	next     Cache[ID, NV]
	nextConv Func[NV, V]

	gens     genstore.GenStore[SID]
	coalesce bool
	flight   flight.Group[ID, lookup[V]]
}

// NewTier builds a chain link: a read-through, write-back tier in front of
// opts.Next.
func NewTier[ID comparable, V, NV any, SID comparable, S any](opts TierOptions[ID, V, NV, SID, S]) (Cache[ID, V], error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("tiercache: storage is required")
	}
	if opts.IDConverter == nil {
		return nil, fmt.Errorf("tiercache: id converter is required")
	}
	if opts.FromStorage == nil || opts.ToStorage == nil {
		return nil, fmt.Errorf("tiercache: storage converters are required")
	}
	if opts.Next != nil && opts.NextConverter == nil {
		return nil, fmt.Errorf("tiercache: next converter is required when next is set")
	}

	t := &tier[ID, V, NV, SID, S]{
		name:        opts.Name,
		storage:     opts.Storage,
		idConv:      opts.IDConverter,
		fromStorage: opts.FromStorage,
		toStorage:   opts.ToStorage,
		next:        opts.Next,
		nextConv:    opts.NextConverter,
		gens:        opts.Generations,
		coalesce:    !opts.DisableCoalescing,
	}
	t.log = coalesce[Logger](opts.Logger, NopLogger{})
	t.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return t, nil
}

func (t *tier[ID, V, NV, SID, S]) Fetch(ctx context.Context, id ID) (V, bool, error) {
	if !t.coalesce {
		r, err := t.fetch(ctx, id)
		return r.v, r.found, err
	}
	r, shared, err := t.flight.Do(ctx, id, func(ctx context.Context) (lookup[V], error) {
		return t.fetch(ctx, id)
	})
	if shared {
		t.hooks.Coalesced(t.name)
	}
	return r.v, r.found, err
}

func (t *tier[ID, V, NV, SID, S]) fetch(ctx context.Context, id ID) (lookup[V], error) {
	sid := t.idConv(id)

	v, ok, err := t.probe(ctx, sid)
	if err != nil || ok {
		return lookup[V]{v: v, found: ok}, err
	}
	if t.next == nil {
		return lookup[V]{}, nil
	}

	var obs uint64
	if t.gens != nil {
		if obs, err = t.gens.Snapshot(ctx, sid); err != nil {
			// write-back gets skipped below since obs can't be trusted
			t.log.Warn("gen snapshot error", Fields{"tier": t.name, "key": sid, "err": err})
		}
	}
	genOK := err == nil

	nv, found, err := t.next.Fetch(ctx, id)
	if err != nil || !found {
		return lookup[V]{}, err
	}
	v, err = t.nextConv(ctx, nv)
	if err != nil {
		return lookup[V]{}, fmt.Errorf("tiercache: tier %q: convert value from next: %w", t.name, err)
	}

	if t.gens != nil && (!genOK || !t.genUnchanged(ctx, sid, obs)) {
		t.log.Debug("write-back skipped (invalidated during fetch)", Fields{"tier": t.name, "key": sid})
		t.hooks.WriteBackSkipped(t.name)
		return lookup[V]{v: v, found: true}, nil
	}
	t.writeBack(ctx, sid, v)
	return lookup[V]{v: v, found: true}, nil
}

func (t *tier[ID, V, NV, SID, S]) probe(ctx context.Context, sid SID) (V, bool, error) {
	var zero V
	stored, ok, err := t.storage.Get(ctx, sid)
	if err != nil {
		if isCancel(err) && ctx.Err() != nil {
			return zero, false, err
		}
		t.log.Warn("storage get failed; treating as miss", Fields{"tier": t.name, "key": sid, "err": err})
		t.hooks.StorageReadFailed(t.name, err)
		return zero, false, nil
	}
	if !ok {
		return zero, false, nil
	}
	v, err := t.fromStorage(ctx, stored)
	if errors.Is(err, ErrAbsent) {
		t.log.Debug("stored value rejected by converter; treating as miss", Fields{"tier": t.name, "key": sid})
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("tiercache: tier %q: convert stored value: %w", t.name, err)
	}
	return v, true, nil
}

func (t *tier[ID, V, NV, SID, S]) genUnchanged(ctx context.Context, sid SID, obs uint64) bool {
	cur, err := t.gens.Snapshot(ctx, sid)
	if err != nil {
		t.log.Warn("gen snapshot error", Fields{"tier": t.name, "key": sid, "err": err})
		return false
	}
	return cur == obs
}

// writeBack never fails the read; problems are only reported.
func (t *tier[ID, V, NV, SID, S]) writeBack(ctx context.Context, sid SID, v V) {
	s, err := t.toStorage(ctx, v)
	if err == nil {
		err = t.storage.Put(ctx, sid, s)
	}
	if err != nil {
		t.log.Warn("write-back failed", Fields{"tier": t.name, "key": sid, "err": err})
		t.hooks.WriteBackFailed(t.name, err)
	}
}

// Invalidate forgets the in-flight fetch for id before removing it, so a
// request arriving afterwards starts its own forward instead of joining work
// begun before the invalidation. Until the old fetch finishes, the tier may
// then run two forwards for id; the old one is refused write-back by the
// generation check when Generations is set.
func (t *tier[ID, V, NV, SID, S]) Invalidate(ctx context.Context, id ID) error {
	sid := t.idConv(id)

	// requests arriving from now on must not join a fetch that started
	// before the invalidation
	t.flight.Forget(id)

	var local error
	if t.gens != nil {
		if _, err := t.gens.Bump(ctx, sid); err != nil {
			t.log.Error("gen bump error", Fields{"tier": t.name, "key": sid, "err": err})
			local = err
		}
	}
	if r, ok := t.storage.(Remover[SID]); ok {
		if err := r.Remove(ctx, sid); err != nil {
			local = errors.Join(local, err)
		}
	}
	if local != nil {
		t.log.Warn("invalidate failed; continuing cascade", Fields{"tier": t.name, "key": sid, "err": local})
		t.hooks.InvalidateFailed(t.name, local)
	}

	var deeper error
	if t.next != nil {
		deeper = t.next.Invalidate(ctx, id)
	}
	if local == nil && deeper == nil {
		t.log.Debug("invalidated", Fields{"tier": t.name, "key": sid})
		return nil
	}
	return &InvalidateError{Tier: t.name, Err: local, Next: deeper}
}
