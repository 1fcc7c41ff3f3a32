package tiercache

import "context"

// Cache puts s in front of p: ids found in s are returned without calling p,
// and values produced by p are stored in s on the way out.
// It is SideEffect(store) followed by Interject(lookup).
//
// Storage errors never fail the pipeline. A failed Get is logged and
// treated as a miss, a failed Put is logged and ignored. The result is
// async because s is.
func (p Provider[ID, V]) Cache(s Storage[ID, V], log Logger) Provider[ID, V] {
	log = orNop(log)
	return p.
		SideEffect(DoAsync(func(ctx context.Context, v V, id ID) {
			if err := s.Put(ctx, id, v); err != nil {
				log.Warn("storage put failed", Fields{"id": id, "err": err})
			}
		})).
		Interject(LookAsync(func(ctx context.Context, id ID) (V, bool) {
			v, ok, err := s.Get(ctx, id)
			if err != nil {
				log.Warn("storage get failed; treating as miss", Fields{"id": id, "err": err})
				return v, false
			}
			return v, ok
		}))
}

// CacheSync is Cache for a storage used inline. It keeps p's flavor.
func (p Provider[ID, V]) CacheSync(s SyncStorage[ID, V]) Provider[ID, V] {
	return p.
		SideEffect(Do(func(v V, id ID) { s.Put(id, v) })).
		Interject(Look(s.Get))
}
