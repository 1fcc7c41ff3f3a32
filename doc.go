// Package tiercache builds caches out of small composable pieces.
//
// Providers produce a value for an ID. Each one carries a Flavor telling
// whether it may suspend (Async) and whether it may fail (Failable):
//
//	p := tiercache.FromThrowingAsync(loadUser)          // throwing-async
//	q := tiercache.FromSync(strconv.Itoa)                // sync
//
// Combinators wrap a provider and return a new one whose flavor is the union
// of the provider's and the operator's:
//
//	users := tiercache.Coordinated(
//	    tiercache.MapID(p, tiercache.Key(parseID)).
//	        Cache(memory.New[string, User](), log),
//	).Catch(tiercache.Recover(func(err error, id string) User { return Anonymous }))
//
// MapID, MapValue and Coordinated change type parameters and are functions;
// SideEffect, Interject, Catch, Serialized and Cache are methods.
//
// Chains:
//
// A Cache is a chain of tiers. Each tier probes its storage, forwards misses
// to the next tier and writes what comes back into its storage on the way
// out. The last link is a backstop (NewBackstop, FromProvider) or nothing.
//
//	origin, _ := tiercache.NewBackstop(...)                              // HTTP, DB, generator
//	shared, _ := tiercache.NewCodecTier(origin, redisStore, key, codec.JSON[User]{}, cfg)
//	local,  _ := tiercache.NewStorageTier(shared, ristrettoStore, cfg)
//
//	u, found, err := local.Fetch(ctx, id)
//	err = local.Invalidate(ctx, id) // every tier, front to back
//
// Storage read errors are treated as misses and write-back errors are only
// logged; neither fails a Fetch. Concurrent misses for the same id within a
// tier share one forward. With Generations set, a fetch racing an Invalidate
// returns its value but does not write it back.
package tiercache
