package tiercache

import (
	"context"

	"github.com/unkn0wn-root/tiercache/genstore"
)

// Cache answers requests for values by ID, possibly consulting deeper tiers.
//
// Fetch returns (value, true, nil) when a value was found or produced,
// (zero, false, nil) when the chain has no value for id, and a non-nil error
// only when fetching failed. Invalidate removes id from every tier that stores
// it, from the front of the chain to the backstop.
type Cache[ID comparable, V any] interface {
	Fetch(ctx context.Context, id ID) (v V, found bool, err error)
	Invalidate(ctx context.Context, id ID) error
}

// Config holds the ambient settings shared by every tier constructor.
type Config struct {
	// Name labels the tier in logs, hooks and errors.
	Name string

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// DisableCoalescing turns off per-tier request merging. Concurrent misses
	// for the same id will then each probe and forward independently.
	DisableCoalescing bool
}

// TierOptions fully describe a chain link. ID is the chain's key, V the value
// this tier hands out, NV the value type of Next, SID and S the key and value
// types of Storage.
//
// Storage, IDConverter, FromStorage and ToStorage are required; NextConverter
// is required when Next is set. Converters may be built from providers with
// Provider.Func.
type TierOptions[ID comparable, V, NV any, SID comparable, S any] struct {
	Config

	Storage     Storage[SID, S]
	IDConverter func(ID) SID

	// FromStorage turns a stored representation into a value. Returning an
	// error wrapping ErrAbsent makes the probe a miss; any other error fails
	// the Fetch.
	FromStorage Func[S, V]
	// ToStorage turns a value fetched from Next into what Storage keeps.
	// Failures are write-back failures: logged, never returned.
	ToStorage Func[V, S]

	// Next is consulted on a miss. Nil makes this tier the end of the chain.
	Next          Cache[ID, NV]
	NextConverter Func[NV, V]

	// Generations, if set, is bumped on Invalidate and checked before write-back
	// so that a fetch racing an invalidation does not store the old value.
	Generations genstore.GenStore[SID]
}

// NewStorageTier builds a tier that stores next's values as they are, under
// the chain's own IDs.
func NewStorageTier[ID comparable, V any](next Cache[ID, V], s Storage[ID, V], cfg Config) (Cache[ID, V], error) {
	opts := TierOptions[ID, V, V, ID, V]{
		Config:      cfg,
		Storage:     s,
		IDConverter: identity[ID],
		FromStorage: same[V],
		ToStorage:   same[V],
	}
	if next != nil {
		opts.Next = next
		opts.NextConverter = same[V]
	}
	return NewTier(opts)
}

// BackstopOptions describe the terminal tier of a chain reading from a
// read-only source.
type BackstopOptions[ID comparable, V any, SID comparable, S any] struct {
	Config

	Storage     ReadOnlyStorage[SID, S]
	IDConverter func(ID) SID
	FromStorage Func[S, V]
}

func same[V any](_ context.Context, v V) (V, error) { return v, nil }
