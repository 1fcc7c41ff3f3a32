// Package codec turns values into the bytes byte-oriented tiers keep
// (bigcache, redis, sqlite, files) and back.
package codec

import "github.com/unkn0wn-root/tiercache/internal/wire"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ErrCorrupt is returned by Framed when a stored frame fails validation.
var ErrCorrupt = wire.ErrCorrupt
