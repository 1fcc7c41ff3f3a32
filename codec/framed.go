package codec

import "github.com/unkn0wn-root/tiercache/internal/wire"

// Framed wraps Inner's output in a checksummed envelope. Truncated, foreign
// or bit-flipped entries fail Decode with ErrCorrupt before Inner sees them,
// which byte tiers turn into a miss.
type Framed[V any] struct {
	Inner Codec[V]
}

func (c Framed[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return wire.Encode(b), nil
}

func (c Framed[V]) Decode(b []byte) (V, error) {
	p, err := wire.Decode(b)
	if err != nil {
		var zero V
		return zero, err
	}
	return c.Inner.Decode(p)
}
