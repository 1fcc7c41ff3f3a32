package tiercache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/tiercache/codec"
)

// NewCodecTier builds a tier over a byte store. Values are encoded with c on
// write-back and decoded on probe; an entry that fails to decode is treated
// as a miss, so the next write-back overwrites it.
func NewCodecTier[ID comparable, V any](next Cache[ID, V], s Storage[string, []byte], key func(ID) string, c codec.Codec[V], cfg Config) (Cache[ID, V], error) {
	if c == nil {
		return nil, fmt.Errorf("tiercache: codec is required")
	}
	return NewTier(CodecOptions(next, s, key, c, cfg))
}

// CodecOptions returns the TierOptions NewCodecTier uses, for callers that
// need to set more fields (e.g. Generations) before calling NewTier.
// c must not be nil.
func CodecOptions[ID comparable, V any](next Cache[ID, V], s Storage[string, []byte], key func(ID) string, c codec.Codec[V], cfg Config) TierOptions[ID, V, V, string, []byte] {
	log := orNop(cfg.Logger)
	opts := TierOptions[ID, V, V, string, []byte]{
		Config:      cfg,
		Storage:     s,
		IDConverter: key,
		FromStorage: func(_ context.Context, b []byte) (V, error) {
			v, err := c.Decode(b)
			if err != nil {
				log.Warn("stored entry undecodable; treating as miss", Fields{"tier": cfg.Name, "err": err})
				return v, fmt.Errorf("%w: %v", ErrAbsent, err)
			}
			return v, nil
		},
		ToStorage: func(_ context.Context, v V) ([]byte, error) {
			return c.Encode(v)
		},
	}
	if next != nil {
		opts.Next = next
		opts.NextConverter = same[V]
	}
	return opts
}
