// Package ristretto is a typed in-process tier on dgraph-io/ristretto.
// Values are kept as they are, so it fits directly in front of a chain
// without a codec.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/tiercache"
)

type Store[V any] struct {
	c    *rc.Cache
	ttl  time.Duration
	cost func(V) int64
}

var (
	_ tiercache.Storage[string, int] = (*Store[int])(nil)
	_ tiercache.Remover[string]      = (*Store[int])(nil)
)

type Config[V any] struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// TTL applied to every Put; <= 0 means no expiry.
	TTL time.Duration
	// Cost of a value against MaxCost; nil counts every value as 1.
	Cost func(V) int64
}

func New[V any](cfg Config[V]) (*Store[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	cost := cfg.Cost
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &Store[V]{c: c, ttl: max(cfg.TTL, 0), cost: cost}, nil
}

func (s *Store[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok := s.c.Get(key)
	if !ok {
		return zero, false, nil
	}
	v, ok := raw.(V)
	if !ok {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return zero, false, nil
	}
	return v, true, nil
}

// Put hands v to ristretto's admission buffer. A write dropped under
// pressure is not an error; the value is simply not cached.
func (s *Store[V]) Put(_ context.Context, key string, v V) error {
	s.c.SetWithTTL(key, v, s.cost(v), s.ttl)
	return nil
}

func (s *Store[V]) Remove(_ context.Context, key string) error {
	s.c.Del(key)
	return nil
}

// Wait blocks until buffered writes are applied.
func (s *Store[V]) Wait() { s.c.Wait() }

func (s *Store[V]) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto's counters; nil unless Config.Metrics is set.
func (s *Store[V]) Metrics() *rc.Metrics { return s.c.Metrics }
