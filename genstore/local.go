package genstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type localGenEntry struct {
	Gen       uint64
	UpdatedAt time.Time
}

// LocalGenStore keeps generations in-process.
// Optional cleanup loop prunes entries not bumped for longer than retention.
//
// Every Bump draws from one store-wide sequence, so a key that was pruned and
// bumped again never repeats a generation a reader may have observed.
type LocalGenStore[K comparable] struct {
	mu     sync.RWMutex
	gens   map[K]localGenEntry
	seq    atomic.Uint64
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ GenStore[string] = (*LocalGenStore[string])(nil)

// NewLocalGenStore starts a cleanup loop when both cleanupInterval and
// retention are positive.
func NewLocalGenStore[K comparable](cleanupInterval, retention time.Duration) *LocalGenStore[K] {
	s := &LocalGenStore[K]{gens: make(map[K]localGenEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *LocalGenStore[K]) Snapshot(_ context.Context, k K) (uint64, error) {
	s.mu.RLock()
	e, ok := s.gens[k]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Gen, nil
}

func (s *LocalGenStore[K]) Bump(_ context.Context, k K) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := localGenEntry{Gen: s.seq.Add(1), UpdatedAt: now}
	s.gens[k] = e
	s.mu.Unlock()
	return e.Gen, nil
}

// Cleanup drops generations bumped before now-retention. A pruned key reads
// as gen 0 until its next Bump, which lands above anything handed out before.
func (s *LocalGenStore[K]) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.gens {
		if !e.UpdatedAt.IsZero() && e.UpdatedAt.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

func (s *LocalGenStore[K]) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
