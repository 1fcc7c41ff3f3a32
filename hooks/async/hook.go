// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    CoalescedEvery: 100, // sample logs: ~every 100th merged fetch
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	local, _ := tiercache.NewCodecTier(origin, redisStore, userKey, codec.JSON[User]{},
//	    tiercache.Config{Name: "redis", Hooks: hooks}) // or `raw` if you don’t want async
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tiercache"
)

// Hooks forwards events to inner on worker goroutines. When the queue is
// full events are dropped, never blocking the tier that raised them.
type Hooks struct {
	inner   tiercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ tiercache.Hooks = (*Hooks)(nil)

func New(inner tiercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events raised after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StorageReadFailed(tier string, err error) {
	h.try(func() { h.inner.StorageReadFailed(tier, err) })
}
func (h *Hooks) WriteBackFailed(tier string, err error) {
	h.try(func() { h.inner.WriteBackFailed(tier, err) })
}
func (h *Hooks) WriteBackSkipped(tier string) { h.try(func() { h.inner.WriteBackSkipped(tier) }) }
func (h *Hooks) InvalidateFailed(tier string, err error) {
	h.try(func() { h.inner.InvalidateFailed(tier, err) })
}
func (h *Hooks) Coalesced(tier string) { h.try(func() { h.inner.Coalesced(tier) }) }
