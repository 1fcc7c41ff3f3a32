package tiercache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/tiercache/codec"
	"github.com/unkn0wn-root/tiercache/genstore"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type recHooks struct {
	mu                              sync.Mutex
	readFailed, wbFailed, wbSkipped int
	invFailed, coalesced            int
	lastErr                         error
}

func (h *recHooks) StorageReadFailed(_ string, err error) {
	h.mu.Lock()
	h.readFailed++
	h.lastErr = err
	h.mu.Unlock()
}
func (h *recHooks) WriteBackFailed(_ string, err error) {
	h.mu.Lock()
	h.wbFailed++
	h.lastErr = err
	h.mu.Unlock()
}
func (h *recHooks) WriteBackSkipped(string) { h.mu.Lock(); h.wbSkipped++; h.mu.Unlock() }
func (h *recHooks) InvalidateFailed(_ string, err error) {
	h.mu.Lock()
	h.invFailed++
	h.lastErr = err
	h.mu.Unlock()
}
func (h *recHooks) Coalesced(string) { h.mu.Lock(); h.coalesced++; h.mu.Unlock() }

// countingCache is a chain end backed by a function, counting fetches.
type countingCache struct {
	fetches     atomic.Int32
	invalidates atomic.Int32
	fn          func(ctx context.Context, id int) (user, bool, error)
}

func (c *countingCache) Fetch(ctx context.Context, id int) (user, bool, error) {
	c.fetches.Add(1)
	return c.fn(ctx, id)
}

func (c *countingCache) Invalidate(context.Context, int) error {
	c.invalidates.Add(1)
	return nil
}

func origin() *countingCache {
	return &countingCache{fn: func(_ context.Context, id int) (user, bool, error) {
		if id < 0 {
			return user{}, false, nil
		}
		return user{ID: id, Name: "u" + strconv.Itoa(id)}, true, nil
	}}
}

func mustTier[V any](c Cache[int, V], err error) Cache[int, V] {
	if err != nil {
		panic(err)
	}
	return c
}

// ==============================
// Read-through / write-back
// ==============================

func TestReadThroughWriteBack(t *testing.T) {
	ctx := context.Background()
	next := origin()
	s := newMemStorage[int, user]()
	c := mustTier(NewStorageTier[int, user](next, s, Config{Name: "local"}))

	for i := 0; i < 3; i++ {
		u, ok, err := c.Fetch(ctx, 1)
		if err != nil || !ok || u.Name != "u1" {
			t.Fatalf("fetch: %+v %v %v", u, ok, err)
		}
	}
	if next.fetches.Load() != 1 {
		t.Fatalf("next fetched %d times, want 1", next.fetches.Load())
	}
	if !s.has(1) {
		t.Fatalf("value not written back")
	}
}

func TestHitDoesNotConsultNext(t *testing.T) {
	ctx := context.Background()
	next := origin()
	s := newMemStorage[int, user]()
	_ = s.Put(ctx, 1, user{ID: 1, Name: "cached"})
	c := mustTier(NewStorageTier[int, user](next, s, Config{}))

	u, ok, err := c.Fetch(ctx, 1)
	if err != nil || !ok || u.Name != "cached" {
		t.Fatalf("fetch: %+v %v %v", u, ok, err)
	}
	if next.fetches.Load() != 0 {
		t.Fatalf("next consulted on hit")
	}
}

func TestNotFoundIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage[int, user]()
	c := mustTier(NewStorageTier[int, user](origin(), s, Config{}))

	if _, ok, err := c.Fetch(ctx, -1); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if s.puts != 0 {
		t.Fatalf("absence must not be written back")
	}

	last := mustTier(NewStorageTier[int, user](nil, s, Config{}))
	if _, ok, err := last.Fetch(ctx, 9); ok || err != nil {
		t.Fatalf("tier without next: ok=%v err=%v", ok, err)
	}
}

func TestForwardFailurePropagates(t *testing.T) {
	ctx := context.Background()
	next := &countingCache{fn: func(context.Context, int) (user, bool, error) { return user{}, false, errBoom }}
	s := newMemStorage[int, user]()
	c := mustTier(NewStorageTier[int, user](next, s, Config{}))

	if _, _, err := c.Fetch(ctx, 1); !errors.Is(err, errBoom) {
		t.Fatalf("err=%v", err)
	}
	if s.puts != 0 {
		t.Fatalf("failure must not be written back")
	}

	// the failure is not remembered: a later fetch goes through again
	next.fn = origin().fn
	u, ok, err := c.Fetch(ctx, 1)
	if err != nil || !ok || u.Name != "u1" {
		t.Fatalf("retry: %+v %v %v", u, ok, err)
	}
	if next.fetches.Load() != 2 {
		t.Fatalf("next fetched %d times, want 2", next.fetches.Load())
	}
	if n := c.(*tier[int, user, user, int, user]).flight.InFlight(); n != 0 {
		t.Fatalf("in flight after failure and retry: %d", n)
	}
	if !s.has(1) {
		t.Fatalf("retry result not written back")
	}
}

func TestStorageReadErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	s := newMemStorage[int, user]()
	s.getErr = errBoom
	c := mustTier(NewStorageTier[int, user](origin(), s, Config{Hooks: h}))

	u, ok, err := c.Fetch(ctx, 2)
	if err != nil || !ok || u.ID != 2 {
		t.Fatalf("fetch: %+v %v %v", u, ok, err)
	}
	if h.readFailed != 1 || !errors.Is(h.lastErr, errBoom) {
		t.Fatalf("hooks=%+v", h)
	}
}

func TestWriteBackFailureIsReported(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	s := newMemStorage[int, user]()
	s.putErr = errBoom
	c := mustTier(NewStorageTier[int, user](origin(), s, Config{Hooks: h}))

	u, ok, err := c.Fetch(ctx, 3)
	if err != nil || !ok || u.ID != 3 {
		t.Fatalf("write-back failure must not fail the read: %+v %v %v", u, ok, err)
	}
	if h.wbFailed != 1 {
		t.Fatalf("WriteBackFailed=%d", h.wbFailed)
	}
}

// ==============================
// Converters
// ==============================

func TestHeterogeneousTier(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage[string, string]()
	c := mustTier(NewTier(TierOptions[int, string, user, string, string]{
		Config:      Config{Name: "names"},
		Storage:     s,
		IDConverter: func(id int) string { return "user:" + strconv.Itoa(id) },
		FromStorage: func(_ context.Context, s string) (string, error) { return s, nil },
		ToStorage:   func(_ context.Context, s string) (string, error) { return s, nil },
		Next:        origin(),
		NextConverter: MapValue(FromSync(func(u user) user { return u }),
			Map(func(u, _ user) string { return u.Name })).Func(),
	}))

	name, ok, err := c.Fetch(ctx, 4)
	if err != nil || !ok || name != "u4" {
		t.Fatalf("fetch: %q %v %v", name, ok, err)
	}
	if !s.has("user:4") {
		t.Fatalf("stored under the wrong key: %v", s.m)
	}
}

func TestFromStorageAbsentIsMiss(t *testing.T) {
	ctx := context.Background()
	next := origin()
	s := newMemStorage[int, string]()
	_ = s.Put(ctx, 5, "garbage")

	decode := FromThrowingSync(func(s string) (user, error) {
		n, err := strconv.Atoi(s)
		return user{ID: n, Name: "u" + s}, err
	}).Catch(RecoverErr(func(error, string) (user, error) { return user{}, ErrAbsent }))

	c := mustTier(NewTier(TierOptions[int, user, user, int, string]{
		Storage:       s,
		IDConverter:   identity[int],
		FromStorage:   decode.Func(),
		ToStorage:     func(_ context.Context, u user) (string, error) { return strconv.Itoa(u.ID), nil },
		Next:          next,
		NextConverter: same[user],
	}))

	u, ok, err := c.Fetch(ctx, 5)
	if err != nil || !ok || u.Name != "u5" {
		t.Fatalf("fetch: %+v %v %v", u, ok, err)
	}
	if next.fetches.Load() != 1 {
		t.Fatalf("rejected stored value must be refetched")
	}
	if s.m[5] != "5" {
		t.Fatalf("rejected value not overwritten: %q", s.m[5])
	}
}

func TestFromStorageErrorFailsFetch(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage[int, user]()
	_ = s.Put(ctx, 1, user{})
	c := mustTier(NewTier(TierOptions[int, user, user, int, user]{
		Storage:     s,
		IDConverter: identity[int],
		FromStorage: func(context.Context, user) (user, error) { return user{}, errBoom },
		ToStorage:   same[user],
	}))
	if _, _, err := c.Fetch(ctx, 1); !errors.Is(err, errBoom) {
		t.Fatalf("err=%v", err)
	}
}

func TestNewTierValidation(t *testing.T) {
	s := newMemStorage[int, user]()
	cases := map[string]TierOptions[int, user, user, int, user]{
		"no storage":        {IDConverter: identity[int], FromStorage: same[user], ToStorage: same[user]},
		"no id converter":   {Storage: s, FromStorage: same[user], ToStorage: same[user]},
		"no from storage":   {Storage: s, IDConverter: identity[int], ToStorage: same[user]},
		"no next converter": {Storage: s, IDConverter: identity[int], FromStorage: same[user], ToStorage: same[user], Next: origin()},
	}
	for name, opts := range cases {
		if _, err := NewTier(opts); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCodecTierSelfHeals(t *testing.T) {
	ctx := context.Background()
	next := origin()
	s := newMemStorage[string, []byte]()
	_ = s.Put(ctx, "u:1", []byte("not-json"))
	key := func(id int) string { return "u:" + strconv.Itoa(id) }
	c := mustTier(NewCodecTier[int, user](next, s, key, codec.Framed[user]{Inner: codec.JSON[user]{}}, Config{Name: "bytes"}))

	u, ok, err := c.Fetch(ctx, 1)
	if err != nil || !ok || u.Name != "u1" {
		t.Fatalf("fetch: %+v %v %v", u, ok, err)
	}
	if _, err := (codec.Framed[user]{Inner: codec.JSON[user]{}}).Decode(s.m["u:1"]); err != nil {
		t.Fatalf("corrupt entry not overwritten: %v", err)
	}
	if _, _, _ = c.Fetch(ctx, 1); next.fetches.Load() != 1 {
		t.Fatalf("healed entry not served, fetches=%d", next.fetches.Load())
	}

	if _, err := NewCodecTier[int, user](next, s, key, nil, Config{}); err == nil {
		t.Fatalf("nil codec must be rejected")
	}
}

// ==============================
// Coalescing
// ==============================

func TestConcurrentMissesCoalesce(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	release := make(chan struct{})
	next := &countingCache{fn: func(_ context.Context, id int) (user, bool, error) {
		<-release
		return user{ID: id}, true, nil
	}}
	c := mustTier(NewStorageTier[int, user](next, newMemStorage[int, user](), Config{Hooks: h}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if u, ok, err := c.Fetch(ctx, 1); err != nil || !ok || u.ID != 1 {
				t.Errorf("fetch: %+v %v %v", u, ok, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if next.fetches.Load() != 1 {
		t.Fatalf("next fetched %d times", next.fetches.Load())
	}
	if h.coalesced != 9 {
		t.Fatalf("coalesced=%d want 9", h.coalesced)
	}
}

func TestDisableCoalescing(t *testing.T) {
	ctx := context.Background()
	var inflight, peak atomic.Int32
	next := &countingCache{fn: func(_ context.Context, id int) (user, bool, error) {
		n := inflight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		return user{ID: id}, true, nil
	}}
	c := mustTier(NewStorageTier[int, user](next, newMemStorage[int, user](), Config{DisableCoalescing: true}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); _, _, _ = c.Fetch(ctx, 1) }()
	}
	wg.Wait()
	if next.fetches.Load() != 4 {
		t.Fatalf("fetches=%d want 4", next.fetches.Load())
	}
}

// ==============================
// Invalidation
// ==============================

func TestInvalidateCascades(t *testing.T) {
	ctx := context.Background()
	next := origin()
	deep := newMemStorage[int, user]()
	front := newMemStorage[int, user]()
	c := mustTier(NewStorageTier[int, user](
		mustTier(NewStorageTier[int, user](next, deep, Config{Name: "deep"})),
		front, Config{Name: "front"}))

	_, _, _ = c.Fetch(ctx, 1)
	if !front.has(1) || !deep.has(1) {
		t.Fatalf("not written back to both tiers")
	}
	if err := c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if front.has(1) || deep.has(1) {
		t.Fatalf("not removed from every tier")
	}
	if next.invalidates.Load() != 1 {
		t.Fatalf("invalidate did not reach the end of the chain")
	}

	// absent ids invalidate cleanly
	if err := c.Invalidate(ctx, 42); err != nil {
		t.Fatalf("invalidate absent: %v", err)
	}

	// invalidating twice is the same as once
	for i := 0; i < 2; i++ {
		if err := c.Invalidate(ctx, 1); err != nil {
			t.Fatalf("repeat invalidate: %v", err)
		}
	}

	_, _, _ = c.Fetch(ctx, 1)
	if next.fetches.Load() != 2 {
		t.Fatalf("fetch after invalidate should reach origin")
	}
}

func TestInvalidateContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	deep := newMemStorage[int, user]()
	mid := newMemStorage[int, user]()
	front := newMemStorage[int, user]()
	c := mustTier(NewStorageTier[int, user](
		mustTier(NewStorageTier[int, user](
			mustTier(NewStorageTier[int, user](origin(), deep, Config{Name: "deep"})),
			mid, Config{Name: "mid", Hooks: h})),
		front, Config{Name: "front"}))

	_, _, _ = c.Fetch(ctx, 1)
	mid.delErr = errBoom

	err := c.Invalidate(ctx, 1)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v", err)
	}
	var ie *InvalidateError
	if !errors.As(err, &ie) {
		t.Fatalf("want *InvalidateError, got %T", err)
	}
	if front.has(1) || deep.has(1) {
		t.Fatalf("tiers around the failing one must still be invalidated")
	}
	if !mid.has(1) {
		t.Fatalf("failing tier unexpectedly removed the entry")
	}
	if h.invFailed != 1 {
		t.Fatalf("InvalidateFailed=%d", h.invFailed)
	}
}

func TestInvalidateDuringFetchSkipsWriteBack(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	entered := make(chan struct{})
	release := make(chan struct{})
	next := &countingCache{fn: func(_ context.Context, id int) (user, bool, error) {
		close(entered)
		<-release
		return user{ID: id, Name: "old"}, true, nil
	}}
	s := newMemStorage[int, user]()
	gens := genstore.NewLocalGenStore[int](0, 0)
	c := mustTier(NewTier(TierOptions[int, user, user, int, user]{
		Config:        Config{Hooks: h},
		Storage:       s,
		IDConverter:   identity[int],
		FromStorage:   same[user],
		ToStorage:     same[user],
		Next:          next,
		NextConverter: same[user],
		Generations:   gens,
	}))

	got := make(chan user)
	go func() {
		u, _, _ := c.Fetch(ctx, 1)
		got <- u
	}()
	<-entered
	if err := c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(release)

	if u := <-got; u.Name != "old" {
		t.Fatalf("in-flight caller should still get its value, got %+v", u)
	}
	if s.has(1) {
		t.Fatalf("stale value written back after invalidate")
	}
	if h.wbSkipped != 1 {
		t.Fatalf("WriteBackSkipped=%d", h.wbSkipped)
	}
}

func TestInvalidateAfterGenerationCleanupSkipsWriteBack(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	entered := make(chan struct{})
	release := make(chan struct{})
	next := &countingCache{fn: func(_ context.Context, id int) (user, bool, error) {
		close(entered)
		<-release
		return user{ID: id, Name: "old"}, true, nil
	}}
	s := newMemStorage[int, user]()
	gens := genstore.NewLocalGenStore[int](0, 0)
	t.Cleanup(func() { _ = gens.Close(ctx) })
	c := mustTier(NewTier(TierOptions[int, user, user, int, user]{
		Config:        Config{Hooks: h},
		Storage:       s,
		IDConverter:   identity[int],
		FromStorage:   same[user],
		ToStorage:     same[user],
		Next:          next,
		NextConverter: same[user],
		Generations:   gens,
	}))

	// the fetch observes gen 1
	if _, err := gens.Bump(ctx, 1); err != nil {
		t.Fatal(err)
	}
	got := make(chan user)
	go func() {
		u, _, _ := c.Fetch(ctx, 1)
		got <- u
	}()
	<-entered

	// prune the idle key, then invalidate it again from scratch
	time.Sleep(5 * time.Millisecond)
	gens.Cleanup(time.Millisecond)
	if err := c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(release)

	<-got
	if s.has(1) {
		t.Fatalf("stale value written back after invalidate")
	}
	if h.wbSkipped != 1 {
		t.Fatalf("WriteBackSkipped=%d", h.wbSkipped)
	}
}

// ==============================
// Chain ends
// ==============================

func TestBackstop(t *testing.T) {
	ctx := context.Background()
	src := StorageFuncs[string, string]{GetFunc: func(_ context.Context, id string) (string, bool, error) {
		switch id {
		case "1":
			return "one", true, nil
		case "err":
			return "", false, errBoom
		}
		return "", false, nil
	}}
	b, err := NewBackstop(BackstopOptions[int, string, string, string]{
		Config:      Config{Name: "origin"},
		Storage:     src,
		IDConverter: strconv.Itoa,
		FromStorage: same[string],
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, err := b.Fetch(ctx, 1); err != nil || !ok || v != "one" {
		t.Fatalf("got %q %v %v", v, ok, err)
	}
	if _, ok, err := b.Fetch(ctx, 2); ok || err != nil {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
	if err := b.Invalidate(ctx, 1); err != nil {
		t.Fatalf("backstop invalidate: %v", err)
	}

	be, _ := NewBackstop(BackstopOptions[string, string, string, string]{
		Storage: src, IDConverter: identity[string], FromStorage: same[string],
	})
	if _, _, err := be.Fetch(ctx, "err"); !errors.Is(err, errBoom) {
		t.Fatalf("source error should fail the fetch, err=%v", err)
	}
}

func TestFromProviderAndEmpty(t *testing.T) {
	ctx := context.Background()
	src := FromProvider(FromSync(double))
	if v, ok, err := src.Fetch(ctx, 4); err != nil || !ok || v != 8 {
		t.Fatalf("got %d %v %v", v, ok, err)
	}
	failing := FromProvider(FromThrowingSync(func(int) (int, error) { return 0, errBoom }))
	if _, ok, err := failing.Fetch(ctx, 1); ok || !errors.Is(err, errBoom) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}

	e := Empty[int, int]()
	if _, ok, err := e.Fetch(ctx, 1); ok || err != nil {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}
	if err := e.Invalidate(ctx, 1); err != nil {
		t.Fatal(err)
	}
}

func TestAsProvider(t *testing.T) {
	ctx := context.Background()
	c := mustTier(NewStorageTier[int, user](origin(), newMemStorage[int, user](), Config{}))
	p := AsProvider(c)
	if p.Flavor() != FlavorThrowingAsync {
		t.Fatalf("flavor=%v", p.Flavor())
	}
	if u, err := p.Get(ctx, 1); err != nil || u.ID != 1 {
		t.Fatalf("got %+v %v", u, err)
	}
	if _, err := p.Get(ctx, -1); !errors.Is(err, ErrAbsent) {
		t.Fatalf("err=%v", err)
	}

	// a chain fronted by a coordinated provider with a total fallback
	safe := Coordinated(p).Catch(Recover(func(error, int) user { return user{Name: "anon"} }))
	if u, _ := safe.Get(ctx, -1); u.Name != "anon" {
		t.Fatalf("got %+v", u)
	}
}
