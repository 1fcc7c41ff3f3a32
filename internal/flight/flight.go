// Package flight collapses concurrent calls for the same key into one
// execution.
//
// Unlike golang.org/x/sync/singleflight it is generic over the key type and
// it decouples the shared work from the callers' contexts: a caller that
// gives up leaves the work running for everyone else, and the work is only
// cancelled once nobody is waiting for it.
package flight

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError carries a panic raised by the shared work to every waiter.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("flight: work panicked: %v\n\n%s", p.Value, p.Stack)
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error

	// guarded by Group.mu
	waiters int
	cancel  context.CancelFunc
}

// Group is a registry of in-flight calls. The zero Group is ready to use.
// A Group must not be copied after first use.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

// Do runs fn once for all concurrent callers asking for key and returns its
// outcome. shared reports whether this caller joined a call started by
// someone else.
//
// fn runs on its own goroutine with a context that keeps ctx's values but not
// its cancellation. If ctx ends first, Do returns ctx.Err() and stops waiting;
// when the last waiter leaves, fn's context is cancelled and the key is
// released so the next caller starts a fresh call.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, shared := g.calls[key]
	if !shared {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[V]{done: make(chan struct{}), cancel: cancel}
		g.calls[key] = c
		go g.run(cctx, key, c, fn)
	}
	c.waiters++
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-c.done:
		// finished while we were giving up
		return c.val, shared, c.err
	default:
	}
	c.waiters--
	if c.waiters == 0 {
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		c.cancel()
	}

	var zero V
	return zero, shared, ctx.Err()
}

func (g *Group[K, V]) run(ctx context.Context, key K, c *call[V], fn func(context.Context) (V, error)) {
	defer c.cancel()

	var (
		v   V
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		v, err = fn(ctx)
	}()

	// the key is released before waiters observe the outcome
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	c.val, c.err = v, err
	close(c.done)
	g.mu.Unlock()
}

// InFlight reports how many keys currently have a call running.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Forget releases key so the next Do starts a new call even if one is
// still running. Waiters of the running call are unaffected.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}
