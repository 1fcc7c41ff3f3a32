// Package sloghooks reports tier events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tiercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CoalescedEvery     uint64
	StorageReadEvery   uint64
	WriteBackSkipEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	coalescedCtr   atomic.Uint64
	storageReadCtr atomic.Uint64
	skipCtr        atomic.Uint64
}

var _ tiercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StorageReadFailed(tier string, err error) {
	if h.l == nil || !sample(h.opts.StorageReadEvery, &h.storageReadCtr) {
		return
	}
	h.l.Warn("tiercache.storage_read_failed",
		"tier", tier,
		"err", err)
}

func (h *Hooks) WriteBackFailed(tier string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tiercache.write_back_failed",
		"tier", tier,
		"err", err)
}

func (h *Hooks) WriteBackSkipped(tier string) {
	if h.l == nil || !sample(h.opts.WriteBackSkipEvery, &h.skipCtr) {
		return
	}
	h.l.Debug("tiercache.write_back_skipped",
		"tier", tier)
}

func (h *Hooks) InvalidateFailed(tier string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tiercache.invalidate_failed",
		"tier", tier,
		"err", err)
}

func (h *Hooks) Coalesced(tier string) {
	if h.l == nil || !sample(h.opts.CoalescedEvery, &h.coalescedCtr) {
		return
	}
	h.l.Debug("tiercache.coalesced",
		"tier", tier)
}
