// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    RetryEvery: 10, // sample logs: ~every 10th fetch retry
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := ledgercache.New(ledgercache.Options{
//	    Ledger:   led,
//	    Metadata: meta,
//	    Bulk:     leveldb.NewOpener(leveldb.Config{Path: "./data/values"}),
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/ledgercache"
)

// Hooks forwards events to inner on a bounded queue. Events are dropped when
// the queue is full.
type Hooks struct {
	inner   ledgercache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ ledgercache.Hooks = (*Hooks)(nil)

func New(inner ledgercache.Hooks, workers, qlen int) *Hooks {
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

// Close drains the queue and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
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

func (h *Hooks) PhaseChanged(ds string, p ledgercache.Phase) {
	h.try(func() { h.inner.PhaseChanged(ds, p) })
}
func (h *Hooks) Progress(ds string, p ledgercache.Progress, took time.Duration) {
	h.try(func() { h.inner.Progress(ds, p, took) })
}
func (h *Hooks) FetchRetry(ref string, attempt int, err error) {
	h.try(func() { h.inner.FetchRetry(ref, attempt, err) })
}
func (h *Hooks) MalformedReference(ref string, parts int) {
	h.try(func() { h.inner.MalformedReference(ref, parts) })
}
func (h *Hooks) PassCompleted(ds string, listed, refreshed int, took time.Duration) {
	h.try(func() { h.inner.PassCompleted(ds, listed, refreshed, took) })
}
func (h *Hooks) PassFailed(ds string, err error) { h.try(func() { h.inner.PassFailed(ds, err) }) }
