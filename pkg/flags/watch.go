package flags

import "sync/atomic"

// Watcher is a reactive side effect bound to the shared provider. It runs
// once on creation and re-runs synchronously on every store mutation. The
// watch function may return a Cleanup that runs before the next re-run and
// on disposal.
//
// Watchers give non-UI code (broadcasters, archivers, loggers) the same
// subscription discipline the accessor has: attach once, recompute from the
// current snapshot, dispose exactly once.
type Watcher struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	// detach removes this watcher from the provider.
	detach func()

	// running guards the run loop; pending records a MarkDirty that
	// landed mid-run (a mutation inside the watch function, or from
	// another goroutine) so the watcher re-runs with the latest snapshot
	// instead of going stale.
	running atomic.Bool
	pending atomic.Bool

	disposed atomic.Bool
}

// Watch creates a watcher against the shared provider and runs fn
// immediately. If a current owner is set, the watcher is disposed with it;
// otherwise the caller holds the only handle and must call Dispose.
func Watch(fn func() Cleanup) *Watcher {
	w := &Watcher{
		id: nextID(),
		fn: fn,
	}

	w.detach, _ = Shared().Attach(w)

	if o := getCurrentOwner(); o != nil {
		o.OnCleanup(w.Dispose)
	}

	w.run()
	return w
}

// WatchFlag watches a single boolean flag and calls fn with the coerced
// value on creation and again on every transition. Mutations that leave the
// coerced value unchanged do not call fn.
func WatchFlag(key string, fallback bool, fn func(enabled bool)) *Watcher {
	first := true
	var last bool

	return Watch(func() Cleanup {
		cur := BoolValue(key, fallback)
		if first || cur != last {
			first = false
			last = cur
			fn(cur)
		}
		return nil
	})
}

// MarkDirty re-runs the watcher. Implements Listener.
func (w *Watcher) MarkDirty() {
	if w.disposed.Load() {
		return
	}
	w.run()
}

// ID implements Listener.
func (w *Watcher) ID() uint64 {
	return w.id
}

func (w *Watcher) run() {
	for {
		if !w.running.CompareAndSwap(false, true) {
			// A run is in flight; defer instead of dropping so the
			// watcher converges on the latest snapshot.
			w.pending.Store(true)
			return
		}

		for {
			if w.cleanup != nil {
				w.cleanup()
				w.cleanup = nil
			}
			w.cleanup = w.fn()

			if !w.pending.Swap(false) || w.disposed.Load() {
				break
			}
		}
		w.running.Store(false)

		// A deferral can land between the pending check and the release
		// above; loop around to pick it up.
		if !w.pending.Load() || w.disposed.Load() {
			return
		}
	}
}

// Dispose detaches the watcher and runs its pending cleanup. Idempotent.
func (w *Watcher) Dispose() {
	if w.disposed.Swap(true) {
		return
	}

	if w.detach != nil {
		w.detach()
	}

	if w.cleanup != nil {
		w.cleanup()
		w.cleanup = nil
	}
}
