package flags

import "sync/atomic"

var idCounter uint64

// nextID returns a process-unique identifier.
// Used for listeners, owners, watchers, and subscriptions.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
