package flags

// Listener is anything that can be notified when the flag mapping changes.
// This interface is implemented by watchers and by host render schedulers
// that re-invoke component functions on demand.
type Listener interface {
	// MarkDirty notifies the listener that the mapping has changed.
	// For a render scheduler, this schedules a re-render.
	// For a watcher, this re-runs the watch function.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used to deduplicate attachments across repeated reads.
	ID() uint64
}

// Cleanup is a function returned by watchers to release resources.
// It is called before the watcher re-runs and when the watcher is disposed.
type Cleanup func()
