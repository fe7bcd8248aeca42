package flags

import "sync"

// Provider is the read side of a flag store: a point-in-time snapshot, a
// monotonic version, and change subscription. The shared provider is looked
// up via Shared, never injected.
type Provider interface {
	// Snapshot returns the current cached snapshot. O(1), side-effect
	// free. The returned map must be treated as read-only; it is shared
	// between all readers and is superseded, never mutated, on change.
	Snapshot() map[string]any

	// Version returns the mutation counter. It increases by one per
	// observed mutation and starts at 0 for a fresh store.
	Version() uint64

	// Subscribe adds fn to the active listener set and returns a
	// disposer. Registrations are independent: subscribing the same
	// function twice yields two registrations, each with its own
	// disposer. Disposers are idempotent and never panic, even after
	// the provider has been replaced.
	Subscribe(fn func()) (dispose func())

	// Attach subscribes a Listener, deduplicated by ID. added reports
	// whether this call created the attachment; repeated reads from the
	// same listener reuse the existing one. The disposer is idempotent.
	Attach(l Listener) (dispose func(), added bool)
}

// Hooks receive store lifecycle events. The metrics layer installs these;
// all fields are optional.
type Hooks struct {
	// OnMutation runs after a mutation is applied, before notification.
	// op is one of "set", "delete", "replace", "clear".
	OnMutation func(op string)

	// OnNotify runs after a notification pass with the number of
	// listeners invoked.
	OnNotify func(listeners int)

	// OnListenerPanic runs when a listener panics during notification.
	OnListenerPanic func(recovered any)
}

// Store is the single source of truth for the flag mapping and the single
// place where mutation is observed. External writers (the flag service, the
// CLI, manual scripts) mutate through Set, Delete, Replace, and Clear; every
// mutation installs a fresh snapshot and synchronously notifies listeners.
type Store struct {
	mu sync.RWMutex

	// flags is the canonical mutable mapping. Owned exclusively by the
	// store; never escapes.
	flags map[string]any

	// snapshot is the cached shallow copy installed by the last
	// mutation. Shared with readers, superseded on change.
	snapshot map[string]any

	// version counts observed mutations.
	version uint64

	subMu     sync.Mutex
	subs      map[uint64]func()
	listeners map[uint64]Listener

	hooks Hooks
}

// NewStore creates a store around an existing mapping, taking ownership of
// it. A nil initial creates an empty mapping. The initial snapshot is a
// point-in-time copy of the mapping's current contents.
func NewStore(initial map[string]any) *Store {
	if initial == nil {
		initial = make(map[string]any)
	}

	s := &Store{
		flags:     initial,
		subs:      make(map[uint64]func()),
		listeners: make(map[uint64]Listener),
	}
	s.snapshot = copyMapping(initial)
	return s
}

func copyMapping(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot returns the current cached snapshot. Read-only by contract.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of flags in the current snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot)
}

// Get returns the raw value for key from the current snapshot.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.snapshot[key]
	return v, ok
}

// Set stores a raw value for key and notifies listeners.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.flags[key] = value
	s.refreshLocked()
	s.mu.Unlock()

	s.mutated("set")
}

// Delete removes key from the mapping and notifies listeners.
// Deleting an absent key still counts as an observed mutation, matching
// delete semantics on the underlying mapping.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.flags, key)
	s.refreshLocked()
	s.mu.Unlock()

	s.mutated("delete")
}

// Replace swaps the entire mapping wholesale and notifies listeners.
// The store takes ownership of the given map; nil replaces with empty.
func (s *Store) Replace(mapping map[string]any) {
	if mapping == nil {
		mapping = make(map[string]any)
	}

	s.mu.Lock()
	s.flags = mapping
	s.refreshLocked()
	s.mu.Unlock()

	s.mutated("replace")
}

// Clear removes every flag and notifies listeners.
func (s *Store) Clear() {
	s.mu.Lock()
	s.flags = make(map[string]any)
	s.refreshLocked()
	s.mu.Unlock()

	s.mutated("clear")
}

// SetHooks installs lifecycle hooks. Pass the zero value to remove them.
func (s *Store) SetHooks(h Hooks) {
	s.subMu.Lock()
	s.hooks = h
	s.subMu.Unlock()
}

// refreshLocked installs a fresh snapshot and bumps the version.
// Caller holds s.mu.
func (s *Store) refreshLocked() {
	s.snapshot = copyMapping(s.flags)
	s.version++
}

func (s *Store) mutated(op string) {
	s.subMu.Lock()
	hooks := s.hooks
	s.subMu.Unlock()

	if hooks.OnMutation != nil {
		hooks.OnMutation(op)
	}
	s.notify(hooks)
}

// notify invokes every registered listener synchronously, in arbitrary
// order, with no arguments. The listener set is copied before invocation so
// listeners may subscribe or dispose during notification. A panicking
// listener is isolated and does not suppress delivery to the others.
func (s *Store) notify(hooks Hooks) {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs)+len(s.listeners))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	for _, l := range s.listeners {
		fns = append(fns, l.MarkDirty)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		s.invoke(fn, hooks)
	}

	if hooks.OnNotify != nil {
		hooks.OnNotify(len(fns))
	}
}

func (s *Store) invoke(fn func(), hooks Hooks) {
	defer func() {
		if r := recover(); r != nil {
			if hooks.OnListenerPanic != nil {
				hooks.OnListenerPanic(r)
			}
		}
	}()
	fn()
}

// Subscribe implements Provider.
func (s *Store) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	id := nextID()

	s.subMu.Lock()
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Attach implements Provider. Attachments are deduplicated by listener ID so
// repeated reads during successive render passes reuse one registration.
func (s *Store) Attach(l Listener) (func(), bool) {
	if l == nil {
		return func() {}, false
	}

	id := l.ID()

	s.subMu.Lock()
	_, exists := s.listeners[id]
	if !exists {
		s.listeners[id] = l
	}
	s.subMu.Unlock()

	dispose := func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
	return dispose, !exists
}

// =============================================================================
// Shared store
// =============================================================================

var (
	sharedMu sync.Mutex
	shared   Provider
)

// Shared returns the process-wide provider, creating an empty Store exactly
// once on first access. It is discoverable from anywhere in the process
// without wiring; the store lives for the remainder of the process.
func Shared() Provider {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		shared = NewStore(nil)
	}
	return shared
}

// SharedStore returns the shared provider as a mutable *Store, or nil when a
// non-store provider (such as Noop) is installed.
func SharedStore() *Store {
	if s, ok := Shared().(*Store); ok {
		return s
	}
	return nil
}

// SetShared installs a provider as the process-wide one and returns the
// previous provider. Passing nil resets to lazy creation on next access.
// Intended for hosts (installing Noop when flags are disabled) and tests;
// application code reads through Shared and never replaces it.
func SetShared(p Provider) Provider {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	prev := shared
	shared = p
	return prev
}

// =============================================================================
// No-op provider
// =============================================================================

// noopProvider is the degraded-mode store: empty snapshot, inert disposers,
// no notifications, never panics.
type noopProvider struct{}

func (noopProvider) Snapshot() map[string]any { return map[string]any{} }

func (noopProvider) Version() uint64 { return 0 }

func (noopProvider) Subscribe(func()) func() { return func() {} }

func (noopProvider) Attach(Listener) (func(), bool) { return func() {}, false }

// Noop returns a provider for hosts without flag support. Every read resolves
// to its fallback and nothing ever fires.
func Noop() Provider {
	return noopProvider{}
}
