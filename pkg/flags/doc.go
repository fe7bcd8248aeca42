// Package flags provides the reactive feature-flag core for flagstream.
//
// A single process-wide Store owns the canonical flag mapping. All mutation
// goes through the Store (Set, Delete, Replace, Clear); every mutation
// installs a fresh immutable snapshot and synchronously notifies every
// registered listener. Readers never see a snapshot change underneath them —
// only a new snapshot replaces it.
//
// # Reading flags
//
// UseExperiment is the accessor used from component render functions. It
// reads the current snapshot, coerces the raw value to the caller's requested
// type, and keeps the calling context subscribed for as long as its owner
// scope is alive:
//
//	enabled := flags.UseExperiment("checkout-v2", false)
//	limit := flags.UseExperiment("rate-limit", 100)
//
// When the fallback is a bool, the raw value goes through the boolean
// coercion policy (CoerceBool). Any other fallback type passes the raw value
// through unmodified when its shape matches, and resolves to the fallback
// when it does not.
//
// Value reads without subscribing, the way Peek relates to Get on a signal.
//
// # Observers
//
// Reading a flag during a tracked context (see WithListener and WithOwner)
// attaches the current listener to the store; the listener's MarkDirty runs
// synchronously on every mutation. Watch and WatchFlag provide the same
// subscription discipline for non-UI code such as broadcasters and archivers.
//
// # Degraded mode
//
// Noop returns a provider with an empty snapshot and inert disposers for
// hosts that disable flags entirely. Install it with SetShared.
package flags
