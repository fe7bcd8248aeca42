package flags

// UseExperiment reads the named flag from the shared provider's current
// snapshot, coerced to the caller's requested type, and keeps the calling
// context live: when called during a tracked context (see WithListener), the
// current listener is attached to the store and re-notified on every
// mutation, for as long as the current owner scope is alive.
//
// Resolution rules:
//   - An empty key returns fallback unconditionally, with no lookup.
//   - An absent key, or a stored nil, returns fallback.
//   - A bool fallback routes the raw value through CoerceBool, with
//     fallback as the resolution for ambiguous inputs.
//   - Any other fallback type passes the raw value through unchanged when
//     its shape matches the requested type (with int/float widening for
//     numbers); a mismatched shape resolves to fallback.
//
// Independent call sites never cross-contaminate: each listener holds its
// own attachment and each call re-derives from the current snapshot with the
// current key and fallback.
func UseExperiment[T any](key string, fallback T) T {
	if key == "" {
		return fallback
	}

	p := Shared()
	bindCurrent(p)
	return derive(p.Snapshot(), key, fallback)
}

// UseFlag is UseExperiment with a boolean false fallback, the common case of
// a plain on/off toggle.
func UseFlag(key string) bool {
	return UseExperiment(key, false)
}

// Value reads the named flag without subscribing, the way Peek relates to
// Get. It applies the same resolution rules as UseExperiment.
func Value[T any](key string, fallback T) T {
	if key == "" {
		return fallback
	}
	return derive(Shared().Snapshot(), key, fallback)
}

// BoolValue reads a boolean flag without subscribing.
func BoolValue(key string, fallback bool) bool {
	return Value(key, fallback)
}

// bindCurrent attaches the current listener to the provider for the lifetime
// of the current owner. Attachment is deduplicated by listener ID, so a
// component re-reading flags on every render pass holds exactly one
// registration, disposed exactly once when its owner is disposed.
func bindCurrent(p Provider) {
	l := getCurrentListener()
	if l == nil {
		return
	}

	dispose, added := p.Attach(l)
	if !added {
		return
	}

	if o := getCurrentOwner(); o != nil {
		o.OnCleanup(dispose)
	}
}

// derive resolves the raw snapshot value for key into the requested type.
func derive[T any](snap map[string]any, key string, fallback T) T {
	raw, ok := snap[key]
	if !ok || raw == nil {
		return fallback
	}

	// A bool fallback selects the coercion policy; everything else is
	// pass-through.
	if fb, ok := any(fallback).(bool); ok {
		return any(CoerceBool(raw, fb)).(T)
	}

	if v, ok := raw.(T); ok {
		return v
	}
	if v, ok := convertNumeric[T](raw); ok {
		return v
	}
	return fallback
}

// convertNumeric widens between the numeric representations external writers
// produce: JSON decoding yields float64, manual writers yield int or int64.
func convertNumeric[T any](raw any) (T, bool) {
	var zero T

	switch any(zero).(type) {
	case float64:
		switch n := raw.(type) {
		case int:
			return any(float64(n)).(T), true
		case int64:
			return any(float64(n)).(T), true
		case float32:
			return any(float64(n)).(T), true
		}
	case int:
		switch n := raw.(type) {
		case int64:
			return any(int(n)).(T), true
		case float64:
			return any(int(n)).(T), true
		case float32:
			return any(int(n)).(T), true
		}
	case int64:
		switch n := raw.(type) {
		case int:
			return any(int64(n)).(T), true
		case float64:
			return any(int64(n)).(T), true
		}
	}
	return zero, false
}
