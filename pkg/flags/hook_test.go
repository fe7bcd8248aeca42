package flags

import "testing"

func TestUseExperimentEmptyKeyReturnsFallback(t *testing.T) {
	s := NewStore(map[string]any{"": true, "real": true})
	installStore(t, s)

	if UseExperiment("", true) != true {
		t.Error("empty key should return fallback")
	}
	if UseExperiment("", 42) != 42 {
		t.Error("empty key should return fallback for any type")
	}

	// No lookup, no subscription.
	l := newTestListener()
	WithListener(l, func() {
		_ = UseExperiment("", false)
	})
	s.Set("real", false)
	if l.getDirtyCount() != 0 {
		t.Errorf("empty key read must not subscribe, got %d notifications", l.getDirtyCount())
	}
}

func TestUseExperimentAbsentKeyReturnsFallback(t *testing.T) {
	installStore(t, NewStore(nil))

	if UseExperiment("missing", true) != true {
		t.Error("absent key should return bool fallback")
	}
	if UseExperiment("missing", "default") != "default" {
		t.Error("absent key should return string fallback")
	}
	if UseExperiment("missing", 10) != 10 {
		t.Error("absent key should return int fallback")
	}
}

func TestUseExperimentNilValueReturnsFallback(t *testing.T) {
	installStore(t, NewStore(map[string]any{"ghost": nil}))

	if UseExperiment("ghost", true) != true {
		t.Error("nil value should return fallback")
	}
	if UseExperiment("ghost", "d") != "d" {
		t.Error("nil value should return fallback for pass-through types")
	}
}

func TestUseExperimentBoolCoercion(t *testing.T) {
	installStore(t, NewStore(map[string]any{
		"s-yes": "yes",
		"s-off": "off",
		"n-one": 1,
	}))

	if !UseExperiment("s-yes", false) {
		t.Error(`"yes" should coerce to true`)
	}
	if UseExperiment("s-off", true) {
		t.Error(`"off" should coerce to false`)
	}
	if !UseExperiment("n-one", false) {
		t.Error("1 should coerce to true")
	}
}

func TestUseFlagDefaultsToFalse(t *testing.T) {
	installStore(t, NewStore(map[string]any{"on": "on"}))

	if UseFlag("nope") {
		t.Error("absent flag should default to false")
	}
	if !UseFlag("on") {
		t.Error(`"on" should coerce to true`)
	}
}

func TestUseExperimentPassThroughTypes(t *testing.T) {
	installStore(t, NewStore(map[string]any{
		"variant": "blue",
		"limit":   25,
		"ratio":   0.5,
	}))

	// Non-boolean fallbacks take the raw value unmodified, no coercion.
	if got := UseExperiment("variant", "red"); got != "blue" {
		t.Errorf("expected raw string pass-through, got %q", got)
	}
	if got := UseExperiment("limit", 100); got != 25 {
		t.Errorf("expected raw int pass-through, got %d", got)
	}
	if got := UseExperiment("ratio", 1.0); got != 0.5 {
		t.Errorf("expected raw float pass-through, got %v", got)
	}
}

func TestUseExperimentNumericWidening(t *testing.T) {
	// External writers over HTTP produce float64; manual writers produce
	// int. Both shapes satisfy either numeric request.
	installStore(t, NewStore(map[string]any{
		"json-number": float64(30),
		"go-number":   int(7),
	}))

	if got := UseExperiment("json-number", 10); got != 30 {
		t.Errorf("float64 raw should satisfy int request, got %d", got)
	}
	if got := UseExperiment("go-number", 1.0); got != 7.0 {
		t.Errorf("int raw should satisfy float64 request, got %v", got)
	}
}

func TestUseExperimentShapeMismatchFallsBack(t *testing.T) {
	installStore(t, NewStore(map[string]any{"variant": map[string]any{"deep": true}}))

	if got := UseExperiment("variant", "red"); got != "red" {
		t.Errorf("mismatched shape should resolve to fallback, got %q", got)
	}
}

func TestUseExperimentSubscribesCurrentListener(t *testing.T) {
	s := NewStore(map[string]any{"f": "yes"})
	installStore(t, s)

	l := newTestListener()
	WithListener(l, func() {
		if !UseExperiment("f", false) {
			t.Error("expected true on first read")
		}
	})

	s.Set("f", "off")
	if l.getDirtyCount() != 1 {
		t.Fatalf("expected 1 notification after mutation, got %d", l.getDirtyCount())
	}

	// Recompute from the current snapshot, as a re-rendering host would.
	var got bool
	WithListener(l, func() {
		got = UseExperiment("f", false)
	})
	if got {
		t.Error(`expected false after mutation to "off"`)
	}
}

func TestUseExperimentRepeatedReadsHoldOneAttachment(t *testing.T) {
	s := NewStore(nil)
	installStore(t, s)

	l := newTestListener()
	for i := 0; i < 5; i++ {
		WithListener(l, func() {
			_ = UseExperiment("f", false)
			_ = UseExperiment("g", false)
		})
	}

	s.Set("f", true)
	if l.getDirtyCount() != 1 {
		t.Errorf("repeated reads should hold one attachment, got %d notifications", l.getDirtyCount())
	}
}

func TestTwoAccessorsObserveSameTransitions(t *testing.T) {
	s := NewStore(map[string]any{"shared": "no"})
	installStore(t, s)

	read := func(l Listener) bool {
		var v bool
		WithListener(l, func() {
			v = UseExperiment("shared", false)
		})
		return v
	}

	l1 := newTestListener()
	l2 := newTestListener()

	if read(l1) || read(l2) {
		t.Fatal("both accessors should start false")
	}

	s.Set("shared", "yes")
	if l1.getDirtyCount() != 1 || l2.getDirtyCount() != 1 {
		t.Fatalf("both accessors should be notified, got %d and %d",
			l1.getDirtyCount(), l2.getDirtyCount())
	}
	if !read(l1) || !read(l2) {
		t.Error("both accessors should observe the same transition")
	}
}

func TestDisposedAccessorDoesNotFire(t *testing.T) {
	s := NewStore(nil)
	installStore(t, s)

	owner := NewOwner(nil)
	l := newTestListener()

	WithOwner(owner, func() {
		WithListener(l, func() {
			_ = UseExperiment("f", false)
		})
	})

	owner.Dispose()

	s.Set("f", true)
	if l.getDirtyCount() != 0 {
		t.Errorf("disposed accessor must not be notified, got %d", l.getDirtyCount())
	}
}

func TestDeleteFallsBackOnNextRead(t *testing.T) {
	s := NewStore(map[string]any{"f": "yes"})
	installStore(t, s)

	if !UseExperiment("f", false) {
		t.Fatal("expected true before delete")
	}

	s.Delete("f")
	if UseExperiment("f", false) {
		t.Error("deleted key should fall back to the declared default")
	}
}

func TestFlagLifecycleScenario(t *testing.T) {
	// mapping = {testFlag: "yes"} → true; mutate to "off" → false;
	// delete → fallback.
	s := NewStore(map[string]any{"testFlag": "yes"})
	installStore(t, s)

	if !UseExperiment("testFlag", false) {
		t.Fatal(`read("testFlag", false) should be true for "yes"`)
	}

	s.Set("testFlag", "off")
	if UseExperiment("testFlag", false) {
		t.Fatal(`read should be false after mutation to "off"`)
	}

	s.Delete("testFlag")
	if UseExperiment("testFlag", false) {
		t.Fatal("read should fall back to false after delete")
	}
}

func TestReadBeforeStoreExistsCreatesEmptyMapping(t *testing.T) {
	installStore(t, nil)

	if got := UseExperiment("anything", 10); got != 10 {
		t.Fatalf("expected fallback 10, got %d", got)
	}

	// First access brings the mapping into existence, empty.
	s := SharedStore()
	if s == nil {
		t.Fatal("shared store should exist after first read")
	}
	if s.Len() != 0 {
		t.Errorf("shared store should be empty, got %d entries", s.Len())
	}
}

func TestValueDoesNotSubscribe(t *testing.T) {
	s := NewStore(map[string]any{"f": "on"})
	installStore(t, s)

	l := newTestListener()
	WithListener(l, func() {
		if !Value("f", false) {
			t.Error("expected true")
		}
	})

	s.Set("f", "off")
	if l.getDirtyCount() != 0 {
		t.Errorf("Value must not subscribe, got %d notifications", l.getDirtyCount())
	}
}

func TestUseExperimentWithNoopProvider(t *testing.T) {
	installStore(t, Noop())

	if UseExperiment("anything", true) != true {
		t.Error("noop provider should resolve every read to fallback")
	}

	l := newTestListener()
	WithListener(l, func() {
		_ = UseExperiment("anything", false)
	})
	// Nothing to mutate, nothing fires, nothing panics.
	if l.getDirtyCount() != 0 {
		t.Errorf("noop provider must never notify, got %d", l.getDirtyCount())
	}
}
