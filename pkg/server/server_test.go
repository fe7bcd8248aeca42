package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flagstream-dev/flagstream/pkg/flags"
)

func newTestServer(t *testing.T, initial map[string]any) (*Server, *httptest.Server) {
	t.Helper()

	srv := New(flags.NewStore(initial), DefaultConfig(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListFlags(t *testing.T) {
	_, ts := newTestServer(t, map[string]any{"a": true, "b": "yes"})

	resp, err := http.Get(ts.URL + "/flags")
	if err != nil {
		t.Fatal(err)
	}

	var body snapshotBody
	decodeBody(t, resp, &body)

	if body.Version != 0 {
		t.Errorf("expected version 0, got %d", body.Version)
	}
	if len(body.Flags) != 2 {
		t.Errorf("expected 2 flags, got %d", len(body.Flags))
	}
	if body.Flags["b"] != "yes" {
		t.Errorf("expected b=yes, got %v", body.Flags["b"])
	}
}

func TestGetFlag(t *testing.T) {
	_, ts := newTestServer(t, map[string]any{"a": "on"})

	resp, err := http.Get(ts.URL + "/flags/a")
	if err != nil {
		t.Fatal(err)
	}

	var body flagBody
	decodeBody(t, resp, &body)
	if body.Key != "a" || body.Value != "on" {
		t.Errorf("unexpected flag body: %+v", body)
	}
}

func TestGetMissingFlagIs404(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/flags/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPutFlagMutatesStore(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/flags/checkout-v2",
		strings.NewReader(`{"value": "yes"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if v, ok := srv.Store().Get("checkout-v2"); !ok || v != "yes" {
		t.Errorf("store should hold the new value, got %v (%v)", v, ok)
	}
	if srv.Store().Version() != 1 {
		t.Errorf("expected version 1, got %d", srv.Store().Version())
	}
}

func TestPutFlagInvalidBody(t *testing.T) {
	_, ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/flags/x",
		strings.NewReader(`{not json`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDeleteFlag(t *testing.T) {
	srv, ts := newTestServer(t, map[string]any{"a": true})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/flags/a", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if _, ok := srv.Store().Get("a"); ok {
		t.Error("flag should be deleted from the store")
	}
}

func TestReplaceFlags(t *testing.T) {
	srv, ts := newTestServer(t, map[string]any{"old": 1})

	resp, err := http.Post(ts.URL+"/flags", "application/json",
		bytes.NewReader([]byte(`{"fresh": "on", "limit": 10}`)))
	if err != nil {
		t.Fatal(err)
	}

	var body snapshotBody
	decodeBody(t, resp, &body)

	if _, ok := body.Flags["old"]; ok {
		t.Error("replace should drop previous flags")
	}
	if srv.Store().Len() != 2 {
		t.Errorf("expected 2 flags after replace, got %d", srv.Store().Len())
	}
}

func TestLiveFeedSnapshotThenChanges(t *testing.T) {
	srv, ts := newTestServer(t, map[string]any{"f": "no"})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent := func() snapshotBody {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev snapshotBody
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return ev
	}

	ev := readEvent()
	if ev.Type != "snapshot" {
		t.Fatalf("first event should be a snapshot, got %q", ev.Type)
	}
	if ev.Flags["f"] != "no" {
		t.Errorf("snapshot should carry current state, got %v", ev.Flags["f"])
	}

	srv.Store().Set("f", "yes")

	ev = readEvent()
	if ev.Type != "change" {
		t.Fatalf("expected change event, got %q", ev.Type)
	}
	if ev.Version != 1 {
		t.Errorf("expected version 1, got %d", ev.Version)
	}
	if ev.Flags["f"] != "yes" {
		t.Errorf("change event should carry the new state, got %v", ev.Flags["f"])
	}
}

func TestLiveFeedDisposedOnDisconnect(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// Give the read loop a moment to observe the close and dispose the
	// store subscription; a mutation afterwards must not panic.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		srv.Store().Set("k", time.Now().UnixNano())
	}
}
