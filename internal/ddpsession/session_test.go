package ddpsession

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/lumenbridge/lumenbridge/internal/logx"
)

// fakeClient records every POST body and serves a fixed GET response.
type fakeClient struct {
	mu       sync.Mutex
	getBody  []byte
	posts    []map[string]any
	failGet  bool
	failPost bool
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Method == http.MethodGet {
		if f.failGet {
			return nil, errFake
		}
		return &http.Response{Body: io.NopCloser(bytes.NewReader(f.getBody))}, nil
	}
	if f.failPost {
		return nil, errFake
	}
	body, _ := io.ReadAll(req.Body)
	var m map[string]any
	_ = json.Unmarshal(body, &m)
	f.posts = append(f.posts, m)
	return &http.Response{Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

var errFake = fakeErr("fake transport failure")

func newTestManager(c *fakeClient) *Manager {
	return NewManager(c, logx.New(io.Discard, logx.LevelDebug))
}

// P9 — restore POST carries live=false and the prior snapshot's fields.
func TestActivateDeactivateRestoresSnapshot(t *testing.T) {
	prior := map[string]any{"on": true, "bri": 120, "seg": []any{map[string]any{"fx": 9, "col": []any{[]any{255.0, 0.0, 0.0}}}}}
	priorJSON, _ := json.Marshal(prior)

	c := &fakeClient{getBody: priorJSON}
	m := newTestManager(c)

	m.Activate("10.0.0.5:80")
	m.Deactivate("10.0.0.5:80")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts) != 2 {
		t.Fatalf("expected 2 POSTs (arm + restore), got %d", len(c.posts))
	}
	restore := c.posts[1]
	if restore["live"] != false {
		t.Fatalf("expected restore POST live=false, got %v", restore["live"])
	}
	if restore["bri"] != 120.0 {
		t.Fatalf("expected restored bri=120 from prior snapshot, got %v", restore["bri"])
	}
}

func TestDeactivateWithoutSnapshotFallsBackMinimal(t *testing.T) {
	c := &fakeClient{failGet: true}
	m := newTestManager(c)

	m.Activate("10.0.0.9:80")
	m.Deactivate("10.0.0.9:80")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts) == 0 {
		t.Fatal("expected at least one POST")
	}
	last := c.posts[len(c.posts)-1]
	if last["live"] != false || last["on"] != true {
		t.Fatalf("expected minimal disable payload, got %v", last)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	c := &fakeClient{getBody: []byte(`{"on":true}`)}
	m := newTestManager(c)

	m.Activate("10.0.0.2:80")
	m.Deactivate("10.0.0.2:80")
	firstCount := len(c.posts)
	m.Deactivate("10.0.0.2:80")

	if len(c.posts) != firstCount {
		t.Fatalf("expected no additional POST on repeat deactivate, got %d vs %d", len(c.posts), firstCount)
	}
}

func TestHousekeepingRestoresOnlyStaleAddresses(t *testing.T) {
	c := &fakeClient{getBody: []byte(`{"on":true}`)}
	m := newTestManager(c)

	m.Activate("10.0.0.1:80")
	m.Activate("10.0.0.2:80")

	m.Housekeeping(map[string]bool{"10.0.0.1:80": true})

	c.mu.Lock()
	defer c.mu.Unlock()
	// Two arm POSTs plus exactly one restore (for .2).
	if len(c.posts) != 3 {
		t.Fatalf("expected 3 POSTs total, got %d", len(c.posts))
	}
	last := c.posts[2]
	if last["live"] != false {
		t.Fatalf("expected last POST to be the restore, got %v", last)
	}
}
