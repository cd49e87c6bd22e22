// Package ddpsession implements the DDP sink session manager of §4.10: a
// snapshot-and-restore contract that forces a remote sink into live mode
// on activation and returns it to its prior visuals on deactivation, over
// the sink's own HTTP/JSON control endpoint.
package ddpsession

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/lumenbridge/lumenbridge/internal/lberrors"
	"github.com/lumenbridge/lumenbridge/internal/logx"
)

const rearmWindow = 5 * time.Minute

// record is the per-sink session state (§3 "sink session record").
type record struct {
	snapshot    []byte // verbatim prior-state body, nil if never captured
	armedAt     time.Time
	restoreDone bool
}

// HTTPDoer abstracts *http.Client for test substitution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager tracks one record per sink address and serializes all access
// behind a single mutex, per §5.
type Manager struct {
	mu      sync.Mutex
	records map[string]*record
	client  HTTPDoer
	log     *logx.Logger
}

func NewManager(client HTTPDoer, log *logx.Logger) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	return &Manager{records: make(map[string]*record), client: client, log: log}
}

// stateURL and liveURL follow the sink's own HTTP/JSON control surface
// (out of spec scope beyond this interface, §1); addr is "host:port" or
// a bare host, matching config.RemoteSink.Address.
func stateURL(addr string) string { return "http://" + addr + "/json/state" }
func liveURL(addr string) string  { return "http://" + addr + "/json/state" }

// Activate implements the inactive->active edge: fetch current state,
// store it verbatim, then POST a live-mode command unless the sink was
// armed within the last 5 minutes (DDP packets alone keep it alive).
func (m *Manager) Activate(addr string) {
	m.mu.Lock()
	rec, ok := m.records[addr]
	if !ok {
		rec = &record{}
		m.records[addr] = rec
	}
	needArm := !ok || time.Since(rec.armedAt) > rearmWindow
	m.mu.Unlock()

	if !needArm {
		return
	}

	body, err := m.fetch(addr)
	if err != nil {
		m.log.Warn("ddpsession: fetch state failed", "addr", addr, "err", err)
	}

	m.mu.Lock()
	rec = m.records[addr]
	if err == nil {
		rec.snapshot = body
	}
	m.mu.Unlock()

	liveCmd := map[string]any{"live": true, "on": true, "bri": 255, "seg": []any{map[string]any{"fx": -1}}}
	if err := m.post(addr, liveCmd); err != nil {
		m.log.Warn("ddpsession: arm live mode failed", "addr", addr, "err", err)
		return
	}

	m.mu.Lock()
	rec.armedAt = time.Now()
	rec.restoreDone = false
	m.mu.Unlock()
}

// Deactivate implements the active->inactive edge: re-fetch current
// state, flip live=false in the saved snapshot (parsed semantically) and
// POST the restore. Falls back to a minimal disable if no snapshot was
// ever captured.
func (m *Manager) Deactivate(addr string) {
	m.mu.Lock()
	rec, ok := m.records[addr]
	m.mu.Unlock()
	if !ok || rec.restoreDone {
		return
	}

	if _, err := m.fetch(addr); err != nil {
		m.log.Warn("ddpsession: re-fetch before restore failed", "addr", addr, "err", err)
	}

	m.mu.Lock()
	snapshot := rec.snapshot
	m.mu.Unlock()

	var payload map[string]any
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &payload); err != nil {
			payload = nil
		}
	}
	if payload == nil {
		payload = map[string]any{"live": false, "on": true}
	} else {
		payload["live"] = false
	}

	if err := m.post(addr, payload); err != nil {
		m.log.Warn("ddpsession: restore POST failed", "addr", addr, "err", err)
		return
	}

	m.mu.Lock()
	rec.restoreDone = true
	m.mu.Unlock()
}

// Housekeeping implements §4.9 step 5's periodic sweep: any tracked
// session record whose address is not present in enabledAddrs has its
// session closed and state restored.
func (m *Manager) Housekeeping(enabledAddrs map[string]bool) {
	m.mu.Lock()
	stale := make([]string, 0)
	for addr := range m.records {
		if !enabledAddrs[addr] {
			stale = append(stale, addr)
		}
	}
	m.mu.Unlock()

	for _, addr := range stale {
		m.Deactivate(addr)
	}
}

// RestoreAll forces every tracked sink back to its prior state, used on
// the global "all bindings disabled" edge and at shutdown (§5).
func (m *Manager) RestoreAll() {
	m.mu.Lock()
	addrs := make([]string, 0, len(m.records))
	for addr := range m.records {
		addrs = append(addrs, addr)
	}
	m.mu.Unlock()

	for _, addr := range addrs {
		m.Deactivate(addr)
	}
}

func (m *Manager) fetch(addr string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, stateURL(addr), nil)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrTransient, "build state request")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrTransient, "fetch sink state")
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, lberrors.Wrap(lberrors.ErrTransient, "read sink state body")
	}
	return buf.Bytes(), nil
}

func (m *Manager) post(addr string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return lberrors.Wrap(lberrors.ErrValidation, "encode live-mode payload")
	}
	req, err := http.NewRequest(http.MethodPost, liveURL(addr), bytes.NewReader(data))
	if err != nil {
		return lberrors.Wrap(lberrors.ErrTransient, "build live-mode request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return lberrors.Wrap(lberrors.ErrTransient, "post live-mode command")
	}
	resp.Body.Close()
	return nil
}
