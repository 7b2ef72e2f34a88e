package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
	"github.com/flitsinc/go-transcript/internal/feed"
	"github.com/flitsinc/go-transcript/internal/session"
	"github.com/flitsinc/go-transcript/internal/state"
	"github.com/flitsinc/go-transcript/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *state.Store, func()) {
	t.Helper()
	db, closeFn := testutil.OpenTestDB(t)
	store := state.NewStore(db)
	server := &Server{
		Store:     store,
		Hub:       feed.NewHub(),
		Registry:  NewRegistry(store),
		StartedAt: time.Now().UTC(),
	}
	return server, store, closeFn
}

func doJSON(t *testing.T, client *http.Client, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, "http://in-process"+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSONResponse(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestIngestAndView(t *testing.T) {
	server, _, closeFn := newTestServer(t)
	defer closeFn()
	client := testutil.NewInProcessClient(server.Handler())

	base := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	msg := session.Message{
		Role:      "assistant",
		Text:      "Done reading.",
		CreatedAt: base,
		Events: []events.Event{
			{ID: "e1", Kind: events.KindCallStart, Timestamp: base, CallID: "c1", ToolName: "Read"},
			{ID: "e2", Kind: events.KindCallResult, Timestamp: base.Add(time.Second), CallID: "c1", Output: "ok"},
		},
	}

	resp := doJSON(t, client, http.MethodPost, "/api/sessions/s1/messages", msg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %d", resp.StatusCode)
	}
	var ingestView session.View
	decodeJSONResponse(t, resp, &ingestView)
	if len(ingestView.Entries) != 2 {
		t.Fatalf("expected call + message entries, got %d", len(ingestView.Entries))
	}

	resp = doJSON(t, client, http.MethodGet, "/api/sessions/s1/view", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status: %d", resp.StatusCode)
	}
	var view session.View
	decodeJSONResponse(t, resp, &view)
	if len(view.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(view.Entries))
	}
	if view.Entries[0].Call == nil || view.Entries[0].Call.Status != session.CallCompleted {
		t.Fatalf("call entry not resolved: %+v", view.Entries[0])
	}
	if len(view.ToolHistory) != 1 {
		t.Fatalf("expected 1 history call, got %d", len(view.ToolHistory))
	}
}

func TestViewFallsBackToBatchReconstruction(t *testing.T) {
	server, store, closeFn := newTestServer(t)
	defer closeFn()
	client := testutil.NewInProcessClient(server.Handler())

	// Persist history without touching the live registry, as if written by
	// an earlier process.
	ctx := context.Background()
	if _, err := store.EnsureSession(ctx, "s1", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	base := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	_, err := store.AppendMessage(ctx, "s1", session.Message{
		CreatedAt: base,
		Events: []events.Event{
			{ID: "e1", Kind: events.KindCallStart, Timestamp: base, CallID: "c9", ToolName: "Bash"},
		},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	resp := doJSON(t, client, http.MethodGet, "/api/sessions/s1/view", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status: %d", resp.StatusCode)
	}
	var view session.View
	decodeJSONResponse(t, resp, &view)
	if len(view.ToolHistory) != 1 || view.ToolHistory[0].Status != session.CallRunning {
		t.Fatalf("interrupted call should surface as running: %+v", view.ToolHistory)
	}
}

func TestLiveRehydratesPersistedHistory(t *testing.T) {
	server, store, closeFn := newTestServer(t)
	defer closeFn()
	client := testutil.NewInProcessClient(server.Handler())

	ctx := context.Background()
	if _, err := store.EnsureSession(ctx, "s1", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	base := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	_, err := store.AppendMessage(ctx, "s1", session.Message{
		CreatedAt: base,
		Events: []events.Event{
			{ID: "e1", Kind: events.KindCallStart, Timestamp: base, CallID: "c1", ToolName: "Read"},
		},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// The result arrives through the live path; it must resolve the call
	// registered in the persisted portion of the history.
	msg := session.Message{
		CreatedAt: base.Add(time.Second),
		Events: []events.Event{
			{ID: "e2", Kind: events.KindCallResult, Timestamp: base.Add(time.Second), CallID: "c1", Output: "ok"},
		},
	}
	resp := doJSON(t, client, http.MethodPost, "/api/sessions/s1/messages", msg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %d", resp.StatusCode)
	}
	var view session.View
	decodeJSONResponse(t, resp, &view)
	if len(view.ToolHistory) != 1 || view.ToolHistory[0].Status != session.CallCompleted {
		t.Fatalf("live path did not rehydrate history: %+v", view.ToolHistory)
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	server, _, closeFn := newTestServer(t)
	defer closeFn()
	client := testutil.NewInProcessClient(server.Handler())

	base := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	msg := session.Message{
		CreatedAt: base,
		Events: []events.Event{
			{ID: "e1", Kind: events.KindCallResult, Timestamp: base, CallID: "ghost", Output: "nope"},
		},
	}
	resp := doJSON(t, client, http.MethodPost, "/api/sessions/s1/messages", msg)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, "/api/sessions/s1/diagnostics", nil)
	var diags []session.Diagnostic
	decodeJSONResponse(t, resp, &diags)
	if len(diags) != 1 || diags[0].Code != session.DiagUnresolvedReference {
		t.Fatalf("expected unresolved_reference diagnostic, got %v", diags)
	}
}

func TestSessionListAndErrors(t *testing.T) {
	server, _, closeFn := newTestServer(t)
	defer closeFn()
	client := testutil.NewInProcessClient(server.Handler())

	resp := doJSON(t, client, http.MethodGet, "/api/sessions/missing/view", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPut, "/api/sessions/s1/messages", map[string]any{})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, "/api/sessions/s1/messages", session.Message{CreatedAt: time.Now().UTC()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, "/api/sessions", nil)
	var sessions []state.Session
	decodeJSONResponse(t, resp, &sessions)
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Fatalf("unexpected session list: %v", sessions)
	}
}
