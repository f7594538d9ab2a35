package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"stratline/internal/config"
	"stratline/internal/db"
	"stratline/internal/domain"
	"stratline/internal/engine"
	"stratline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("ws-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC) }
	if _, err := e.InitWorkspace(context.Background(), "ws-1", "Test", domain.RhythmQuarters, nil, "tester"); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createNarrative(t *testing.T, srv *testServer, body map[string]any) NarrativeResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/workspaces/ws-1/narratives", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create narrative status %d: %s", res.StatusCode, string(data))
	}
	var n NarrativeResponse
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("unmarshal narrative: %v", err)
	}
	return n
}

func TestAlignmentEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/alignment", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alignment status %d: %s", res.StatusCode, string(data))
	}
	var rep struct {
		Score int `json:"score"`
		Gaps  []struct {
			Type     string `json:"type"`
			Severity string `json:"severity"`
		} `json:"gaps"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Score != 100 || len(rep.Gaps) != 0 {
		t.Fatalf("expected clean report, got %s", string(data))
	}

	createNarrative(t, srv, map[string]any{"title": "No commitments yet"})
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/alignment", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alignment status %d", res.StatusCode)
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Score != 93 || len(rep.Gaps) != 2 {
		t.Fatalf("expected 93 with 2 gaps, got %s", string(data))
	}
	if rep.Gaps[0].Type != "narrative_no_commitments" || rep.Gaps[1].Type != "narrative_no_pillar" {
		t.Fatalf("unexpected gap order: %s", string(data))
	}
}

func TestHealthReportEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	n := createNarrative(t, srv, map[string]any{"title": "Exec", "status": "at_risk"})
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/narratives/"+n.ID+"/commitments", map[string]any{
		"title":  "Commit",
		"status": "active",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create commitment: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	var h struct {
		Score  int      `json:"score"`
		Status string   `json:"status"`
		Issues []string `json:"issues"`
	}
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatal(err)
	}
	// one at-risk narrative costs 10
	if h.Score != 90 || h.Status != "healthy" {
		t.Fatalf("unexpected health %s", string(data))
	}
	if len(h.Issues) == 0 || h.Issues[0] != "1 narrative is at risk" {
		t.Fatalf("unexpected issues %v", h.Issues)
	}
}

func TestCycleLifecycleEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workspaces/ws-1/years", map[string]any{"year": 2025}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create year: %d %s", res.StatusCode, string(data))
	}
	var year YearResponse
	_ = json.Unmarshal(data, &year)

	// defaults before any cycle exists: Q2 (mid-May clock)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/cycles/defaults", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("defaults: %d %s", res.StatusCode, string(data))
	}
	var defaults struct {
		Name      string `json:"name"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	_ = json.Unmarshal(data, &defaults)
	if defaults.Name != "Q2 2025" {
		t.Fatalf("expected Q2 2025 suggestion, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workspaces/ws-1/cycles", map[string]any{
		"year_id":    year.ID,
		"name":       defaults.Name,
		"start_date": defaults.StartDate,
		"end_date":   defaults.EndDate,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create cycle: %d %s", res.StatusCode, string(data))
	}
	var cycle CycleResponse
	_ = json.Unmarshal(data, &cycle)
	if cycle.Status != "planning" {
		t.Fatalf("expected planning default, got %s", cycle.Status)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/workspaces/ws-1/cycles/"+cycle.ID+"/status", map[string]any{"status": "active"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activate: %d %s", res.StatusCode, string(data))
	}

	// invalid transition surfaces as conflict
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/workspaces/ws-1/cycles/"+cycle.ID+"/status", map[string]any{"status": "planning"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/cycles/"+cycle.ID+"/progress", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress: %d %s", res.StatusCode, string(data))
	}
	var progress struct {
		Progress struct {
			InsideWindow bool `json:"inside_window"`
			TotalWeeks   int  `json:"total_weeks"`
		} `json:"progress"`
	}
	_ = json.Unmarshal(data, &progress)
	if !progress.Progress.InsideWindow || progress.Progress.TotalWeeks != 13 {
		t.Fatalf("unexpected progress %s", string(data))
	}
}

func TestTreeEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	n := createNarrative(t, srv, map[string]any{"title": "Floating"})
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/ws-1/tree", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tree: %d %s", res.StatusCode, string(data))
	}
	var tree struct {
		Years         []json.RawMessage `json:"years"`
		Uncategorized []struct {
			ID string `json:"id"`
		} `json:"uncategorized"`
	}
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatal(err)
	}
	if len(tree.Uncategorized) != 1 || tree.Uncategorized[0].ID != n.ID {
		t.Fatalf("expected narrative uncategorized: %s", string(data))
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/workspaces/nope/alignment", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("unexpected envelope %s", string(data))
	}

	// body-less create is rejected before reaching the engine
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workspaces/ws-1/teams", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestNarrativeLinkClearViaNull(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/workspaces/ws-1/teams", map[string]any{"name": "Core"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create team: %d %s", res.StatusCode, string(data))
	}
	var team TeamResponse
	_ = json.Unmarshal(data, &team)

	n := createNarrative(t, srv, map[string]any{"title": "Linked", "team_id": team.ID})
	if n.TeamID == nil {
		t.Fatalf("expected team link")
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/narratives/"+n.ID, map[string]any{"team_id": nil}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch: %d %s", res.StatusCode, string(data))
	}
	var updated NarrativeResponse
	_ = json.Unmarshal(data, &updated)
	if updated.TeamID != nil {
		t.Fatalf("expected link cleared, got %s", string(data))
	}
}

func TestOpenAPIAndDocs(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	var oas struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &oas); err != nil {
		t.Fatal(err)
	}
	if _, ok := oas.Paths["/v0/workspaces/{workspace_id}/alignment"]; !ok {
		t.Fatalf("alignment path missing from spec")
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("docs: %d", res.StatusCode)
	}
}
