package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/report"
)

const dividerJSON = `{
  "components": [
    {"ref": "R1", "value": "10k", "pins": [{"index": 1}, {"index": 2}]},
    {"ref": "R2", "value": "10k", "pins": [{"index": 1}, {"index": 2}]}
  ],
  "nets": [
    {"name": "MID", "pins": [{"ref": "R1", "pin": 2}, {"ref": "R2", "pin": 1}]}
  ]
}`

func newTestServer(t *testing.T) (*Server, report.Store) {
	t.Helper()
	store := report.NewMemoryStore()
	runner := pipeline.NewRunner(nil, nil, nil)
	return New(runner, store, nil), store
}

func postRun(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("ok")) {
		t.Errorf("body = %s, want ok status", rec.Body.String())
	}
}

func TestRunEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"schematic": dividerJSON,
		"oracle":    pipeline.OracleHeuristic,
		"formats":   []string{pipeline.FormatText},
	})
	rec := postRun(t, srv, string(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report == nil || resp.Report.RunID == "" {
		t.Fatal("response missing report")
	}
	if resp.Report.Components != 2 {
		t.Errorf("components = %d, want 2", resp.Report.Components)
	}
	if _, ok := resp.Artifacts[pipeline.FormatText]; !ok {
		t.Error("response missing text artifact")
	}

	// The report must be retrievable afterwards.
	saved, err := store.Get(t.Context(), resp.Report.RunID)
	if err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	if saved.RunID != resp.Report.RunID {
		t.Errorf("persisted run ID = %s, want %s", saved.RunID, resp.Report.RunID)
	}
}

func TestRunEndpointRejectsMissingSchematic(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postRun(t, srv, `{"formats": ["text"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code == "" {
		t.Error("error response missing code")
	}
}

func TestRunEndpointRejectsInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postRun(t, srv, "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRunEndpointMalformedSchematic(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"schematic": "{broken"})
	rec := postRun(t, srv, string(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestGetRun(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"schematic": dividerJSON,
		"formats":   []string{pipeline.FormatJSON},
	})
	rec := postRun(t, srv, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("run failed: %s", rec.Body.String())
	}
	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.Report.RunID, nil)
	getRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRec, req)

	if getRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", getRec.Code)
	}
	var rep report.Report
	if err := json.Unmarshal(getRec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.RunID != resp.Report.RunID {
		t.Errorf("run ID = %s, want %s", rep.RunID, resp.Report.RunID)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(map[string]any{
			"schematic": dividerJSON,
			"formats":   []string{pipeline.FormatJSON},
		})
		if rec := postRun(t, srv, string(body)); rec.Code != http.StatusOK {
			t.Fatalf("run %d failed: %s", i, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var reports []*report.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &reports); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("reports = %d, want 2", len(reports))
	}
}

func TestListRunsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
