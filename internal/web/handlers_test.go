package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pjetools/triagem/internal/config"
	"github.com/pjetools/triagem/internal/query"
	"github.com/pjetools/triagem/internal/schema"
	"github.com/pjetools/triagem/internal/session"
)

func testServer() *Server {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxFiles:      5,
			MaxConcurrent: 2,
		},
		Pipeline: config.PipelineConfig{Timezone: "UTC"},
		Logging:  config.LoggingConfig{Level: "error", Format: "text"},
	}
	svc := session.New(schema.Default(), time.UTC, cfg.Upload.MaxConcurrent)
	return NewServer(svc, cfg)
}

// multipartBody builds a multipart form with one part per file under the
// "files" field.
func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("writing part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func uploadBatch(t *testing.T, srv *Server, files map[string][]byte) session.Summary {
	t.Helper()

	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/batch status = %d, body %s", rec.Code, rec.Body)
	}

	var sum session.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	return sum
}

// ----------------------------------------------------------------------------
// Health and batch lifecycle
// ----------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	srv := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestCreateBatch(t *testing.T) {
	srv := testServer()

	sum := uploadBatch(t, srv, map[string][]byte{
		"tarefas.csv": []byte("Número do Processo;Tarefa;Dias\n0001234-56.2023.8.26.0100;Minutar sentença;10\n"),
	})

	if sum.Rows != 1 {
		t.Errorf("Rows = %d, want 1", sum.Rows)
	}
	if len(sum.Files) != 1 || sum.Files[0].Status != "processed" {
		t.Errorf("Files = %+v, want one processed file", sum.Files)
	}

	// GET /api/batch returns the same batch.
	req := httptest.NewRequest(http.MethodGet, "/api/batch", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/batch status = %d", rec.Code)
	}
	var cur session.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &cur); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if cur.ID != sum.ID {
		t.Errorf("current batch ID = %q, want %q", cur.ID, sum.ID)
	}
}

func TestCreateBatchNoFiles(t *testing.T) {
	srv := testServer()

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Code != "bad_request" {
		t.Errorf("Code = %q, want bad_request", resp.Code)
	}
}

func TestReadEndpointsBeforeBatch(t *testing.T) {
	srv := testServer()

	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/batch"},
		{http.MethodGet, "/api/batch/issues"},
		{http.MethodPost, "/api/batch/filter"},
		{http.MethodPost, "/api/batch/export"},
	} {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tt.method, tt.path, rec.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: decoding error body: %v", tt.method, tt.path, err)
		}
		if resp.Code != "no_batch" {
			t.Errorf("%s %s Code = %q, want no_batch", tt.method, tt.path, resp.Code)
		}
	}
}

// ----------------------------------------------------------------------------
// Filter / aggregate / export
// ----------------------------------------------------------------------------

func seededServer(t *testing.T) *Server {
	t.Helper()
	srv := testServer()
	uploadBatch(t, srv, map[string][]byte{
		"painel.csv": []byte("Órgão Julgador;Dias\n1ª Vara;10\n1ª Vara;50\n2ª Vara;70\n"),
	})
	return srv
}

func TestFilterEndpoint(t *testing.T) {
	srv := seededServer(t)

	spec := query.FilterSpec{Predicates: []query.Predicate{
		{Column: schema.ColDias, Min: "30"},
	}}
	body, _ := json.Marshal(spec)

	req := httptest.NewRequest(http.MethodPost, "/api/batch/filter", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp filterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Total != 2 || len(resp.Rows) != 2 {
		t.Errorf("Total = %d, Rows = %d; want 2 and 2", resp.Total, len(resp.Rows))
	}
	if len(resp.Columns) == 0 {
		t.Error("Columns empty")
	}
	for _, row := range resp.Rows {
		if row.File != "painel.csv" || row.Row == 0 {
			t.Errorf("row provenance = %+v, want painel.csv with 1-based row", row)
		}
	}
}

func TestFilterEndpointEmptyBody(t *testing.T) {
	srv := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/batch/filter", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for empty body", rec.Code)
	}
	var resp filterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, want all 3 rows", resp.Total)
	}
}

func TestFilterEndpointBadColumn(t *testing.T) {
	srv := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/batch/filter",
		strings.NewReader(`{"predicates":[{"column":"inexistente","substring":"x"}]}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	srv := seededServer(t)

	body := `{"aggregate":{"group_by":["orgao_julgador"],"metric":"dias"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/batch/aggregate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var result query.AggregateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2", len(result.Groups))
	}
	top := result.Groups[0]
	if top.Count != 2 || top.Sum == nil || *top.Sum != 60 {
		t.Errorf("top group = %+v, want count 2 sum 60", top)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := seededServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/batch/export", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dados_processados.csv") {
		t.Errorf("Content-Disposition = %q, want attachment filename", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("body missing UTF-8 BOM")
	}
}
