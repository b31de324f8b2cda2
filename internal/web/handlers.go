package web

// handlers.go implements the JSON API. Request bodies are small structured
// specs (filter, aggregate); the only large payload is the multipart batch
// upload. Responses carry typed values rendered to strings in the same
// conventions the exporter uses.

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pjetools/triagem/internal/logging"
	"github.com/pjetools/triagem/internal/query"
	"github.com/pjetools/triagem/internal/session"
)

// maxRowsInResponse caps the rows echoed back by the filter endpoint; the
// export endpoint exists for full snapshots.
const maxRowsInResponse = 1000

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateBatch accepts a multipart upload under the "files" field and
// processes it as a new batch, replacing the current one. File order in
// the form is the batch's upload order.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	maxBytes := s.cfg.Upload.MaxFileSize * int64(s.cfg.Upload.MaxFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, fmt.Errorf("parsing multipart form: %w", err), http.StatusRequestEntityTooLarge)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, r, fmt.Errorf("no files in field %q", "files"), http.StatusBadRequest)
		return
	}
	if len(headers) > s.cfg.Upload.MaxFiles {
		s.respondError(w, r, fmt.Errorf("batch has %d files, limit is %d", len(headers), s.cfg.Upload.MaxFiles), http.StatusRequestEntityTooLarge)
		return
	}

	files := make([]session.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > s.cfg.Upload.MaxFileSize {
			s.respondError(w, r, fmt.Errorf("file %s exceeds size limit", fh.Filename), http.StatusRequestEntityTooLarge)
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("opening %s: %w", fh.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("reading %s: %w", fh.Filename, err), http.StatusBadRequest)
			return
		}
		files = append(files, session.UploadFile{Name: fh.Filename, Data: data})
	}

	summary, err := s.service.Process(r.Context(), files)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	logger.Info("batch processed",
		"batch_id", summary.ID,
		"files", len(summary.Files),
		"rows", summary.Rows,
		"issues", summary.Issues,
	)
	respondJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Current()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Issues()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// filterResponse is the filter endpoint's payload: matching row count,
// column metadata and up to maxRowsInResponse rendered rows.
type filterResponse struct {
	Total   int          `json:"total"`
	Columns []columnInfo `json:"columns"`
	Rows    []rowInfo    `json:"rows"`
}

type columnInfo struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Type    string `json:"type"`
	Derived bool   `json:"derived,omitempty"`
}

type rowInfo struct {
	File   string   `json:"file"`
	Row    int      `json:"row"`
	Values []string `json:"values"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var spec query.FilterSpec
	if err := decodeJSON(r, &spec); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	view, err := s.service.Filter(spec)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := filterResponse{Total: view.Len()}
	for _, col := range view.Table.Columns {
		resp.Columns = append(resp.Columns, columnInfo{
			Name:    col.Name,
			Display: col.Display,
			Type:    string(col.Type),
			Derived: col.Derived,
		})
	}

	n := view.Len()
	if n > maxRowsInResponse {
		n = maxRowsInResponse
	}
	for i := 0; i < n; i++ {
		rec := view.Record(i)
		values := make([]string, len(rec.Fields))
		for j, f := range rec.Fields {
			values[j] = query.Render(f)
		}
		resp.Rows = append(resp.Rows, rowInfo{
			File:   rec.Provenance.File,
			Row:    rec.Provenance.Row,
			Values: values,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// aggregateRequest combines an optional filter with the aggregation spec.
type aggregateRequest struct {
	Filter    query.FilterSpec    `json:"filter"`
	Aggregate query.AggregateSpec `json:"aggregate"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.service.Aggregate(req.Filter, req.Aggregate)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var spec query.FilterSpec
	if err := decodeJSON(r, &spec); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	data, err := s.service.Export(spec)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dados_processados.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// decodeJSON reads a JSON request body, treating an empty body as the
// zero value so "no filter" needs no payload.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
