// Package session owns the working data of the current upload batch. A
// batch is processed once through resolve → reconcile → normalize → derive
// and then held immutable; filtering, aggregation and export are read-only
// operations over it. Uploading a new batch discards the previous one
// wholesale; there is no partial update and no cross-session state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pjetools/triagem/internal/derive"
	"github.com/pjetools/triagem/internal/export"
	"github.com/pjetools/triagem/internal/ingest"
	"github.com/pjetools/triagem/internal/normalize"
	"github.com/pjetools/triagem/internal/query"
	"github.com/pjetools/triagem/internal/schema"
)

// ErrNoBatch is returned by read operations before any batch was uploaded.
var ErrNoBatch = errors.New("no batch loaded")

// UploadFile is one raw file of an upload batch, in upload order.
type UploadFile struct {
	Name string
	Data []byte
}

// FileOutcome tells the caller what happened to one uploaded file. A
// rejected file contributed no rows but never aborted the batch.
type FileOutcome struct {
	File     string           `json:"file"`
	Status   string           `json:"status"` // "processed" or "rejected"
	Rows     int              `json:"rows"`
	Reason   normalize.Reason `json:"reason,omitempty"`
	Detail   string           `json:"detail,omitempty"`
	Fallback bool             `json:"encoding_fallback,omitempty"`
}

// Batch is the session's working data for one upload.
type Batch struct {
	ID        string
	CreatedAt time.Time
	Table     *normalize.Table
	Issues    *normalize.IssueReport
	Outcomes  []FileOutcome
}

// Summary is the JSON-facing digest of a processed batch.
type Summary struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Files     []FileOutcome `json:"files"`
	Rows      int           `json:"rows"`
	Columns   int           `json:"columns"`
	Issues    int           `json:"issues"`
}

// Service processes batches and serves queries over the current one.
type Service struct {
	schema        *schema.Schema
	loc           *time.Location
	maxConcurrent int

	mu    sync.RWMutex
	batch *Batch
}

// New creates a Service. maxConcurrent bounds the per-file decode fan-out;
// loc is the location used as "today" for elapsed-day derivation.
func New(s *schema.Schema, loc *time.Location, maxConcurrent int) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{schema: s, loc: loc, maxConcurrent: maxConcurrent}
}

// Process runs the full pipeline over an upload batch and replaces the
// current batch with the result. Files are decoded in parallel but merged
// strictly in upload order, so results are deterministic regardless of
// completion order. Per-file failures reject that file only.
func (s *Service) Process(ctx context.Context, files []UploadFile) (*Summary, error) {
	if len(files) == 0 {
		return nil, errors.New("no files in batch")
	}

	report := &normalize.IssueReport{}

	resolved, uploadIdx, outcomes := s.resolveAll(ctx, files, report)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	// Outcomes are keyed by upload position, not file name; a batch may
	// contain several files with the same name.
	unified, rejected := schema.Reconcile(resolved, s.schema)
	reconRejected := make(map[int]bool, len(rejected))
	for _, fe := range rejected {
		reconRejected[fe.Index] = true
		out := &outcomes[uploadIdx[fe.Index]]
		out.Status = "rejected"
		out.Reason = normalize.ReasonAmbiguousColumns
		out.Detail = fe.Err.Error()
		report.AddFile(fe.File, normalize.ReasonAmbiguousColumns, fe.Err.Error())
	}
	for i, ft := range resolved {
		if !reconRejected[i] {
			outcomes[uploadIdx[i]].Rows = len(ft.Rows)
		}
	}

	table := normalize.Run(unified, s.schema, report)
	derive.Run(table, s.schema, time.Now().In(s.loc), report)

	batch := &Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().In(s.loc),
		Table:     table,
		Issues:    report,
		Outcomes:  outcomes,
	}

	s.mu.Lock()
	s.batch = batch
	s.mu.Unlock()

	return s.summarize(batch), nil
}

// resolveAll decodes every file, fanning out up to maxConcurrent workers.
// The results slice is indexed by upload position; merge order never
// depends on completion order. The second return maps each resolved
// table back to its upload position.
func (s *Service) resolveAll(ctx context.Context, files []UploadFile, report *normalize.IssueReport) ([]*ingest.FileTable, []int, []FileOutcome) {
	type result struct {
		table *ingest.FileTable
		err   error
	}
	results := make([]result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = result{err: err}
				return err
			}
			ft, err := ingest.Resolve(f.Name, f.Data)
			results[i] = result{table: ft, err: err}
			return nil
		})
	}
	// Per-file errors are outcomes, not group errors; the only group
	// error is cancellation, which the caller checks via ctx.
	_ = g.Wait()

	var resolved []*ingest.FileTable
	var uploadIdx []int
	outcomes := make([]FileOutcome, len(files))
	for i, f := range files {
		outcomes[i] = FileOutcome{File: f.Name, Status: "processed"}

		r := results[i]
		if r.err != nil {
			reason := resolveReason(r.err)
			outcomes[i].Status = "rejected"
			outcomes[i].Reason = reason
			outcomes[i].Detail = r.err.Error()
			report.AddFile(f.Name, reason, r.err.Error())
			continue
		}

		if r.table.EncodingFallback {
			outcomes[i].Fallback = true
			report.AddFile(f.Name, normalize.ReasonEncodingFallback, "decoded as Latin-1")
		}
		resolved = append(resolved, r.table)
		uploadIdx = append(uploadIdx, i)
	}

	return resolved, uploadIdx, outcomes
}

// resolveReason maps a resolver error to its issue code.
func resolveReason(err error) normalize.Reason {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedDelimiter):
		return normalize.ReasonUnsupportedDelimiter
	case errors.Is(err, ingest.ErrEmptyFile):
		return normalize.ReasonEmptyFile
	case errors.Is(err, ingest.ErrUnreadableWorkbook):
		return normalize.ReasonUnreadableWorkbook
	default:
		return normalize.ReasonUnreadableFile
	}
}

func (s *Service) summarize(b *Batch) *Summary {
	return &Summary{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Files:     b.Outcomes,
		Rows:      len(b.Table.Records),
		Columns:   len(b.Table.Columns),
		Issues:    b.Issues.Len(),
	}
}

// Current returns the summary of the loaded batch.
func (s *Service) Current() (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil, ErrNoBatch
	}
	return s.summarize(s.batch), nil
}

// Issues returns the issue report of the loaded batch.
func (s *Service) Issues() (*normalize.IssueReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil, ErrNoBatch
	}
	return s.batch.Issues, nil
}

// Filter applies a filter spec and returns the matching view. The batch
// table is immutable once published, so the view stays valid after the
// lock is released; a concurrent Process simply swaps in a new table
// without touching this one.
func (s *Service) Filter(spec query.FilterSpec) (query.View, error) {
	s.mu.RLock()
	batch := s.batch
	s.mu.RUnlock()
	if batch == nil {
		return query.View{}, ErrNoBatch
	}
	return query.Filter(query.All(batch.Table), spec)
}

// Aggregate filters and then aggregates in one call.
func (s *Service) Aggregate(filter query.FilterSpec, agg query.AggregateSpec) (*query.AggregateResult, error) {
	view, err := s.Filter(filter)
	if err != nil {
		return nil, err
	}
	return query.Aggregate(view, agg)
}

// Export renders the filtered view as a CSV snapshot.
func (s *Service) Export(filter query.FilterSpec) ([]byte, error) {
	view, err := s.Filter(filter)
	if err != nil {
		return nil, err
	}
	return export.CSV(view)
}
