package schema

// reconcile.go merges per-file row tables into one UnifiedTable. The
// column set is the union of every file's canonical columns in first-seen
// order across files in upload order. Rows from a file that lacks a column
// carry an explicit absent cell there, distinct from a blank cell, which
// means the column existed but the field was empty.

import (
	"errors"
	"fmt"

	"github.com/pjetools/triagem/internal/ingest"
)

// ErrAmbiguousColumnMapping marks a file whose headers collide: two
// distinct source headers folded to the same canonical column. The file is
// rejected as a whole because there is no deterministic way to pick which
// column a cell belongs to.
var ErrAmbiguousColumnMapping = errors.New("ambiguous column mapping")

// Provenance identifies where a merged row came from: the source file name
// and the 1-based data row index within that file (header excluded).
type Provenance struct {
	File string `json:"file"`
	Row  int    `json:"row"`
}

func (p Provenance) String() string {
	return fmt.Sprintf("%s:%d", p.File, p.Row)
}

// Column is one canonical column of the unified table. Display is the
// source header as first seen, kept for export and UI labels.
type Column struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// Cell is one raw field of a merged row. Present is false when the source
// file did not have this column at all.
type Cell struct {
	Raw     string
	Present bool
}

// RawRecord is one merged row: provenance plus cells aligned with the
// unified column set. Immutable once built.
type RawRecord struct {
	Provenance Provenance
	Cells      []Cell
}

// UnifiedTable is the merged raw table for one upload batch.
type UnifiedTable struct {
	Columns []Column
	Records []RawRecord
}

// FileError is a file-level rejection produced during reconciliation.
// Index is the file's position in the slice given to Reconcile; uploads
// may legitimately repeat a file name, so the index is the identity.
type FileError struct {
	Index int
	File  string
	Err   error
}

// Reconcile merges the given file tables in order. Files with header
// collisions are reported in the second return and contribute nothing;
// the remaining files are merged normally, so one bad file never aborts
// the batch.
func Reconcile(files []*ingest.FileTable, s *Schema) (*UnifiedTable, []FileError) {
	table := &UnifiedTable{}
	colIndex := make(map[string]int)
	var rejected []FileError

	for idx, ft := range files {
		mapping, err := mapHeaders(ft, s)
		if err != nil {
			rejected = append(rejected, FileError{Index: idx, File: ft.FileName, Err: err})
			continue
		}

		// Extend the union with columns this file introduces,
		// preserving first-seen order.
		for i, canonical := range mapping {
			if _, seen := colIndex[canonical]; !seen {
				colIndex[canonical] = len(table.Columns)
				table.Columns = append(table.Columns, Column{
					Name:    canonical,
					Display: ft.Columns[i],
				})
			}
		}

		for rowIdx, row := range ft.Rows {
			rec := RawRecord{
				Provenance: Provenance{File: ft.FileName, Row: rowIdx + 1},
				Cells:      make([]Cell, len(table.Columns)),
			}
			for i, canonical := range mapping {
				rec.Cells[colIndex[canonical]] = Cell{Raw: row[i], Present: true}
			}
			table.Records = append(table.Records, rec)
		}
	}

	// Earlier rows predate columns introduced by later files; grow them
	// so every record has one cell per unified column.
	for i := range table.Records {
		for len(table.Records[i].Cells) < len(table.Columns) {
			table.Records[i].Cells = append(table.Records[i].Cells, Cell{})
		}
	}

	return table, rejected
}

// mapHeaders resolves each source header to its canonical name and rejects
// within-file collisions.
func mapHeaders(ft *ingest.FileTable, s *Schema) ([]string, error) {
	mapping := make([]string, len(ft.Columns))
	seen := make(map[string]string, len(ft.Columns))

	for i, header := range ft.Columns {
		canonical := s.Canonical(header)
		if prev, dup := seen[canonical]; dup {
			return nil, fmt.Errorf("%w: %q and %q both map to %q",
				ErrAmbiguousColumnMapping, prev, header, canonical)
		}
		seen[canonical] = header
		mapping[i] = canonical
	}

	return mapping, nil
}
