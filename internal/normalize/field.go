// Package normalize coerces the raw string cells of a unified table into
// typed fields. Every cell becomes exactly one Field: a typed value, a
// typed failure carrying the original string and a reason code, or an
// absent marker for columns the source file never had. Rows are never
// dropped and fields are never silently discarded; a row with a bad date
// stays in the table with that one field marked.
package normalize

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pjetools/triagem/internal/schema"
)

// Reason is a machine-readable issue code. Field-level reasons end up in
// the IssueReport keyed by (provenance, column); file-level reasons are
// keyed by file name.
type Reason string

const (
	// File-level.
	ReasonEncodingFallback     Reason = "encoding_fallback"
	ReasonUnsupportedDelimiter Reason = "unsupported_delimiter"
	ReasonAmbiguousColumns     Reason = "ambiguous_column_mapping"
	ReasonEmptyFile            Reason = "empty_file"
	ReasonUnreadableWorkbook   Reason = "unreadable_workbook"
	ReasonUnreadableFile       Reason = "unreadable_file"

	// Field-level, value unusable.
	ReasonUnparseableDate   Reason = "unparseable_date"
	ReasonUnparseableAmount Reason = "unparseable_amount"
	ReasonUnparseableNumber Reason = "unparseable_number"
	ReasonUnparseableBool   Reason = "unparseable_bool"
	ReasonMissingInput      Reason = "missing_input"

	// Field-level, value retained but flagged for audit.
	ReasonNonstandardFormat Reason = "nonstandard_format"
	ReasonEmptyValue        Reason = "empty_value"
)

// Severity distinguishes the three user-visible categories: "rejected"
// (whole file excluded), "error" (row kept, field unusable) and "warning"
// (value usable but unusual). Collapsing these would hide what the user
// can still rely on.
func (r Reason) Severity() string {
	switch r {
	case ReasonUnsupportedDelimiter, ReasonAmbiguousColumns, ReasonEmptyFile,
		ReasonUnreadableWorkbook, ReasonUnreadableFile:
		return "rejected"
	case ReasonNonstandardFormat, ReasonEmptyValue, ReasonEncodingFallback:
		return "warning"
	default:
		return "error"
	}
}

// Field is one typed cell. Raw always retains the source string (empty for
// absent cells). Exactly one of three states holds:
//
//   - Absent: the column did not exist in the row's source file
//   - Valid:  the typed value for Kind is populated
//   - failed: Valid is false and Reason says why
//
// A valid field may still carry an audit Reason (NonstandardFormat,
// EmptyValue); those do not make the value unusable.
type Field struct {
	Kind   schema.FieldType
	Raw    string
	Absent bool
	Valid  bool
	Reason Reason

	Text   string
	Date   time.Time
	Amount decimal.Decimal
	Number float64
	Bool   bool
}

// Usable reports whether the field holds a typed value predicates and
// aggregates may use.
func (f Field) Usable() bool {
	return !f.Absent && f.Valid
}

// Failed reports whether coercion failed (absent cells are not failures).
func (f Field) Failed() bool {
	return !f.Absent && !f.Valid
}

// Flagged reports whether the field carries any issue, fatal or audit.
func (f Field) Flagged() bool {
	return f.Reason != ""
}

// AbsentField returns the explicit absent marker for a column of the given
// kind.
func AbsentField(kind schema.FieldType) Field {
	return Field{Kind: kind, Absent: true}
}

// Column is one typed column of the normalized table. Derived marks
// columns computed after normalization; their source fields remain in the
// table untouched.
type Column struct {
	Name    string           `json:"name"`
	Display string           `json:"display"`
	Type    schema.FieldType `json:"type"`
	Derived bool             `json:"derived,omitempty"`
}

// Record is one normalized row. Fields is aligned with Table.Columns;
// the field count is identical for every record of a table.
type Record struct {
	Provenance schema.Provenance
	Fields     []Field
}

// Table is the session's working table: normalized records plus any
// derived columns appended by the derive stage. The pipeline builds it
// once per batch; filtering and aggregation only ever read it.
type Table struct {
	Columns []Column
	Records []Record
}

// ColumnIndex returns the position of a canonical column name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FieldAt returns the field for the named column in the given record.
// Unknown columns read as absent text so callers need no bounds checks.
func (t *Table) FieldAt(rec *Record, column string) Field {
	i := t.ColumnIndex(column)
	if i < 0 || i >= len(rec.Fields) {
		return AbsentField(schema.TypeText)
	}
	return rec.Fields[i]
}
