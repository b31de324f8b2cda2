package normalize

// normalize.go runs the table-level pass: every cell of the unified raw
// table becomes a typed Field, and every failure or audit flag is recorded
// in the issue report. The invariant is strict one-to-one mapping: each
// record ends up with exactly one field per unified column, absent columns
// included, so counts never drift between stages.

import "github.com/pjetools/triagem/internal/schema"

// Run normalizes a unified table under the given schema. Flagged fields
// are recorded in report; no row is ever dropped.
func Run(u *schema.UnifiedTable, s *schema.Schema, report *IssueReport) *Table {
	t := &Table{
		Columns: make([]Column, len(u.Columns)),
		Records: make([]Record, 0, len(u.Records)),
	}

	for i, col := range u.Columns {
		t.Columns[i] = Column{
			Name:    col.Name,
			Display: col.Display,
			Type:    s.TypeOf(col.Name),
		}
	}

	for _, raw := range u.Records {
		rec := Record{
			Provenance: raw.Provenance,
			Fields:     make([]Field, len(t.Columns)),
		}

		for i, col := range t.Columns {
			var cell schema.Cell
			if i < len(raw.Cells) {
				cell = raw.Cells[i]
			}

			if !cell.Present {
				rec.Fields[i] = AbsentField(col.Type)
				continue
			}

			f := Coerce(col.Type, cell.Raw)
			if f.Flagged() {
				report.AddField(raw.Provenance, col.Name, f.Reason, cell.Raw)
			}
			rec.Fields[i] = f
		}

		t.Records = append(t.Records, rec)
	}

	return t
}
