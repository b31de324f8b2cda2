// Package query provides read-only filtering and aggregation over the
// session's working table. A view is a slice of record indices: filtering
// copies no records and never mutates the base table, so views may be
// recomputed and interleaved freely.
package query

import "github.com/pjetools/triagem/internal/normalize"

// View is a read-only selection of records from a table.
type View struct {
	Table   *normalize.Table
	Indices []int
}

// All returns the identity view over every record.
func All(t *normalize.Table) View {
	idx := make([]int, len(t.Records))
	for i := range idx {
		idx[i] = i
	}
	return View{Table: t, Indices: idx}
}

// Len is the number of records in the view.
func (v View) Len() int {
	return len(v.Indices)
}

// Record returns the i-th record of the view.
func (v View) Record(i int) *normalize.Record {
	return &v.Table.Records[v.Indices[i]]
}
