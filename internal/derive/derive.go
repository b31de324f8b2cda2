// Package derive appends computed columns to a normalized table: the
// effective arrival date, elapsed days, arrival month, duration-range
// buckets and categorical bucket groups. Derived fields are additive:
// source fields are never overwritten, and a derived value whose inputs
// failed normalization is an explicit MissingInput marker, never a zero.
package derive

import (
	"fmt"
	"time"

	"github.com/pjetools/triagem/internal/normalize"
	"github.com/pjetools/triagem/internal/schema"
)

// Derived column names.
const (
	ColDataEfetiva = "data_chegada_efetiva"
	ColDiasDecorr  = "dias_corridos"
	ColMesChegada  = "mes_chegada"
	ColFaixaDias   = "faixa_dias"
)

// bucketSuffix names the derived column for a bucketed categorical source
// column ("tarefa" → "tarefa_grupo").
const bucketSuffix = "_grupo"

// Run appends the derived columns to t in place. ref is the reference date
// used when the schema's date pair has no end column (age measured against
// "today" in the session's location).
func Run(t *normalize.Table, s *schema.Schema, ref time.Time, report *normalize.IssueReport) {
	deriveDuration(t, s, ref, report)
	deriveBuckets(t, s, report)
}

// deriveDuration adds the effective arrival date, elapsed days, month and
// duration-range columns. The arrival date follows the priority order the
// PJE panels require:
//
//  1. the configured start column, when it parsed
//  2. retroaction: last-movement date minus the exported elapsed-days
//     count (the management panel omits the arrival date entirely)
//
// Elapsed days prefers recomputation from dates and falls back to the
// exported count when only that is usable.
func deriveDuration(t *normalize.Table, s *schema.Schema, ref time.Time, report *normalize.IssueReport) {
	startIdx := t.ColumnIndex(s.Duration.Start)
	movIdx := t.ColumnIndex(schema.ColDataUltimoMovimento)
	diasIdx := t.ColumnIndex(schema.ColDias)
	if startIdx < 0 && movIdx < 0 && diasIdx < 0 {
		// Nothing to derive from in this batch.
		return
	}

	endIdx := -1
	if s.Duration.End != "" {
		endIdx = t.ColumnIndex(s.Duration.End)
	}

	t.Columns = append(t.Columns,
		normalize.Column{Name: ColDataEfetiva, Display: "Data Chegada Efetiva", Type: schema.TypeDate, Derived: true},
		normalize.Column{Name: ColDiasDecorr, Display: "Dias Corridos", Type: schema.TypeNumber, Derived: true},
		normalize.Column{Name: ColMesChegada, Display: "Mês", Type: schema.TypeNumber, Derived: true},
		normalize.Column{Name: ColFaixaDias, Display: "Faixa de Dias", Type: schema.TypeText, Derived: true},
	)

	for i := range t.Records {
		rec := &t.Records[i]

		arrival := fieldAt(rec, startIdx)
		movement := fieldAt(rec, movIdx)
		dias := fieldAt(rec, diasIdx)

		effective := normalize.Field{Kind: schema.TypeDate, Reason: normalize.ReasonMissingInput}
		switch {
		case arrival.Usable():
			effective = normalize.Field{Kind: schema.TypeDate, Valid: true, Date: arrival.Date}
		case movement.Usable() && dias.Usable():
			effective = normalize.Field{
				Kind:  schema.TypeDate,
				Valid: true,
				Date:  movement.Date.AddDate(0, 0, -int(dias.Number)),
			}
		}

		end := ref
		endOK := true
		if endIdx >= 0 {
			endField := fieldAt(rec, endIdx)
			if endField.Usable() {
				end = endField.Date
			} else {
				endOK = false
			}
		}

		elapsed := normalize.Field{Kind: schema.TypeNumber, Reason: normalize.ReasonMissingInput}
		switch {
		case effective.Valid && endOK:
			elapsed = normalize.Field{
				Kind:   schema.TypeNumber,
				Valid:  true,
				Number: daysBetween(effective.Date, end),
			}
		case dias.Usable():
			elapsed = normalize.Field{Kind: schema.TypeNumber, Valid: true, Number: dias.Number}
		}

		month := normalize.Field{Kind: schema.TypeNumber, Reason: normalize.ReasonMissingInput}
		if effective.Valid {
			month = normalize.Field{Kind: schema.TypeNumber, Valid: true, Number: float64(effective.Date.Month())}
		}

		faixa := normalize.Field{Kind: schema.TypeText, Reason: normalize.ReasonMissingInput}
		if elapsed.Valid {
			faixa = normalize.Field{Kind: schema.TypeText, Valid: true, Text: rangeLabel(int(elapsed.Number), s.DurationRanges)}
		}

		for _, pair := range []struct {
			col string
			f   normalize.Field
		}{
			{ColDataEfetiva, effective},
			{ColDiasDecorr, elapsed},
			{ColMesChegada, month},
			{ColFaixaDias, faixa},
		} {
			if pair.f.Reason == normalize.ReasonMissingInput {
				report.AddField(rec.Provenance, pair.col, normalize.ReasonMissingInput, "")
			}
			rec.Fields = append(rec.Fields, pair.f)
		}
	}
}

// deriveBuckets adds one "<column>_grupo" text column per bucketed
// categorical column in the schema. Unmapped values land in the explicit
// Outros bucket; a failed, absent or blank source yields MissingInput.
func deriveBuckets(t *normalize.Table, s *schema.Schema, report *normalize.IssueReport) {
	for _, col := range bucketedColumns(t, s) {
		srcIdx := t.ColumnIndex(col)
		name := col + bucketSuffix

		t.Columns = append(t.Columns, normalize.Column{
			Name:    name,
			Display: t.Columns[srcIdx].Display + " (Grupo)",
			Type:    schema.TypeText,
			Derived: true,
		})

		for i := range t.Records {
			rec := &t.Records[i]
			src := rec.Fields[srcIdx]

			f := normalize.Field{Kind: schema.TypeText, Reason: normalize.ReasonMissingInput}
			if src.Usable() && src.Text != "" {
				bucket, _ := s.Bucket(col, src.Text)
				f = normalize.Field{Kind: schema.TypeText, Valid: true, Text: bucket}
			}
			if f.Reason == normalize.ReasonMissingInput {
				report.AddField(rec.Provenance, name, normalize.ReasonMissingInput, "")
			}
			rec.Fields = append(rec.Fields, f)
		}
	}
}

// bucketedColumns returns the schema's bucketed columns that actually
// exist in this table, in table column order for determinism.
func bucketedColumns(t *normalize.Table, s *schema.Schema) []string {
	var cols []string
	for _, c := range t.Columns {
		if c.Derived {
			continue
		}
		if _, ok := s.Buckets[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// fieldAt is a bounds-safe field read; a negative index reads as absent.
func fieldAt(rec *normalize.Record, idx int) normalize.Field {
	if idx < 0 || idx >= len(rec.Fields) {
		return normalize.AbsentField(schema.TypeText)
	}
	return rec.Fields[idx]
}

// daysBetween counts whole calendar days from a to b, date precision.
func daysBetween(a, b time.Time) float64 {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return b.Sub(a).Hours() / 24
}

// rangeLabel renders the duration bucket for d days given the configured
// inclusive upper bounds, e.g. [30 60 90] → "0-30", "31-60", "61-90",
// "91+".
func rangeLabel(d int, bounds []int) string {
	lower := 0
	for _, upper := range bounds {
		if d <= upper {
			return fmt.Sprintf("%d-%d", lower, upper)
		}
		lower = upper + 1
	}
	return fmt.Sprintf("%d+", lower)
}
