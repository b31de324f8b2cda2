// Package export writes a table view back out as CSV with the same
// conventions ingestion accepts: semicolon delimiter, UTF-8 with BOM. A
// clean export re-ingested through the pipeline yields the same rows and
// the same typed values.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/pjetools/triagem/internal/normalize"
	"github.com/pjetools/triagem/internal/query"
	"github.com/pjetools/triagem/internal/schema"
)

// utf8BOM makes the file open correctly in Excel with accented Portuguese
// headers; the resolver strips it again on re-ingest.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV renders the view as a semicolon-delimited UTF-8 CSV snapshot.
// Headers are the display names. Failed fields render their retained raw
// string (the export is an audit artifact, not a cleaned dataset) and
// absent fields render empty.
func CSV(v query.View) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'

	headers := make([]string, len(v.Table.Columns))
	for i, col := range v.Table.Columns {
		headers[i] = col.Display
	}
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(v.Table.Columns))
	for i := 0; i < v.Len(); i++ {
		rec := v.Record(i)
		for j := range v.Table.Columns {
			row[j] = renderField(rec.Fields[j])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing row %s: %w", rec.Provenance, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// renderField formats one typed field in the conventions the resolver and
// normalizer accept back: dd/mm/yyyy dates, decimal-comma amounts,
// Sim/Não booleans.
func renderField(f normalize.Field) string {
	if f.Absent {
		return ""
	}
	if !f.Valid {
		return f.Raw
	}

	switch f.Kind {
	case schema.TypeDate:
		return f.Date.Format("02/01/2006")
	case schema.TypeCurrency:
		return decimalComma(f.Amount.StringFixed(2))
	case schema.TypeNumber:
		return strconv.FormatFloat(f.Number, 'f', -1, 64)
	case schema.TypeBool:
		if f.Bool {
			return "Sim"
		}
		return "Não"
	default:
		return f.Text
	}
}

// decimalComma swaps a dot-decimal rendering to the Brazilian convention.
func decimalComma(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '.' {
			out[i] = ','
		}
	}
	return string(out)
}
