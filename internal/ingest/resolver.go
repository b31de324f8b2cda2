// Package ingest turns raw uploaded bytes into per-file row tables.
//
// PJE exports are messy: most arrive as semicolon-delimited CSV in UTF-8,
// but older panels emit Latin-1, some tools re-save with a UTF-8 BOM, and
// a few exports use commas. The resolver handles all of that here so the
// rest of the pipeline only ever sees decoded text rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// File-level resolution errors. A file that fails to resolve is rejected
// as a whole; the batch continues with the remaining files.
var (
	ErrEmptyFile            = errors.New("file is empty")
	ErrUnsupportedDelimiter = errors.New("unsupported delimiter: header contains neither semicolon nor comma")
	ErrUnreadableWorkbook   = errors.New("workbook could not be opened")
)

// utf8BOM is stripped before encoding detection. The exporter writes
// utf-8-sig so round-tripped files always carry it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// xlsxMagic is the ZIP local-file-header signature; .xlsx files are ZIP
// containers, so this is enough to route a buffer to the workbook path.
var xlsxMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// FileTable is one decoded source file: original headers in file order and
// raw string cells. Cells are padded so every row has exactly one value per
// header; a padded cell is a blank field, not a missing column (the column
// exists in this file).
type FileTable struct {
	FileName string
	Columns  []string
	Rows     [][]string

	// Delimiter is the detected field delimiter (';' or ','). Zero for
	// workbook sources, where no delimiter applies.
	Delimiter rune

	// EncodingFallback is true when the bytes were not valid UTF-8 and
	// were decoded as Latin-1 instead. Surfaced as a file-level issue.
	EncodingFallback bool
}

// Resolve decodes one uploaded buffer into a FileTable. XLSX workbooks are
// detected by magic bytes and routed to the workbook reader; everything
// else is treated as delimited text.
func Resolve(fileName string, data []byte) (*FileTable, error) {
	if bytes.HasPrefix(data, xlsxMagic) {
		return resolveWorkbook(fileName, data)
	}
	return resolveDelimited(fileName, data)
}

// resolveDelimited handles the CSV path: encoding detection, delimiter
// detection, then a standard CSV read.
func resolveDelimited(fileName string, data []byte) (*FileTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	text, fallback := decodeText(data)

	delim, err := detectDelimiter(text)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	// Exports disagree on quoting and column counts between rows; be
	// permissive here and reconcile counts below.
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", fileName, err)
	}
	if len(allRows) == 0 {
		return nil, ErrEmptyFile
	}

	headers := cleanHeaders(allRows[0])

	ft := &FileTable{
		FileName:         fileName,
		Columns:          headers,
		Delimiter:        delim,
		EncodingFallback: fallback,
	}

	for _, row := range allRows[1:] {
		if isRowEmpty(row) {
			continue
		}
		ft.Rows = append(ft.Rows, padRow(row, len(headers)))
	}

	return ft, nil
}

// decodeText returns the buffer as a string, falling back to Latin-1 when
// the bytes are not valid UTF-8. Latin-1 maps every byte, so the fallback
// cannot fail; the second return reports whether it was used.
func decodeText(data []byte) (string, bool) {
	if utf8.Valid(data) {
		return string(data), false
	}
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		// ISO8859_1 decoding is total; this branch is unreachable but
		// the raw bytes are still a usable last resort.
		return string(data), true
	}
	return string(decoded), true
}

// detectDelimiter scans the header line. Semicolon wins whenever it
// appears at all, since PJE headers contain commas inside column names
// ("Data Último Movimento, formatada") but never semicolons.
func detectDelimiter(text string) (rune, error) {
	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	switch {
	case strings.Count(header, ";") >= 1:
		return ';', nil
	case strings.Count(header, ",") >= 1:
		return ',', nil
	default:
		return 0, ErrUnsupportedDelimiter
	}
}

// cleanHeaders trims whitespace and names blank headers by position so a
// header always has a non-empty name.
func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Coluna_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// padRow sizes a row to the header width. Short rows get blank cells,
// overlong rows are truncated to the declared columns.
func padRow(row []string, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(row) {
			out[i] = row[i]
		}
	}
	return out
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
