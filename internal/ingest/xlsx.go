package ingest

// xlsx.go reads spreadsheet exports. The PJE management panel offers the
// same report as .xlsx, with the same columns as its CSV counterpart, so a
// workbook resolves to the same FileTable shape and flows through the
// pipeline unchanged. Encoding and delimiter concerns do not apply here.

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// resolveWorkbook reads the first sheet of an XLSX buffer. The first row
// is the header row; trailing blank rows are dropped.
func resolveWorkbook(fileName string, data []byte) (*FileTable, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadableWorkbook, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 || isRowEmpty(rows[0]) {
		return nil, ErrEmptyFile
	}

	headers := cleanHeaders(trimTrailingBlanks(rows[0]))

	ft := &FileTable{
		FileName: fileName,
		Columns:  headers,
	}

	for _, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		ft.Rows = append(ft.Rows, padRow(row, len(headers)))
	}

	return ft, nil
}

// trimTrailingBlanks drops empty trailing header cells. Spreadsheets often
// report phantom columns past the last real header.
func trimTrailingBlanks(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
