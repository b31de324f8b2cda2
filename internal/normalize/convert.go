package normalize

// convert.go provides the type coercion functions for raw CSV cells.
//
// These handle the messy reality of PJE exports:
//   - dates as "15/03/2023", "15/03/2023, 14:22:05", ISO, or raw
//     epoch-millisecond timestamps from the management panel
//   - amounts as "R$ 1.234,56" (thousands dot, decimal comma) next to
//     re-imported "1234.56"
//   - case numbers in the CNJ convention with or without punctuation
//   - booleans as true/false, Sim/Não, 1/0
//
// Every converter returns a Field: Valid with the typed value, or invalid
// with a reason code and the raw string retained. Empty input is never a
// parse failure; it yields the EmptyValue audit flag instead.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pjetools/triagem/internal/schema"
)

// Date layouts tried in order; first successful parse wins. Brazilian
// day-first forms come first because "03/04/2023" must read as 3 April.
var dateLayouts = []string{
	"02/01/2006, 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// cnjRegex matches the official case numbering convention
// NNNNNNN-DD.AAAA.J.TR.OOOO (sequential-check.year.segment.court.origin).
var cnjRegex = regexp.MustCompile(`^\d{7}-\d{2}\.\d{4}\.\d\.\d{2}\.\d{4}$`)

// bareDigitsRegex matches an unpunctuated 20-digit case number, which some
// panels emit.
var bareDigitsRegex = regexp.MustCompile(`^\d{20}$`)

// Coerce converts one raw cell according to the column's declared type.
func Coerce(kind schema.FieldType, raw string) Field {
	switch kind {
	case schema.TypeDate:
		return Date(raw)
	case schema.TypeCurrency:
		return Amount(raw)
	case schema.TypeIdentifier:
		return Identifier(raw)
	case schema.TypeNumber:
		return Number(raw)
	case schema.TypeBool:
		return Bool(raw)
	default:
		return Text(raw)
	}
}

// Text trims the cell. An empty result is still a valid (empty) text value
// but carries the EmptyValue audit flag, keeping "blank field" observable
// and distinct from "column absent".
func Text(raw string) Field {
	s := strings.TrimSpace(raw)
	f := Field{Kind: schema.TypeText, Raw: raw, Valid: true, Text: s}
	if s == "" {
		f.Reason = ReasonEmptyValue
	}
	return f
}

// Date parses against the known layout list, then falls back to
// epoch-millisecond timestamps for all-digit cells of plausible length.
// Any time-of-day component is dropped: date fields compare, group and
// export at calendar-day precision.
func Date(raw string) Field {
	f := Field{Kind: schema.TypeDate, Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		f.Reason = ReasonEmptyValue
		return f
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Valid = true
			f.Date = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return f
		}
	}

	// The management panel exports "Data Último Movimento" as raw
	// epoch milliseconds. 11+ digits covers Sep 2001 onward; shorter
	// digit runs are not plausible timestamps.
	if len(s) >= 11 && isAllDigits(s) {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.Valid = true
			f.Date = time.UnixMilli(ms).UTC().Truncate(24 * time.Hour)
			return f
		}
	}

	f.Reason = ReasonUnparseableDate
	return f
}

// Amount parses a monetary cell into a fixed-point decimal. The decimal
// separator is inferred from the last separator's position: two trailing
// digits mean decimal, three mean thousands grouping.
//
//	"R$ 1.234,56" → 1234.56    "1,234.56" → 1234.56    "1.234" → 1234
func Amount(raw string) Field {
	f := Field{Kind: schema.TypeCurrency, Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		f.Reason = ReasonEmptyValue
		return f
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	// Accounting negatives: "(1.234,56)".
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = normalizeSeparators(s)
	if negative {
		s = "-" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		f.Reason = ReasonUnparseableAmount
		return f
	}

	f.Valid = true
	f.Amount = d
	return f
}

// normalizeSeparators rewrites an amount to dot-decimal form. The last
// '.' or ',' is the decimal separator unless exactly three digits follow
// it, in which case it is a thousands separator.
func normalizeSeparators(s string) string {
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s
	}

	trailing := len(s) - last - 1
	if trailing == 3 {
		// "1.234" / "1,234": grouping only, strip every separator.
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", "")
	}

	intPart := s[:last]
	intPart = strings.ReplaceAll(intPart, ".", "")
	intPart = strings.ReplaceAll(intPart, ",", "")
	return intPart + "." + s[last+1:]
}

// Identifier validates a case number against the CNJ convention. A
// mismatch keeps the value as opaque text but flags NonstandardFormat, so
// downstream consumers decide whether to trust it.
func Identifier(raw string) Field {
	f := Field{Kind: schema.TypeIdentifier, Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		f.Reason = ReasonEmptyValue
		f.Valid = true
		return f
	}

	f.Valid = true
	f.Text = s
	if !cnjRegex.MatchString(s) && !bareDigitsRegex.MatchString(s) {
		f.Reason = ReasonNonstandardFormat
	}
	return f
}

// Number parses a numeric count such as "Dias". Accepts a decimal comma.
func Number(raw string) Field {
	f := Field{Kind: schema.TypeNumber, Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		f.Reason = ReasonEmptyValue
		return f
	}

	s = strings.ReplaceAll(s, ",", ".")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.Reason = ReasonUnparseableNumber
		return f
	}

	f.Valid = true
	f.Number = n
	return f
}

// Bool accepts the representations PJE uses across panels.
func Bool(raw string) Field {
	f := Field{Kind: schema.TypeBool, Raw: raw}
	s := schema.Fold(raw)
	if s == "" {
		f.Reason = ReasonEmptyValue
		return f
	}

	switch s {
	case "true", "t", "sim", "s", "1":
		f.Valid = true
		f.Bool = true
	case "false", "f", "nao", "n", "0":
		f.Valid = true
	default:
		f.Reason = ReasonUnparseableBool
	}
	return f
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
