package query

// filter.go evaluates filter specifications against typed field values:
// a range on a date column compares parsed dates, never raw strings.
// Records whose field failed normalization are non-matching for value
// predicates (they are not errors); the has_issue predicate exists to
// select exactly those records instead.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pjetools/triagem/internal/normalize"
	"github.com/pjetools/triagem/internal/schema"
)

// Predicate is one condition on one column. At most one of In, Substring,
// Min/Max and HasIssue should be set; Min and Max form a single inclusive
// range and either side may be open. Values are given as strings and
// parsed according to the column's declared type.
type Predicate struct {
	Column    string   `json:"column"`
	In        []string `json:"in,omitempty"`
	Substring string   `json:"substring,omitempty"`
	Min       string   `json:"min,omitempty"`
	Max       string   `json:"max,omitempty"`
	HasIssue  *bool    `json:"has_issue,omitempty"`
}

// FilterSpec is a set of predicates combined with AND. The empty spec is
// the identity filter.
type FilterSpec struct {
	Predicates []Predicate `json:"predicates"`
}

// Filter evaluates the spec over the view and returns the matching
// sub-view. The underlying table is untouched. An unknown column or an
// unparseable range bound is a caller error, not a data issue.
func Filter(v View, spec FilterSpec) (View, error) {
	matchers := make([]matcher, 0, len(spec.Predicates))
	for _, p := range spec.Predicates {
		m, err := compile(v.Table, p)
		if err != nil {
			return View{}, err
		}
		matchers = append(matchers, m)
	}

	out := View{Table: v.Table}
	for _, idx := range v.Indices {
		rec := &v.Table.Records[idx]
		if matchesAll(rec, matchers) {
			out.Indices = append(out.Indices, idx)
		}
	}
	return out, nil
}

type matcher struct {
	fieldIdx int
	match    func(normalize.Field) bool
}

func matchesAll(rec *normalize.Record, matchers []matcher) bool {
	for _, m := range matchers {
		if !m.match(rec.Fields[m.fieldIdx]) {
			return false
		}
	}
	return true
}

// compile resolves a predicate against the table's columns and builds its
// match function, parsing any bounds/members per the column type up front.
func compile(t *normalize.Table, p Predicate) (matcher, error) {
	idx := t.ColumnIndex(p.Column)
	if idx < 0 {
		return matcher{}, fmt.Errorf("filter: unknown column %q", p.Column)
	}
	col := t.Columns[idx]

	switch {
	case p.HasIssue != nil:
		want := *p.HasIssue
		return matcher{idx, func(f normalize.Field) bool {
			return (f.Reason != "") == want
		}}, nil

	case len(p.In) > 0:
		members := make(map[string]bool, len(p.In))
		for _, m := range p.In {
			members[schema.Fold(m)] = true
		}
		return matcher{idx, func(f normalize.Field) bool {
			return f.Usable() && members[schema.Fold(valueString(f))]
		}}, nil

	case p.Substring != "":
		needle := schema.Fold(p.Substring)
		return matcher{idx, func(f normalize.Field) bool {
			return f.Usable() && strings.Contains(schema.Fold(valueString(f)), needle)
		}}, nil

	case p.Min != "" || p.Max != "":
		return compileRange(col, idx, p)

	default:
		return matcher{}, fmt.Errorf("filter: predicate on %q has no condition", p.Column)
	}
}

// compileRange builds an inclusive range matcher typed to the column.
func compileRange(col normalize.Column, idx int, p Predicate) (matcher, error) {
	switch col.Type {
	case schema.TypeDate:
		var min, max normalize.Field
		if p.Min != "" {
			if min = normalize.Date(p.Min); !min.Valid {
				return matcher{}, fmt.Errorf("filter: invalid date bound %q for column %q", p.Min, p.Column)
			}
		}
		if p.Max != "" {
			if max = normalize.Date(p.Max); !max.Valid {
				return matcher{}, fmt.Errorf("filter: invalid date bound %q for column %q", p.Max, p.Column)
			}
		}
		return matcher{idx, func(f normalize.Field) bool {
			if !f.Usable() {
				return false
			}
			if min.Valid && f.Date.Before(min.Date) {
				return false
			}
			if max.Valid && f.Date.After(max.Date) {
				return false
			}
			return true
		}}, nil

	case schema.TypeNumber, schema.TypeCurrency:
		var min, max *float64
		if p.Min != "" {
			v, err := numericBound(col.Type, p.Min)
			if err != nil {
				return matcher{}, fmt.Errorf("filter: invalid bound %q for column %q", p.Min, p.Column)
			}
			min = &v
		}
		if p.Max != "" {
			v, err := numericBound(col.Type, p.Max)
			if err != nil {
				return matcher{}, fmt.Errorf("filter: invalid bound %q for column %q", p.Max, p.Column)
			}
			max = &v
		}
		return matcher{idx, func(f normalize.Field) bool {
			if !f.Usable() {
				return false
			}
			n := numericValue(f)
			if min != nil && n < *min {
				return false
			}
			if max != nil && n > *max {
				return false
			}
			return true
		}}, nil

	default:
		// Text and identifier ranges compare folded strings.
		min, max := schema.Fold(p.Min), schema.Fold(p.Max)
		return matcher{idx, func(f normalize.Field) bool {
			if !f.Usable() {
				return false
			}
			s := schema.Fold(valueString(f))
			if p.Min != "" && s < min {
				return false
			}
			if p.Max != "" && s > max {
				return false
			}
			return true
		}}, nil
	}
}

func numericBound(t schema.FieldType, raw string) (float64, error) {
	var f normalize.Field
	if t == schema.TypeCurrency {
		f = normalize.Amount(raw)
	} else {
		f = normalize.Number(raw)
	}
	if !f.Valid {
		return 0, fmt.Errorf("unparseable bound %q", raw)
	}
	return numericValue(f), nil
}

// numericValue reads a field's numeric content regardless of whether it is
// a count or a monetary amount.
func numericValue(f normalize.Field) float64 {
	if f.Kind == schema.TypeCurrency {
		v, _ := f.Amount.Float64()
		return v
	}
	return f.Number
}

// Render formats a field's typed value for responses, using the same
// conventions as comparison and grouping. Failed fields render their
// retained raw string, absent fields render empty.
func Render(f normalize.Field) string {
	if f.Absent {
		return ""
	}
	if !f.Valid {
		return f.Raw
	}
	return valueString(f)
}

// valueString renders a field's typed value for comparison and grouping.
func valueString(f normalize.Field) string {
	switch f.Kind {
	case schema.TypeDate:
		return f.Date.Format("02/01/2006")
	case schema.TypeCurrency:
		return f.Amount.String()
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
