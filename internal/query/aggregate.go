package query

// aggregate.go computes grouped summary statistics over a view. Results
// are owned by the caller and recomputed on demand; nothing is cached.
// Groups whose key field is absent or failed fold into an explicit
// sentinel group so totals always add up to the view's record count.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pjetools/triagem/internal/normalize"
	"github.com/pjetools/triagem/internal/schema"
)

// SentinelGroup labels rows whose group-key field has no usable value.
const SentinelGroup = "(sem valor)"

// AggregateSpec describes one aggregation request.
type AggregateSpec struct {
	// GroupBy lists the categorical columns forming the group key.
	// Empty means a single all-rows group.
	GroupBy []string `json:"group_by"`

	// Metric is an optional numeric, currency or derived column to
	// summarize per group. Without it only counts are produced.
	Metric string `json:"metric,omitempty"`

	// SkipNonstandardIDs excludes rows whose identifier-typed group-key
	// field was flagged NonstandardFormat. Default is to include them;
	// the flag is non-fatal.
	SkipNonstandardIDs bool `json:"skip_nonstandard_ids,omitempty"`
}

// GroupMetrics is the computed result for one group. The metric pointers
// are nil when the group has no usable metric values; "no data" is
// reported as such, never as zero.
type GroupMetrics struct {
	Key    []string `json:"key"`
	Count  int      `json:"count"`
	Sum    *float64 `json:"sum,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// AggregateResult is the full result of one aggregation.
type AggregateResult struct {
	GroupBy []string       `json:"group_by"`
	Metric  string         `json:"metric,omitempty"`
	Groups  []GroupMetrics `json:"groups"`
}

// Aggregate groups the view by the spec's key columns and computes count
// plus, when a metric column is given, sum/mean/median/min/max per group.
// Groups are ordered by descending count, ties by key.
func Aggregate(v View, spec AggregateSpec) (*AggregateResult, error) {
	keyIdx := make([]int, len(spec.GroupBy))
	for i, col := range spec.GroupBy {
		idx := v.Table.ColumnIndex(col)
		if idx < 0 {
			return nil, fmt.Errorf("aggregate: unknown group column %q", col)
		}
		keyIdx[i] = idx
	}

	metricIdx := -1
	if spec.Metric != "" {
		metricIdx = v.Table.ColumnIndex(spec.Metric)
		if metricIdx < 0 {
			return nil, fmt.Errorf("aggregate: unknown metric column %q", spec.Metric)
		}
		mt := v.Table.Columns[metricIdx].Type
		if mt != schema.TypeNumber && mt != schema.TypeCurrency {
			return nil, fmt.Errorf("aggregate: column %q is %s, not numeric", spec.Metric, mt)
		}
	}

	type group struct {
		labels []string
		count  int
		values []float64
	}
	groups := make(map[string]*group)

	for _, idx := range v.Indices {
		rec := &v.Table.Records[idx]

		if spec.SkipNonstandardIDs && hasNonstandardID(v.Table, rec, keyIdx) {
			continue
		}

		labels := make([]string, len(keyIdx))
		foldedKey := make([]string, len(keyIdx))
		for i, ki := range keyIdx {
			f := rec.Fields[ki]
			if f.Usable() {
				labels[i] = valueString(f)
			} else {
				labels[i] = SentinelGroup
			}
			foldedKey[i] = schema.Fold(labels[i])
		}

		key := strings.Join(foldedKey, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{labels: labels}
			groups[key] = g
		}
		g.count++

		if metricIdx >= 0 {
			if f := rec.Fields[metricIdx]; f.Usable() {
				g.values = append(g.values, numericValue(f))
			}
		}
	}

	result := &AggregateResult{GroupBy: spec.GroupBy, Metric: spec.Metric}
	for _, g := range groups {
		gm := GroupMetrics{Key: g.labels, Count: g.count}
		if metricIdx >= 0 && len(g.values) > 0 {
			gm.Sum = ptr(sum(g.values))
			gm.Mean = ptr(sum(g.values) / float64(len(g.values)))
			gm.Median = ptr(median(g.values))
			gm.Min = ptr(minOf(g.values))
			gm.Max = ptr(maxOf(g.values))
		}
		result.Groups = append(result.Groups, gm)
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		if result.Groups[i].Count != result.Groups[j].Count {
			return result.Groups[i].Count > result.Groups[j].Count
		}
		return strings.Join(result.Groups[i].Key, "\x1f") < strings.Join(result.Groups[j].Key, "\x1f")
	})

	return result, nil
}

// hasNonstandardID reports whether any identifier-typed key field of the
// record carries the NonstandardFormat flag.
func hasNonstandardID(t *normalize.Table, rec *normalize.Record, keyIdx []int) bool {
	for _, ki := range keyIdx {
		if t.Columns[ki].Type != schema.TypeIdentifier {
			continue
		}
		if rec.Fields[ki].Reason == normalize.ReasonNonstandardFormat {
			return true
		}
	}
	return false
}

func ptr(v float64) *float64 { return &v }

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

func median(vs []float64) float64 {
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
