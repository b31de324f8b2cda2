package normalize

// report.go accumulates the issue report for a batch run. Nothing in the
// pipeline swallows a problem: every file rejection, coercion failure and
// audit flag lands here and is surfaced to the caller after processing.

import "github.com/pjetools/triagem/internal/schema"

// FileIssue is a file-granularity entry: either a rejection (the file
// contributed no rows) or the encoding-fallback signal.
type FileIssue struct {
	File     string `json:"file"`
	Reason   Reason `json:"reason"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// FieldIssue is a cell-granularity entry keyed by row provenance and
// canonical column name. Raw retains the offending source string.
type FieldIssue struct {
	Provenance schema.Provenance `json:"provenance"`
	Column     string            `json:"column"`
	Reason     Reason            `json:"reason"`
	Severity   string            `json:"severity"`
	Raw        string            `json:"raw,omitempty"`
}

// IssueReport collects every issue of a batch run, in processing order.
type IssueReport struct {
	Files  []FileIssue  `json:"files"`
	Fields []FieldIssue `json:"fields"`
}

// AddFile records a file-level issue.
func (r *IssueReport) AddFile(file string, reason Reason, detail string) {
	r.Files = append(r.Files, FileIssue{
		File:     file,
		Reason:   reason,
		Severity: reason.Severity(),
		Detail:   detail,
	})
}

// AddField records a cell-level issue.
func (r *IssueReport) AddField(prov schema.Provenance, column string, reason Reason, raw string) {
	r.Fields = append(r.Fields, FieldIssue{
		Provenance: prov,
		Column:     column,
		Reason:     reason,
		Severity:   reason.Severity(),
		Raw:        raw,
	})
}

// Len is the total number of recorded issues.
func (r *IssueReport) Len() int {
	return len(r.Files) + len(r.Fields)
}

// FieldReason looks up the reason recorded for one (provenance, column)
// pair; ok is false when that cell has no issue.
func (r *IssueReport) FieldReason(prov schema.Provenance, column string) (Reason, bool) {
	for _, fi := range r.Fields {
		if fi.Provenance == prov && fi.Column == column {
			return fi.Reason, true
		}
	}
	return "", false
}
