package entity

import (
	"time"

	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// StructuredFinding is one schema-conformant security fact. Nil means "not present".
type StructuredFinding struct {
	RuleType    *string `json:"rule_type"`
	RuleID      *string `json:"rule_id"`
	Source      *string `json:"source"`
	Destination *string `json:"destination"`
	Port        *string `json:"port"`
	Protocol    *string `json:"protocol"`
	Action      *string `json:"action"`
	Principal   *string `json:"principal"`
	Scope       *string `json:"scope"`
	Description *string `json:"description"`
}

// FindingFields is the fixed column order of a finding.
var FindingFields = []string{
	"rule_type", "rule_id", "source", "destination", "port",
	"protocol", "action", "principal", "scope", "description",
}

// Values returns the finding in FindingFields order; nil values become "".
func (f StructuredFinding) Values() []string {
	ptrs := f.pointers()
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		if p != nil {
			out[i] = *p
		}
	}
	return out
}

// Map returns field -> value for non-nil fields.
func (f StructuredFinding) Map() map[string]string {
	out := make(map[string]string)
	for i, p := range f.pointers() {
		if p != nil {
			out[FindingFields[i]] = *p
		}
	}
	return out
}

// Set assigns field name to v. Unknown names are ignored.
func (f *StructuredFinding) Set(name string, v *string) {
	for i, field := range FindingFields {
		if field == name {
			*f.refs()[i] = v
			return
		}
	}
}

func (f StructuredFinding) pointers() []*string {
	return []*string{f.RuleType, f.RuleID, f.Source, f.Destination, f.Port, f.Protocol, f.Action, f.Principal, f.Scope, f.Description}
}

func (f *StructuredFinding) refs() []**string {
	return []**string{&f.RuleType, &f.RuleID, &f.Source, &f.Destination, &f.Port, &f.Protocol, &f.Action, &f.Principal, &f.Scope, &f.Description}
}

// FindingsResult is what the insight extractor returns for one document.
type FindingsResult struct {
	Description string              `json:"description"`
	Findings    []StructuredFinding `json:"findings"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// ReportEntry is one document's slice of the report.
type ReportEntry struct {
	Seq            int                   `json:"seq"`
	DocumentID     string                `json:"document_id"`
	DocumentName   string                `json:"document_name"`
	Format         constants.Format      `json:"format"`
	Description    string                `json:"description,omitempty"`
	Sensitivity    constants.Sensitivity `json:"sensitivity,omitempty"`
	RedactionCount int                   `json:"redaction_count"`
	Findings       []StructuredFinding   `json:"findings"`
	Warnings       []string              `json:"warnings"`
}

// Report is the aggregated, ordered output of a batch.
type Report struct {
	RunID       string        `json:"run_id,omitempty"`
	Entries     []ReportEntry `json:"entries"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Str is a helper for building optional finding values.
func Str(s string) *string { return &s }
