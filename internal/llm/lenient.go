package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// coerceString flattens a JSON value into the string-or-null shape every finding field takes.
// Empty strings and the literal "null" become nil.
func coerceString(v gjson.Result) *string {
	var s string
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		s = strings.TrimSpace(v.String())
	case gjson.Number:
		s = v.Raw
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil && f == float64(int64(f)) {
			s = strconv.FormatInt(int64(f), 10)
		}
	case gjson.True, gjson.False:
		s = strconv.FormatBool(v.Bool())
	case gjson.JSON:
		if v.IsArray() {
			var parts []string
			v.ForEach(func(_, item gjson.Result) bool {
				if p := coerceString(item); p != nil {
					parts = append(parts, *p)
				}
				return true
			})
			s = strings.Join(parts, ", ")
		} else {
			s = strings.TrimSpace(v.Raw)
		}
	}
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return nil
	}
	return &s
}

type findingsDoc struct {
	Description *string              `json:"description"`
	Findings    []map[string]*string `json:"findings"`
}

// DecodeFindings turns normalized, schema-valid JSON into a FindingsResult.
func DecodeFindings(b []byte) (entity.FindingsResult, error) {
	var doc findingsDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return entity.FindingsResult{}, fmt.Errorf("decode findings: %w", err)
	}
	out := entity.FindingsResult{Findings: make([]entity.StructuredFinding, 0, len(doc.Findings))}
	if doc.Description != nil {
		out.Description = *doc.Description
	}
	for _, m := range doc.Findings {
		var f entity.StructuredFinding
		for k, v := range m {
			f.Set(k, v)
		}
		out.Findings = append(out.Findings, f)
	}
	return out, nil
}
