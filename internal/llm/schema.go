package llm

import (
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// BuildFindingsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the provider as the output constraint and also use it locally to validate.
// Every finding field is a string or null; unknown keys are rejected.
func BuildFindingsJSONSchema() map[string]any {
	fieldProps := make(map[string]any, len(entity.FindingFields))
	for _, f := range entity.FindingFields {
		fieldProps[f] = nullableString()
	}

	finding := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           fieldProps,
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": nullableString(),
			"findings": map[string]any{
				"type":  "array",
				"items": finding,
			},
		},
		"required": []string{"findings"},
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
