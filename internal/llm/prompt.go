package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// BuildSystemPrompt composes the fixed instruction. strict is used for the single retry
// after the model returned something that did not parse or validate.
func BuildSystemPrompt(strict bool) string {
	parts := []string{
		"You are a security configuration analyst. Return ONLY JSON that matches the provided JSON Schema.",
		"The input is a cleansed document: personal data and client identifiers were replaced by tokens such as <PERSON_REDACTED> or <CLIENT_NAME_REDACTED>.",
		"Never guess, reconstruct or invent the values behind those tokens. Keep them as-is if they appear inside a value.",
		"Extract every firewall rule, network ACL, IAM policy statement or access grant as one entry of 'findings'.",
		"Fields: " + strings.Join(entity.FindingFields, ", ") + ".",
		"'rule_type' is a short label such as firewall, iam, acl, security_group.",
		"'action' is the effect (allow, deny, drop, reject, grant, revoke).",
		"'port' is a single port, a range like 8000-8080, or 'any'.",
		"'description' inside a finding is a one-sentence summary of that rule.",
		"Set a field to null when the document does not state it. Do not add other keys.",
		"Put a two or three sentence summary of the whole document under the top-level 'description'.",
		"If the document contains no security rules, return {\"description\": \"...\", \"findings\": []}.",
	}
	if strict {
		parts = append(parts,
			"Your previous answer could not be parsed.",
			"Respond with a single JSON object and nothing else: no markdown fences, no comments, no trailing text.",
			"Every value must be a JSON string or null. Numbers must be quoted.",
		)
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the cleansed text.
func BuildUserPrompt(cleansedText string) string {
	var b strings.Builder
	b.WriteString("Document text:\n")
	b.WriteString(strings.TrimSpace(cleansedText))
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

// SchemaMessage renders the schema for providers that take it as plain text.
func SchemaMessage(schema map[string]any) string {
	b, _ := json.MarshalIndent(schema, "", "  ")
	return "JSON Schema:\n" + string(b)
}
