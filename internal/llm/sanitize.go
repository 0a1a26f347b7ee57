package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

var (
	// findingsKeys are the places models put the findings array, most specific first.
	findingsKeys = []string{"findings", "key_findings", "firewall_rules", "iam_policies", "rules", "policies", "results"}
	// descriptionKeys name the document summary.
	descriptionKeys = []string{"description", "file_description", "summary", "document_description"}

	fieldSynonyms = map[string]string{
		"type":             "rule_type",
		"kind":             "rule_type",
		"category":         "rule_type",
		"id":               "rule_id",
		"rule_name":        "rule_id",
		"name":             "rule_id",
		"src":              "source",
		"source_ip":        "source",
		"source_address":   "source",
		"from":             "source",
		"dst":              "destination",
		"dest":             "destination",
		"destination_ip":   "destination",
		"target":           "destination",
		"to":               "destination",
		"ports":            "port",
		"port_range":       "port",
		"destination_port": "port",
		"proto":            "protocol",
		"effect":           "action",
		"decision":         "action",
		"user":             "principal",
		"role":             "principal",
		"identity":         "principal",
		"resource":         "scope",
		"resources":        "scope",
		"summary":          "description",
		"details":          "description",
	}
)

var errNoFindings = errors.New("no findings array in model output")

// cleanJSONBlock removes markdown code block wrappers from JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	// tolerate prose before or after the object
	if i, j := strings.IndexAny(text, "{["), strings.LastIndexAny(text, "}]"); i >= 0 && j > i {
		text = text[i : j+1]
	}
	return text
}

// NormalizeFindingsJSON maps raw model output onto {"description", "findings"}:
// - Strips code fences
// - Finds the findings array under known synonyms (or a bare top-level array)
// - Renames field synonyms and drops unknown keys
// - Coerces numbers, booleans and lists to strings
// The result is ready for schema validation.
func NormalizeFindingsJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text := cleanJSONBlock(string(raw))
	if !gjson.Valid(text) {
		return nil, nil, fmt.Errorf("sanitize: output is not valid JSON")
	}
	root := gjson.Parse(text)

	var dropped []string
	arr, key := findArray(root)
	if !arr.Exists() {
		return nil, nil, errNoFindings
	}
	if key != "findings" {
		dropped = append(dropped, key+"->findings")
	}

	findings := make([]map[string]any, 0)
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			dropped = append(dropped, "findings[](non-object)")
			return true
		}
		m := make(map[string]any, len(entity.FindingFields))
		for _, f := range entity.FindingFields {
			m[f] = nil
		}
		item.ForEach(func(k, v gjson.Result) bool {
			name := strings.ToLower(strings.TrimSpace(k.String()))
			if canonical, ok := fieldSynonyms[name]; ok {
				if _, taken := m[canonical]; taken && m[canonical] != nil {
					return true
				}
				name = canonical
			}
			if _, known := m[name]; !known {
				dropped = append(dropped, name+"(unknown)")
				return true
			}
			if s := coerceString(v); s != nil {
				m[name] = *s
			}
			return true
		})
		findings = append(findings, m)
		return true
	})

	out := map[string]any{"findings": findings}
	if root.IsObject() {
		for _, k := range descriptionKeys {
			if d := root.Get(gjsonKey(k)); d.Exists() {
				if s := coerceString(d); s != nil {
					out["description"] = *s
				}
				break
			}
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return b, dropped, nil
}

func findArray(root gjson.Result) (gjson.Result, string) {
	if root.IsArray() {
		return root, "@this"
	}
	for _, k := range findingsKeys {
		if r := root.Get(gjsonKey(k)); r.IsArray() {
			return r, k
		}
	}
	// one level down, e.g. {"key_findings": {"firewall_rules": [...]}}
	var found gjson.Result
	var foundKey string
	root.ForEach(func(k, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		for _, fk := range findingsKeys {
			if r := v.Get(gjsonKey(fk)); r.IsArray() {
				found, foundKey = r, k.String()+"."+fk
				return false
			}
		}
		return true
	})
	return found, foundKey
}

func gjsonKey(k string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(k)
}
