package redact

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

const (
	fuzzyMinLen     = 5
	fuzzyMaxDist    = 1
	fuzzyConfidence = float32(0.8)
)

var reWord = regexp.MustCompile(`[\p{L}\p{N}]+`)

// separatorClass is what may sit between the name's words: spaces, punctuation and symbols ("Acme+Co", "C++ Labs").
const separatorClass = `[\s\p{P}\p{S}]*`

// ClientMatcher finds the client name in text, tolerating case, punctuation and spacing variants
// ("Acme Corp", "ACME-CORP", "acme  corp.") plus a single-character typo for longer names.
type ClientMatcher struct {
	name    string
	tokens  []string
	compact string
	exact   *regexp.Regexp
}

// NewClientMatcher returns nil when name has no alphanumeric content.
func NewClientMatcher(name string) *ClientMatcher {
	tokens := reWord.FindAllString(strings.ToLower(name), -1)
	if len(tokens) == 0 {
		return nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	variants := boundaryStart(tokens[0]) + strings.Join(quoted, separatorClass) + boundaryEnd(tokens[len(tokens)-1])
	pattern := `(?i)(?:` + literal(name) + `|` + variants + `)`
	return &ClientMatcher{
		name:    name,
		tokens:  tokens,
		compact: strings.Join(tokens, ""),
		exact:   regexp.MustCompile(pattern),
	}
}

// literal matches the name exactly as written, so leading or trailing symbols ("C++") are covered too.
func literal(name string) string {
	name = strings.TrimSpace(name)
	r := []rune(name)
	return boundaryStart(name) + regexp.QuoteMeta(name) + boundaryEnd(string(r[len(r)-1]))
}

func boundaryStart(tok string) string {
	if isWordRune(firstRune(tok)) {
		return `\b`
	}
	return ""
}

func boundaryEnd(tok string) string {
	r := []rune(tok)
	if isWordRune(r[len(r)-1]) {
		return `\b`
	}
	return ""
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Name is the client name the matcher was built for.
func (m *ClientMatcher) Name() string { return m.name }

// Find returns CLIENT_NAME spans for every occurrence in text.
func (m *ClientMatcher) Find(text string) []entity.RedactionSpan {
	if m == nil || text == "" {
		return nil
	}
	var out []entity.RedactionSpan
	// "_" is a word character to \b; file names use it as a separator ("Acme_firewall.pdf").
	scan := strings.ReplaceAll(text, "_", " ")
	for _, loc := range m.exact.FindAllStringIndex(scan, -1) {
		out = append(out, entity.RedactionSpan{
			Start:      loc[0],
			End:        loc[1],
			Category:   constants.ClientName,
			Confidence: 1,
			Source:     "client_name",
		})
	}
	return append(out, m.fuzzy(text, out)...)
}

// fuzzy slides a window of len(tokens) words over text and compares the compacted form.
func (m *ClientMatcher) fuzzy(text string, exact []entity.RedactionSpan) []entity.RedactionSpan {
	if len([]rune(m.compact)) < fuzzyMinLen {
		return nil
	}
	words := reWord.FindAllStringIndex(text, -1)
	n := len(m.tokens)
	var out []entity.RedactionSpan
	for i := 0; i+n <= len(words); i++ {
		start, end := words[i][0], words[i+n-1][1]
		if !onlySeparators(text, words[i:i+n]) {
			continue
		}
		if covered(start, end, exact) || covered(start, end, out) {
			continue
		}
		var b strings.Builder
		for _, w := range words[i : i+n] {
			b.WriteString(strings.ToLower(text[w[0]:w[1]]))
		}
		candidate := b.String()
		if len([]rune(candidate)) < fuzzyMinLen {
			continue
		}
		if levenshtein.Distance(candidate, m.compact, nil) <= fuzzyMaxDist {
			out = append(out, entity.RedactionSpan{
				Start:      start,
				End:        end,
				Category:   constants.ClientName,
				Confidence: fuzzyConfidence,
				Source:     "client_name_fuzzy",
			})
		}
	}
	return out
}

// onlySeparators reports whether the gaps between consecutive words hold only spaces, punctuation and symbols.
func onlySeparators(text string, words [][]int) bool {
	for k := 1; k < len(words); k++ {
		gap := text[words[k-1][1]:words[k][0]]
		for _, r := range gap {
			if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
				return false
			}
		}
	}
	return true
}

func covered(start, end int, spans []entity.RedactionSpan) bool {
	for _, s := range spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

// Residual returns client-name matches in already-redacted text that are not part of a placeholder.
func (m *ClientMatcher) Residual(text string) []entity.RedactionSpan {
	if m == nil {
		return nil
	}
	return dropPlaceholderOverlaps(text, m.Find(text))
}

// MaskName replaces client name matches in a label such as a file name.
func MaskName(name, clientName string) string {
	m := NewClientMatcher(clientName)
	if m == nil || name == "" {
		return name
	}
	return Apply(name, Reconcile(name, m.Find(name)))
}
