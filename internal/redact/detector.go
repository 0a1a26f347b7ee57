package redact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
	"github.com/mingrammer/commonregex"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Detector finds PII spans in a single block of text. Returned spans carry Block 0; the engine assigns it.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string) ([]entity.RedactionSpan, error)
}

// PatternDetector tags structured identifiers (emails, phones, card numbers...) as OTHER_PII.
// IP addresses are left alone: they are what the findings are made of.
type PatternDetector struct {
	patterns []*regexp.Regexp
}

func NewPatternDetector() *PatternDetector {
	return &PatternDetector{patterns: []*regexp.Regexp{
		commonregex.EmailRegex,
		commonregex.CreditCardRegex,
		commonregex.SSNRegex,
		commonregex.IBANRegex,
		commonregex.StreetAddressRegex,
		commonregex.PoBoxRegex,
		commonregex.PhonesWithExtsRegex,
		commonregex.PhoneRegex,
	}}
}

func (d *PatternDetector) Name() string { return "pattern" }

func (d *PatternDetector) Detect(ctx context.Context, text string) ([]entity.RedactionSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ips := commonregex.IPRegex.FindAllStringIndex(text, -1)
	var out []entity.RedactionSpan
	for _, re := range d.patterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			start, end := trimSpan(text, m[0], m[1])
			start, end = widenToWords(text, start, end)
			if overlapsAny([]int{start, end}, ips) {
				continue
			}
			if start >= end {
				continue
			}
			out = append(out, entity.RedactionSpan{
				Start:      start,
				End:        end,
				Category:   constants.OtherPII,
				Confidence: 0.9,
				Source:     d.Name(),
			})
		}
	}
	return out, nil
}

func overlapsAny(m []int, ranges [][]int) bool {
	for _, r := range ranges {
		if m[0] < r[1] && r[0] < m[1] {
			return true
		}
	}
	return false
}

// trimSpan shrinks [start,end) to exclude surrounding whitespace.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

// widenToWords grows [start,end) so it does not begin or end inside a word.
// Some patterns stop mid-word ("42 rue de la st" out of "station").
func widenToWords(text string, start, end int) (int, int) {
	for start > 0 {
		prev, n := utf8.DecodeLastRuneInString(text[:start])
		cur, _ := utf8.DecodeRuneInString(text[start:])
		if !isWordChar(prev) || !isWordChar(cur) {
			break
		}
		start -= n
	}
	for end < len(text) {
		prev, _ := utf8.DecodeLastRuneInString(text[:end])
		next, n := utf8.DecodeRuneInString(text[end:])
		if !isWordChar(prev) || !isWordChar(next) {
			break
		}
		end += n
	}
	return start, end
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// ProseDetector runs the prose named-entity model over the text.
type ProseDetector struct {
	confidence float32
}

func NewProseDetector() *ProseDetector {
	return &ProseDetector{confidence: 0.7}
}

func (d *ProseDetector) Name() string { return "prose" }

func (d *ProseDetector) Detect(ctx context.Context, text string) (spans []entity.RedactionSpan, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prose: %v", r)
		}
	}()
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	seen := make(map[string]struct{})
	for _, ent := range doc.Entities() {
		cat, ok := constants.Canonicalize(ent.Label)
		if !ok || strings.TrimSpace(ent.Text) == "" {
			continue
		}
		key := string(cat) + "\x00" + ent.Text
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		for _, idx := range indexAll(text, ent.Text) {
			spans = append(spans, entity.RedactionSpan{
				Start:      idx,
				End:        idx + len(ent.Text),
				Category:   cat,
				Confidence: d.confidence,
				Source:     d.Name(),
			})
		}
	}
	return spans, nil
}

func indexAll(s, sub string) []int {
	var out []int
	for off := 0; off <= len(s)-len(sub); {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			break
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
	return out
}

// MultiDetector runs every member and merges their spans.
// Member errors are joined; spans from healthy members are still returned.
type MultiDetector struct {
	members []Detector
}

func NewMultiDetector(members ...Detector) *MultiDetector {
	var ms []Detector
	for _, m := range members {
		if m != nil {
			ms = append(ms, m)
		}
	}
	return &MultiDetector{members: ms}
}

func (m *MultiDetector) Name() string {
	names := make([]string, 0, len(m.members))
	for _, d := range m.members {
		names = append(names, d.Name())
	}
	return strings.Join(names, "+")
}

func (m *MultiDetector) Detect(ctx context.Context, text string) ([]entity.RedactionSpan, error) {
	var (
		out  []entity.RedactionSpan
		errs []error
	)
	for _, d := range m.members {
		spans, err := d.Detect(ctx, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		out = append(out, spans...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, errors.Join(errs...)
}
