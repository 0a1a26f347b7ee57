package redact

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/doc-cleanser/constants"
	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

var rePlaceholder = regexp.MustCompile(`<(?:PERSON|LOCATION|ORG|CLIENT_NAME|CLIENT_LOGO|PII)_REDACTED>`)

// dropPlaceholderOverlaps removes spans touching an existing placeholder token.
func dropPlaceholderOverlaps(text string, spans []entity.RedactionSpan) []entity.RedactionSpan {
	marks := rePlaceholder.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return spans
	}
	out := spans[:0:0]
	for _, s := range spans {
		if !overlapsAny([]int{s.Start, s.End}, marks) {
			out = append(out, s)
		}
	}
	return out
}

// Reconcile resolves overlaps within one block's spans.
//
// Spans are processed from the most specific category down. A span that overlaps an already
// accepted higher-ranked span is cut down to the fragments outside it. Among spans of equal rank,
// the higher confidence wins, then the longer span, then the earlier one; the loser is dropped whole.
// The result is sorted by Start and free of overlaps.
func Reconcile(text string, spans []entity.RedactionSpan) []entity.RedactionSpan {
	valid := make([]entity.RedactionSpan, 0, len(spans))
	for _, s := range spans {
		s.Start, s.End = max(s.Start, 0), min(s.End, len(text))
		if s.Start < s.End {
			valid = append(valid, s)
		}
	}
	valid = dropPlaceholderOverlaps(text, valid)

	byRank := make(map[int][]entity.RedactionSpan)
	ranks := make([]int, 0, 3)
	for _, s := range valid {
		r := constants.Specificity(s.Category)
		if _, ok := byRank[r]; !ok {
			ranks = append(ranks, r)
		}
		byRank[r] = append(byRank[r], s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	var accepted []entity.RedactionSpan
	for _, r := range ranks {
		var candidates []entity.RedactionSpan
		for _, s := range byRank[r] {
			candidates = append(candidates, fragments(text, s, accepted)...)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Confidence != b.Confidence {
				return a.Confidence > b.Confidence
			}
			if a.Len() != b.Len() {
				return a.Len() > b.Len()
			}
			return a.Start < b.Start
		})
		var tier []entity.RedactionSpan
		for _, c := range candidates {
			if !collides(c, tier) {
				tier = append(tier, c)
			}
		}
		accepted = append(accepted, tier...)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}

// fragments returns the parts of s not covered by any span in taken, minus whitespace-only pieces.
func fragments(text string, s entity.RedactionSpan, taken []entity.RedactionSpan) []entity.RedactionSpan {
	pieces := []entity.RedactionSpan{s}
	for _, t := range taken {
		var next []entity.RedactionSpan
		for _, p := range pieces {
			if p.End <= t.Start || t.End <= p.Start {
				next = append(next, p)
				continue
			}
			if p.Start < t.Start {
				left := p
				left.End = t.Start
				next = append(next, left)
			}
			if t.End < p.End {
				right := p
				right.Start = t.End
				next = append(next, right)
			}
		}
		pieces = next
	}
	out := pieces[:0]
	for _, p := range pieces {
		p.Start, p.End = trimSpan(text, p.Start, p.End)
		if p.Start < p.End && strings.TrimSpace(text[p.Start:p.End]) != "" {
			out = append(out, p)
		}
	}
	return out
}

func collides(s entity.RedactionSpan, spans []entity.RedactionSpan) bool {
	for _, o := range spans {
		if s.Start < o.End && o.Start < s.End {
			return true
		}
	}
	return false
}

// Apply substitutes the category placeholder for every span. spans must be reconciled.
func Apply(text string, spans []entity.RedactionSpan) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, s := range spans {
		if s.Start < last {
			continue
		}
		b.WriteString(text[last:s.Start])
		b.WriteString(constants.Placeholder(s.Category))
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Reconciled reports whether spans are sorted by (Block, Start) and pairwise disjoint.
func Reconciled(spans []entity.RedactionSpan) bool {
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.Block < prev.Block {
			return false
		}
		if cur.Block == prev.Block && cur.Start < prev.End {
			return false
		}
	}
	return true
}
