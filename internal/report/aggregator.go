package report

import (
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joseph-ayodele/doc-cleanser/internal/entity"
)

// Aggregator collects per-document entries from concurrent workers.
type Aggregator struct {
	mu      sync.Mutex
	entries []entity.ReportEntry
	now     func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Add records one document's entry. Safe for concurrent use.
func (a *Aggregator) Add(e entity.ReportEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

// Len is the number of entries added so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Report returns entries in input order. Exact-duplicate findings are collapsed within a
// document; findings of different documents are never merged.
func (a *Aggregator) Report() entity.Report {
	a.mu.Lock()
	entries := make([]entity.ReportEntry, len(a.entries))
	copy(entries, a.entries)
	a.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	for i := range entries {
		entries[i].Findings = dedupe(entries[i].Findings)
		if entries[i].Warnings == nil {
			entries[i].Warnings = []string{}
		}
	}
	return entity.Report{Entries: entries, GeneratedAt: a.now().UTC()}
}

func dedupe(findings []entity.StructuredFinding) []entity.StructuredFinding {
	out := make([]entity.StructuredFinding, 0, len(findings))
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, f := range findings {
		if seen.Add(findingKey(f)) {
			out = append(out, f)
		}
	}
	return out
}

// findingKey distinguishes a null field from an empty string.
func findingKey(f entity.StructuredFinding) string {
	m := f.Map()
	var b strings.Builder
	for _, field := range entity.FindingFields {
		if v, ok := m[field]; ok {
			b.WriteByte('=')
			b.WriteString(v)
		} else {
			b.WriteByte('~')
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}
