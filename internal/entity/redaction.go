package entity

import (
	"image"

	"github.com/joseph-ayodele/doc-cleanser/constants"
)

// RedactionSpan marks [Start, End) bytes of block Block for masking.
type RedactionSpan struct {
	Block      int                `json:"block"`
	Start      int                `json:"start"`
	End        int                `json:"end"`
	Category   constants.Category `json:"category"`
	Confidence float32            `json:"confidence"`
	Source     string             `json:"source,omitempty"`
}

// Len is the span width in bytes.
func (s RedactionSpan) Len() int { return s.End - s.Start }

// Overlaps reports whether two spans of the same block share at least one byte.
func (s RedactionSpan) Overlaps(o RedactionSpan) bool {
	return s.Block == o.Block && s.Start < o.End && o.Start < s.End
}

// LogoMatch is a client logo occurrence inside an image region.
type LogoMatch struct {
	Box        image.Rectangle `json:"box"`
	Similarity float32         `json:"similarity"`
}

// AnonymizedBlock is a TextBlock after placeholders were applied.
type AnonymizedBlock struct {
	Index               int                  `json:"index"`
	Text                string               `json:"text"`
	Provenance          constants.Provenance `json:"provenance"`
	Location            Location             `json:"location"`
	LowConfidence       bool                 `json:"low_confidence,omitempty"`
	RedactionIncomplete bool                 `json:"redaction_incomplete,omitempty"`
}

// MaskedImage is an ImageRegion with logo matches blacked out.
type MaskedImage struct {
	Index       int         `json:"index"`
	Location    Location    `json:"location"`
	Image       image.Image `json:"-"`
	LogoMatches []LogoMatch `json:"logo_matches,omitempty"`
}

// AnonymizedDocument is the redaction engine output. Spans index the pre-redaction block text.
type AnonymizedDocument struct {
	DocumentID string            `json:"document_id"`
	Format     constants.Format  `json:"format"`
	Blocks     []AnonymizedBlock `json:"blocks"`
	Images     []MaskedImage     `json:"-"`
	Spans      []RedactionSpan   `json:"spans"`
	Reconciled bool              `json:"reconciled"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Text joins block texts, optionally skipping blocks whose redaction is incomplete.
func (d AnonymizedDocument) Text(includeIncomplete bool) string {
	var out []byte
	for _, b := range d.Blocks {
		if b.RedactionIncomplete && !includeIncomplete {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, b.Text...)
	}
	return string(out)
}

// IncompleteBlocks counts blocks flagged RedactionIncomplete.
func (d AnonymizedDocument) IncompleteBlocks() int {
	n := 0
	for _, b := range d.Blocks {
		if b.RedactionIncomplete {
			n++
		}
	}
	return n
}

// CountByCategory tallies text spans per category plus pixel-level logo matches.
func (d AnonymizedDocument) CountByCategory() map[constants.Category]int {
	out := make(map[constants.Category]int)
	for _, s := range d.Spans {
		out[s.Category]++
	}
	for _, img := range d.Images {
		out[constants.ClientLogo] += len(img.LogoMatches)
	}
	return out
}
